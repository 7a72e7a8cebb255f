package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tvepg/internal/log"
	"tvepg/internal/model"
)

const defaultMaxOccurrencesPerProgram = 2000

// Channel is the channel identity expanded programs are attached to.
type Channel struct {
	ID     string
	Number int
	Name   string
}

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location anchors rule-only programs without DTSTART at local midnight
	// of RangeStart. Nil means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the airings that are kept. An airing is
	// kept when it overlaps the range.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerProgram caps runaway rules. Zero means the default.
	MaxOccurrencesPerProgram int
}

// ExpandResult holds the expanded events and the UIDs whose expansion hit
// the occurrence cap.
type ExpandResult struct {
	Events    []model.BroadcastEvent
	Truncated []string
}

// Expand turns programs into broadcast events on ch within the configured
// range. Single programs are kept when they overlap the range, recurring
// ones are expanded with EXDATE exclusions, and RECURRENCE-ID overrides
// replace the matching airing.
func Expand(ch Channel, programs []Program, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerProgram <= 0 {
		cfg.MaxOccurrencesPerProgram = defaultMaxOccurrencesPerProgram
	}

	overrides := make(map[string][]Program)
	base := make([]Program, 0, len(programs))
	for _, p := range programs {
		if p.RecurrenceID != nil {
			overrides[p.UID] = append(overrides[p.UID], p)
			continue
		}
		base = append(base, p)
	}

	for _, p := range base {
		airings, hitCap, err := airingsOf(p, cfg)
		if err != nil {
			appLog.Error("ics expand: skipping program", err, "channel", ch.ID, "uid", p.UID, "rrule", p.RRule)
			continue
		}
		if hitCap {
			result.Truncated = append(result.Truncated, p.UID)
			appLog.Warn("ics expand: occurrence cap reached", "uid", p.UID, "cap", cfg.MaxOccurrencesPerProgram)
		}
		for _, start := range airings {
			aired := p
			if o, ok := findOverride(overrides[p.UID], start); ok {
				aired = o
				start = o.Start
			}
			end := start.Add(aired.Duration)
			if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			result.Events = append(result.Events, toEvent(ch, aired, start, end))
		}
	}

	return result, nil
}

// airingsOf lists the start times of p that may overlap the range.
func airingsOf(p Program, cfg ExpandConfig) ([]time.Time, bool, error) {
	if p.RRule == "" {
		if p.Start.IsZero() {
			return nil, false, errors.New("program has neither start nor rule")
		}
		return []time.Time{p.Start}, false, nil
	}

	set, err := ruleSet(p, cfg)
	if err != nil {
		return nil, false, err
	}

	// Widen the lower bound by the duration so an airing that started before
	// the range but is still running is included.
	after := cfg.RangeStart.Add(-p.Duration)
	times := set.Between(after, cfg.RangeEnd, true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerProgram {
		times = times[:cfg.MaxOccurrencesPerProgram]
		hitCap = true
	}
	return times, hitCap, nil
}

func ruleSet(p Program, cfg ExpandConfig) (*rrule.Set, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(p.RRule, "\r\n", "\n"))
	upper := strings.ToUpper(raw)
	if !strings.Contains(upper, "RRULE:") {
		raw = "RRULE:" + raw
	}

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	set, err := rrule.StrSliceToRRuleSetInLoc(lines, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}

	switch {
	case !p.Start.IsZero():
		set.DTStart(p.Start)
	case !strings.Contains(upper, "DTSTART"):
		rs := cfg.RangeStart.In(cfg.Location)
		set.DTStart(time.Date(rs.Year(), rs.Month(), rs.Day(), 0, 0, 0, 0, cfg.Location))
	}

	for _, ex := range p.ExDates {
		set.ExDate(ex)
	}
	return set, nil
}

func findOverride(overrides []Program, start time.Time) (Program, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return Program{}, false
}

func toEvent(ch Channel, p Program, start, end time.Time) model.BroadcastEvent {
	e := model.BroadcastEvent{
		EventID:       p.UID + "@" + start.UTC().Format("20060102T150405Z"),
		ChannelID:     ch.ID,
		ChannelNumber: ch.Number,
		ChannelName:   ch.Name,
		Start:         start.Unix(),
		Stop:          end.Unix(),
		Title:         p.Title,
		Description:   p.Description,
	}
	if len(p.Categories) > 0 {
		e.Genre = append(model.Genre(nil), p.Categories...)
	}
	return e
}

// overlaps treats zero-length airings as a point that must lie in
// [rangeStart, rangeEnd).
func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	if !end.After(start) {
		return !start.Before(rangeStart) && start.Before(rangeEnd)
	}
	return start.Before(rangeEnd) && end.After(rangeStart)
}
