// Package ics bridges iCalendar and the guide: it reads program schedules
// from iCalendar feeds, expands recurring programs into broadcast events,
// and exports the guide as an iCalendar feed.
package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "tvepg/internal/log"
)

// Program is a schedule entry before recurrence expansion. Programs come
// from VEVENTs of a feed or from statically configured channels.
type Program struct {
	UID         string
	Title       string
	Description string
	Categories  []string

	// Start is the first airing. It may be zero for rule-only programs whose
	// RRule carries its own DTSTART or is anchored by the expander.
	Start    time.Time
	Duration time.Duration

	// RRule is either a bare rule ("FREQ=DAILY;BYHOUR=20") or a block of
	// DTSTART/RRULE/EXDATE lines.
	RRule   string
	ExDates []time.Time

	// RecurrenceID marks an override of a single airing of UID.
	RecurrenceID *time.Time
}

// ParseFeed parses an iCalendar payload into programs. VEVENTs that cannot
// be read are logged and skipped.
func ParseFeed(feedID string, body []byte) ([]Program, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	programs := make([]Program, 0)
	for _, ve := range cal.Events() {
		p, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "feed", feedID, "reason", perr.Error())
			continue
		}
		programs = append(programs, p)
	}

	appLog.Debug("ics parse completed", "feed", feedID, "program_count", len(programs))
	return programs, nil
}

func parseVEvent(ve *ical.VEvent) (Program, error) {
	var p Program

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return p, errors.New("missing UID")
	}
	p.UID = uid.Value

	if v := ve.GetProperty(ical.ComponentPropertySummary); v != nil {
		p.Title = v.Value
	}
	if v := ve.GetProperty(ical.ComponentPropertyDescription); v != nil {
		p.Description = v.Value
	}
	for _, v := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(v.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Categories = append(p.Categories, c)
			}
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return p, errors.New("missing DTSTART")
	}
	p.Start = start
	// A missing DTEND leaves a zero duration; the layout floors its width.
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		p.Duration = end.Sub(start)
	}

	if v := ve.GetProperty(ical.ComponentPropertyRrule); v != nil {
		p.RRule = v.Value
	}

	for _, v := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(v.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				p.ExDates = append(p.ExDates, t)
			}
		}
	}

	if v := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); v != nil {
		if t, err := parseICSTime(v.Value, start.Location()); err == nil {
			p.RecurrenceID = &t
		}
	}

	return p, nil
}

// parseICSTime parses DATE, local DATE-TIME and UTC DATE-TIME values. Local
// forms are read in loc, normally the location of the event's DTSTART.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
