// Package source pulls raw broadcast events from the configured EPG
// sources: a TVHeadend server, iCalendar feeds and static channels declared
// in the config file.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tvepg/internal/config"
	"tvepg/internal/ics"
	appLog "tvepg/internal/log"
	"tvepg/internal/model"
)

// ErrNoSources is returned when the config enables no source at all.
var ErrNoSources = errors.New("source: no EPG source configured")

// Loader merges events from every configured source.
type Loader struct {
	cfg     *config.Config
	fetcher *Fetcher
}

// NewLoader creates a Loader reading cfg's sources through fetcher.
func NewLoader(cfg *config.Config, fetcher *Fetcher) *Loader {
	return &Loader{cfg: cfg, fetcher: fetcher}
}

// Load returns the events of all sources, TVHeadend first, then iCalendar
// feeds and static channels in config order. A failing source does not stop
// the others: its error is joined into the returned error while the events
// of healthy sources are still returned.
func (l *Loader) Load(ctx context.Context, now time.Time) ([]model.BroadcastEvent, error) {
	if !l.hasSources() {
		return nil, ErrNoSources
	}

	loc, err := l.cfg.Location()
	if err != nil {
		loc = time.Local
	}
	expandCfg := ics.ExpandConfig{
		Location:   loc,
		RangeStart: now.Add(-time.Duration(l.cfg.BackfillHours) * time.Hour),
		RangeEnd:   now.Add(time.Duration(l.cfg.HorizonHours) * time.Hour),
	}

	var (
		events []model.BroadcastEvent
		errs   []error
	)

	if l.cfg.TVHeadend.URL != "" {
		tvh, err := l.loadTVHeadend(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		events = append(events, tvh...)
	}

	feeds, feedErrs := l.loadFeeds(ctx, expandCfg)
	events = append(events, feeds...)
	errs = append(errs, feedErrs...)

	static, staticErrs := l.loadStatic(expandCfg)
	events = append(events, static...)
	errs = append(errs, staticErrs...)

	appLog.Info("sources loaded", "event_count", len(events), "error_count", len(errs))
	return events, errors.Join(errs...)
}

func (l *Loader) hasSources() bool {
	return l.cfg.TVHeadend.URL != "" || len(l.cfg.ICS) > 0 || len(l.cfg.StaticChannels) > 0
}

func (l *Loader) loadTVHeadend(ctx context.Context) ([]model.BroadcastEvent, error) {
	ep, err := TVHeadendEndpoint(l.cfg.TVHeadend)
	if err != nil {
		return nil, err
	}
	res, err := l.fetcher.FetchOne(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("tvheadend: %w", err)
	}
	events, err := DecodeTVHeadend(res.Body)
	if err != nil {
		return nil, fmt.Errorf("tvheadend: %w", err)
	}
	appLog.Debug("tvheadend decoded", "event_count", len(events), "from_cache", res.FromCache)
	return events, nil
}

func (l *Loader) loadFeeds(ctx context.Context, expandCfg ics.ExpandConfig) ([]model.BroadcastEvent, []error) {
	endpoints := make([]Endpoint, 0, len(l.cfg.ICS))
	channels := make(map[string]ics.Channel, len(l.cfg.ICS))
	for _, feed := range l.cfg.ICS {
		if feed.URL == "" {
			continue
		}
		ch := feedChannel(feed)
		endpoints = append(endpoints, Endpoint{ID: ch.ID, URL: feed.URL})
		channels[ch.ID] = ch
	}
	if len(endpoints) == 0 {
		return nil, nil
	}

	results, errs := l.fetcher.FetchAll(ctx, endpoints)

	var events []model.BroadcastEvent
	for _, res := range results {
		programs, err := ics.ParseFeed(res.Endpoint.ID, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics feed %s: %w", res.Endpoint.ID, err))
			continue
		}
		expanded, err := ics.Expand(channels[res.Endpoint.ID], programs, expandCfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics feed %s: %w", res.Endpoint.ID, err))
			continue
		}
		events = append(events, expanded.Events...)
	}
	return events, errs
}

func (l *Loader) loadStatic(expandCfg ics.ExpandConfig) ([]model.BroadcastEvent, []error) {
	var (
		events []model.BroadcastEvent
		errs   []error
	)
	for _, sc := range l.cfg.StaticChannels {
		ch := ics.Channel{ID: sc.ID, Number: sc.Number, Name: sc.Name}
		if ch.Name == "" {
			ch.Name = sc.ID
		}
		expanded, err := ics.Expand(ch, StaticPrograms(sc), expandCfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("static channel %s: %w", sc.ID, err))
			continue
		}
		events = append(events, expanded.Events...)
	}
	return events, errs
}

// StaticPrograms converts the configured programs of a static channel.
func StaticPrograms(sc config.StaticChannelConfig) []ics.Program {
	programs := make([]ics.Program, 0, len(sc.Programs))
	for i, p := range sc.Programs {
		programs = append(programs, ics.Program{
			UID:         fmt.Sprintf("%s-%d", sc.ID, i),
			Title:       p.Title,
			Description: p.Description,
			Categories:  p.Genre,
			Duration:    time.Duration(p.DurationMinutes) * time.Minute,
			RRule:       p.RRule,
		})
	}
	return programs
}

// feedChannel derives the channel identity of a feed, falling back from ID
// to name to URL like the config allows.
func feedChannel(feed config.ICSConfig) ics.Channel {
	id := strings.TrimSpace(feed.ID)
	if id == "" {
		id = strings.TrimSpace(feed.Name)
	}
	if id == "" {
		id = feed.URL
	}
	name := feed.Name
	if name == "" {
		name = id
	}
	return ics.Channel{ID: id, Number: feed.Number, Name: name}
}
