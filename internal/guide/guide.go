// Package guide keeps the current event list and the last assembled grid.
// It is the host side of the layout engine: it owns the clock, reloads the
// sources and decides when the grid is laid out again.
package guide

import (
	"context"
	"errors"
	"sync"
	"time"

	"tvepg/internal/epg"
	appLog "tvepg/internal/log"
	"tvepg/internal/model"
)

// Loader produces the raw events of all sources. A non-nil error together
// with events means a partial result.
type Loader interface {
	Load(ctx context.Context, now time.Time) ([]model.BroadcastEvent, error)
}

// Status describes the state of the last refresh.
type Status struct {
	// Loading is true until the first refresh finished.
	Loading     bool      `json:"loading"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	EventCount  int       `json:"event_count"`
	// Stale is set when the last refresh failed and older events are kept.
	Stale bool `json:"stale,omitempty"`
}

// Service serializes refreshes and grid assembly.
type Service struct {
	loader   Loader
	layout   epg.Config
	interval time.Duration
	now      func() time.Time

	refreshMu sync.Mutex

	mu          sync.Mutex
	events      []model.BroadcastEvent
	version     uint64
	status      Status
	grid        *epg.GridModel
	gridVersion uint64
	renderedAt  time.Time
}

// New creates a Service. interval is the minimum time between two
// assemblies of an unchanged event list; zero or less means 60s.
func New(loader Loader, layout epg.Config, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Service{
		loader:   loader,
		layout:   layout,
		interval: interval,
		now:      time.Now,
		status:   Status{Loading: true},
	}
}

// Refresh reloads all sources. Events of a partial result replace the
// current list; a refresh that yields nothing keeps the previous events and
// marks them stale.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	now := s.now()
	events, err := s.loader.Load(ctx, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Loading = false
	s.status.LastRefresh = now
	s.status.LastError = ""
	s.status.Stale = false
	if err != nil {
		s.status.LastError = err.Error()
	}

	if err != nil && len(events) == 0 {
		s.status.Stale = len(s.events) > 0
		appLog.Error("guide refresh failed", err, "kept_events", len(s.events))
		return err
	}

	s.events = events
	s.version++
	s.status.EventCount = len(events)
	if err != nil {
		appLog.Warn("guide refresh partial", "event_count", len(events), "error", err.Error())
	} else {
		appLog.Info("guide refreshed", "event_count", len(events))
	}
	return err
}

// Grid returns the grid laid out at now. The previous grid is reused while
// the event list is unchanged and less than the render interval has passed
// since it was assembled, so its Now may lag behind the argument.
//
// ErrEmptyData is returned when there is nothing to draw.
func (s *Service) Grid(now time.Time) (*epg.GridModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grid != nil && s.gridVersion == s.version && now.Sub(s.renderedAt) < s.interval && !now.Before(s.renderedAt) {
		return s.grid, nil
	}

	grid, err := epg.Assemble(s.events, now.Unix(), s.layout)
	if err != nil {
		s.grid = nil
		if !errors.Is(err, epg.ErrEmptyData) {
			appLog.Error("guide assemble failed", err)
		}
		return nil, err
	}

	s.grid = grid
	s.gridVersion = s.version
	s.renderedAt = now
	appLog.Debug("guide assembled", "rows", len(grid.Rows), "width_px", grid.WidthPx)
	return grid, nil
}

// Events returns a copy of the current event list and the refresh status.
func (s *Service) Events() ([]model.BroadcastEvent, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.BroadcastEvent, len(s.events))
	copy(out, s.events)
	return out, s.status
}

// Status returns the refresh status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Layout returns the layout parameters grids are assembled with.
func (s *Service) Layout() epg.Config {
	return s.layout
}
