package epg

import (
	"time"

	"tvepg/internal/model"
)

const secondsPerHour = 3600

// TimeWindow is the time span covered by a set of events.
type TimeWindow struct {
	MinStart int64 `json:"min_start"`
	MaxEnd   int64 `json:"max_end"`
}

// Tick is an hour boundary label on the time axis.
type Tick struct {
	Time  int64   `json:"time"`
	Left  float64 `json:"left"`
	Label string  `json:"label"`
}

// Axis is the shared horizontal axis of the grid.
type Axis struct {
	Window  TimeWindow `json:"window"`
	WidthPx float64    `json:"width_px"`
	Ticks   []Tick     `json:"ticks"`
}

// NewTimeWindow returns the min start and max stop over events. Events
// without a start time are ignored; an event without a stop contributes its
// start only. An inverted event contributes its stop like any other, so a
// window made only of inverted events can end before it starts.
// ErrEmptyData is returned when no event has a start.
func NewTimeWindow(events []model.BroadcastEvent) (TimeWindow, error) {
	var (
		w     TimeWindow
		found bool
	)
	for _, e := range events {
		if !e.HasStart() {
			continue
		}
		end := e.Start
		if e.HasStop() {
			end = e.Stop
		}
		if !found {
			w = TimeWindow{MinStart: e.Start, MaxEnd: end}
			found = true
			continue
		}
		if e.Start < w.MinStart {
			w.MinStart = e.Start
		}
		if end > w.MaxEnd {
			w.MaxEnd = end
		}
	}
	if !found {
		return TimeWindow{}, ErrEmptyData
	}
	return w, nil
}

// NewAxis computes the grid width and hour ticks for a window.
func NewAxis(w TimeWindow, cfg Config) Axis {
	cfg = cfg.normalized()
	return Axis{
		Window:  w,
		WidthPx: cfg.pixels(w.MaxEnd - w.MinStart),
		Ticks:   hourTicks(w, cfg),
	}
}

// hourTicks emits one tick per hour boundary in
// [floor(minStart/3600)*3600, maxEnd). The floored first boundary usually
// precedes minStart and is dropped for its negative offset.
func hourTicks(w TimeWindow, cfg Config) []Tick {
	first := floorDiv(w.MinStart, secondsPerHour) * secondsPerHour
	ticks := make([]Tick, 0, (w.MaxEnd-first)/secondsPerHour+1)
	for t := first; t < w.MaxEnd; t += secondsPerHour {
		left := cfg.pixels(t - w.MinStart)
		if left < 0 {
			continue
		}
		ticks = append(ticks, Tick{
			Time:  t,
			Left:  left,
			Label: time.Unix(t, 0).In(cfg.Location).Format("15:04"),
		})
	}
	return ticks
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
