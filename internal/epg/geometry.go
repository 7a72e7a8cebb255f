package epg

import "tvepg/internal/model"

// Geometry is the horizontal placement of one event on the grid.
type Geometry struct {
	Left      float64 `json:"left"`
	Width     float64 `json:"width"`
	IsCurrent bool    `json:"is_current"`
}

// ResolveGeometry places e relative to minStart. The width has the card gap
// removed and is floored at MinEventWidth, so zero-length, inverted or
// untimed events stay visible. An event without a start is anchored at the
// left edge; an event without a stop is treated as zero length.
func ResolveGeometry(e model.BroadcastEvent, minStart, now int64, cfg Config) Geometry {
	cfg = cfg.normalized()

	var g Geometry
	if e.HasStart() {
		g.Left = cfg.pixels(e.Start - minStart)
	}

	width := cfg.pixels(e.Duration()) - cfg.CardGap
	if width < cfg.MinEventWidth {
		width = cfg.MinEventWidth
	}
	g.Width = width

	g.IsCurrent = IsCurrent(e, now)
	return g
}

// IsCurrent reports whether e is airing at now: start <= now < stop.
func IsCurrent(e model.BroadcastEvent, now int64) bool {
	if !e.HasStart() || !e.HasStop() {
		return false
	}
	return e.Start <= now && now < e.Stop
}

// NowLeft returns the offset of the now marker. It is not clamped to the
// window; a now outside the guide lands off the scrollable area.
func NowLeft(now, minStart int64, cfg Config) float64 {
	return cfg.normalized().pixels(now - minStart)
}
