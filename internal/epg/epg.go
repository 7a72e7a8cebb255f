// Package epg lays out a program guide grid from a flat list of broadcast
// events. Everything in this package is a pure function of its inputs: the
// caller supplies the current time and all scale parameters, and every call
// rebuilds the derived model from scratch.
package epg

import (
	"errors"
	"time"
)

// ErrEmptyData is returned when there is nothing to lay out: no events, or
// no event carrying a start time. Callers render a placeholder instead.
var ErrEmptyData = errors.New("epg: no data")

// Default layout parameters.
const (
	DefaultPixelsPerMinute = 6.0
	DefaultCardGap         = 4.0
	DefaultMinEventWidth   = 5.0
)

// Config holds the scale parameters of a layout pass.
type Config struct {
	// PixelsPerMinute is the horizontal time-to-pixel scale.
	PixelsPerMinute float64
	// CardGap is subtracted from every event width to leave a visual gap.
	// Zero means no gap; use DefaultConfig for the default gap.
	CardGap float64
	// MinEventWidth is the floor applied to every event width.
	MinEventWidth float64
	// Location is used for tick labels. Nil means time.Local.
	Location *time.Location
	// Palette resolves genre colors. Nil means DefaultPalette().
	Palette *Palette
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		PixelsPerMinute: DefaultPixelsPerMinute,
		CardGap:         DefaultCardGap,
		MinEventWidth:   DefaultMinEventWidth,
		Location:        time.Local,
		Palette:         DefaultPalette(),
	}
}

// normalized fills unset fields. A zero scale is treated as unset; a zero
// CardGap or MinEventWidth is a valid value and kept, negatives become 0.
func (c Config) normalized() Config {
	if c.PixelsPerMinute <= 0 {
		c.PixelsPerMinute = DefaultPixelsPerMinute
	}
	if c.CardGap < 0 {
		c.CardGap = 0
	}
	if c.MinEventWidth < 0 {
		c.MinEventWidth = 0
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Palette == nil {
		c.Palette = DefaultPalette()
	}
	return c
}

// pixels converts a span of seconds to pixels.
func (c Config) pixels(seconds int64) float64 {
	return (float64(seconds) / 60) * c.PixelsPerMinute
}
