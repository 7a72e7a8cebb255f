package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"tvepg/internal/epg"
)

// TermOptions sizes the terminal guide.
type TermOptions struct {
	// Width is the total line width in columns. Default 100.
	Width int
	// Span is the time shown to the right of now. Default 3h.
	Span time.Duration
	// LabelWidth is the channel column width. Default 18.
	LabelWidth  int
	Location    *time.Location
	LastRefresh time.Time
}

func (o TermOptions) normalized() TermOptions {
	if o.Width <= 0 {
		o.Width = 100
	}
	if o.Span <= 0 {
		o.Span = 3 * time.Hour
	}
	if o.LabelWidth <= 0 {
		o.LabelWidth = 18
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

var (
	termHeader  = lipgloss.NewStyle().Bold(true)
	termLabel   = lipgloss.NewStyle().Bold(true)
	termMuted   = lipgloss.NewStyle().Faint(true)
	termCurrent = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Terminal renders the part of grid between its Now and Now+Span as one
// line per channel. Programs are scaled to the available columns; a program
// that does not fit next to its predecessor is clipped.
func Terminal(grid *epg.GridModel, opts TermOptions) string {
	opts = opts.normalized()

	from := grid.Now
	to := from + int64(opts.Span/time.Second)
	track := max(opts.Width-opts.LabelWidth-1, 10)
	scale := float64(track) / float64(to-from)

	lines := []string{
		termHeader.Render(statusLine(grid, opts)),
		strings.Repeat(" ", opts.LabelWidth+1) + termMuted.Render(ruler(grid, from, to, track, scale)),
	}

	for _, row := range grid.Rows {
		label := fit(fmt.Sprintf("%d %s", row.Number, rowName(row)), opts.LabelWidth)
		lines = append(lines, termLabel.Render(label)+" "+trackLine(row, from, to, track, scale))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusLine(grid *epg.GridModel, opts TermOptions) string {
	now := time.Unix(grid.Now, 0)
	s := fmt.Sprintf("%s  %d channels", now.In(opts.Location).Format("Mon 15:04"), len(grid.Rows))
	if !opts.LastRefresh.IsZero() {
		s += ", updated " + humanize.RelTime(opts.LastRefresh, now, "ago", "from now")
	}
	return s
}

func ruler(grid *epg.GridModel, from, to int64, track int, scale float64) string {
	line := []rune(strings.Repeat(" ", track))
	for _, t := range grid.Ticks {
		if t.Time < from || t.Time >= to {
			continue
		}
		col := int(float64(t.Time-from) * scale)
		for i, r := range "|" + t.Label {
			if col+i < track {
				line[col+i] = r
			}
		}
	}
	return string(line)
}

func trackLine(row epg.Row, from, to int64, track int, scale float64) string {
	cells := make([]epg.Cell, 0, len(row.Cells))
	for _, c := range row.Cells {
		if c.Event.HasStart() {
			cells = append(cells, c)
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].Event.Start < cells[j].Event.Start
	})

	var b strings.Builder
	col := 0
	for _, c := range cells {
		start, stop := c.Event.Start, c.Event.Stop
		if stop < start {
			stop = start
		}
		visible := start < to && (stop > from || stop == start && start >= from)
		if !visible {
			continue
		}
		c0 := int(float64(max(start, from)-from) * scale)
		c1 := int(float64(min(stop, to)-from) * scale)
		if c1 <= c0 {
			c1 = c0 + 1
		}
		c0 = max(c0, col)
		c1 = min(c1, track)
		if c1 <= c0 {
			continue
		}

		b.WriteString(strings.Repeat(" ", c0-col))
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color(c.Genre.Color))
		if c.Geometry.IsCurrent {
			style = style.Inherit(termCurrent)
		}
		b.WriteString(style.Render(fit(c.Event.Title, c1-c0)))
		col = c1
	}
	b.WriteString(strings.Repeat(" ", track-col))
	return b.String()
}

func rowName(r epg.Row) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ChannelID
}

// fit pads or cuts s to exactly n runes, marking cuts with an ellipsis.
func fit(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		if n > 1 {
			return string(r[:n-1]) + "…"
		}
		return string(r[:n])
	}
	return s + strings.Repeat(" ", n-len(r))
}
