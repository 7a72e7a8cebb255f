package epg

import "tvepg/internal/model"

// Cell is one positioned event of a row.
type Cell struct {
	Event    model.BroadcastEvent `json:"event"`
	Geometry Geometry             `json:"geometry"`
	Genre    Resolution           `json:"genre"`
}

// Row is one channel of the grid.
type Row struct {
	ChannelID string `json:"channel_id"`
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Cells     []Cell `json:"cells"`
}

// GridModel is the markup-free description of a laid out guide.
type GridModel struct {
	MinStart int64   `json:"min_start"`
	MaxEnd   int64   `json:"max_end"`
	WidthPx  float64 `json:"width_px"`
	Now      int64   `json:"now"`
	NowLeft  float64 `json:"now_left"`
	Ticks    []Tick  `json:"ticks"`
	Rows     []Row   `json:"rows"`
}

// Current returns the cell airing at the grid's now on the given row, if any.
// When overlapping events are both current the first in input order wins.
func (r Row) Current() (Cell, bool) {
	for _, c := range r.Cells {
		if c.Geometry.IsCurrent {
			return c, true
		}
	}
	return Cell{}, false
}

// Assemble lays out events at time now. It returns ErrEmptyData when there
// is no time window to draw. Overlapping events on one channel are placed
// independently and may collide.
func Assemble(events []model.BroadcastEvent, now int64, cfg Config) (*GridModel, error) {
	cfg = cfg.normalized()

	window, err := NewTimeWindow(events)
	if err != nil {
		return nil, err
	}
	axis := NewAxis(window, cfg)
	channels := GroupChannels(events)

	rows := make([]Row, 0, len(channels))
	for _, ch := range channels {
		cells := make([]Cell, 0, len(ch.Events))
		for _, e := range ch.Events {
			cells = append(cells, Cell{
				Event:    e,
				Geometry: ResolveGeometry(e, window.MinStart, now, cfg),
				Genre:    cfg.Palette.Resolve(e.Genre),
			})
		}
		rows = append(rows, Row{
			ChannelID: ch.ID,
			Number:    ch.Number,
			Name:      ch.Name,
			Cells:     cells,
		})
	}

	return &GridModel{
		MinStart: window.MinStart,
		MaxEnd:   window.MaxEnd,
		WidthPx:  axis.WidthPx,
		Now:      now,
		NowLeft:  NowLeft(now, window.MinStart, cfg),
		Ticks:    axis.Ticks,
		Rows:     rows,
	}, nil
}
