package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tvepg/internal/epg"
	"tvepg/internal/model"
)

func assemble(t *testing.T, events []model.BroadcastEvent, now int64) *epg.GridModel {
	t.Helper()
	cfg := epg.DefaultConfig()
	cfg.Location = time.UTC
	grid, err := epg.Assemble(events, now, cfg)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return grid
}

func TestHTML_Grid(t *testing.T) {
	grid := assemble(t, []model.BroadcastEvent{
		{ChannelID: "a", ChannelNumber: 1, ChannelName: "Alpha", Start: 1000, Stop: 1600, Title: "<b>News</b>", Genre: model.Genre{"32"}},
		{ChannelID: "b", ChannelNumber: 2, Start: 1200, Stop: 1800, Title: "Match", Genre: model.Genre{"67"}},
	}, 1300)

	var buf bytes.Buffer
	err := HTML(&buf, Page{
		Grid:        grid,
		Location:    time.UTC,
		LastRefresh: time.Unix(1120, 0),
		Now:         time.Unix(1300, 0),
	})
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`data-ready="true"`,
		`left:0px; width:56px; background:#1565c0`,
		`left:20px; width:56px; background:#2e7d32`,
		`class="now-line" style="left:30px"`,
		`width:80px`,
		`&lt;b&gt;News&lt;/b&gt;`,
		`<strong>1</strong>&nbsp;Alpha`,
		`<strong>2</strong>&nbsp;b`,
		`<div class="event-time">00:16</div>`,
		`class="event current"`,
		`updated 3 minutes ago`,
		`clientWidth * 0.02`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<b>News</b>") {
		t.Error("title not escaped")
	}
}

func TestHTML_Placeholder(t *testing.T) {
	tests := map[string]struct {
		page Page
		want string
	}{
		"loading":  {page: Page{Placeholder: Placeholder(true, "")}, want: "Loading…"},
		"error":    {page: Page{Placeholder: Placeholder(false, "tvheadend: timeout")}, want: "EPG load error: tvheadend: timeout"},
		"no data":  {page: Page{}, want: "No EPG data"},
		"no error": {page: Page{Placeholder: Placeholder(false, "")}, want: "No EPG data"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := HTML(&buf, tt.page); err != nil {
				t.Fatalf("HTML: %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Fatalf("missing %q", tt.want)
			}
			if !strings.Contains(out, `data-ready="true"`) {
				t.Fatal("placeholder page not marked ready")
			}
			if strings.Contains(out, `class="now-line"`) {
				t.Fatal("placeholder page drew a grid")
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	now := int64(1700000000)
	grid := assemble(t, []model.BroadcastEvent{
		{ChannelID: "a", ChannelNumber: 1, ChannelName: "Alpha", Start: now - 600, Stop: now + 3000, Title: "Headlines", Genre: model.Genre{"News"}},
		{ChannelID: "a", ChannelNumber: 1, Start: now + 3000, Stop: now + 6600, Title: "Weather"},
		{ChannelID: "b", ChannelNumber: 2, ChannelName: "Beta", Start: now, Stop: now + 3600, Title: "Match", Genre: model.Genre{"64"}},
		{ChannelID: "b", ChannelNumber: 2, Start: now + 20000, Stop: now + 23600, Title: "Too late"},
		{ChannelID: "c", ChannelNumber: 3, Title: "Untimed"},
	}, now)

	out := Terminal(grid, TermOptions{
		Width:       120,
		Location:    time.UTC,
		LastRefresh: time.Unix(now-300, 0),
	})

	for _, want := range []string{"Headlines", "Weather", "Match", "1 Alpha", "2 Beta", "3 c", "3 channels", "updated 5 minutes ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Too late", "Untimed"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output contains %q outside the span\n%s", unwanted, out)
		}
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 4, "abc…"},
		{"ab", 4, "ab  "},
		{"kultúra", 7, "kultúra"},
		{"abc", 1, "a"},
	}
	for _, tt := range tests {
		if got := fit(tt.in, tt.n); got != tt.want {
			t.Errorf("fit(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
