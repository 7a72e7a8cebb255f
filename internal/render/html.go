// Package render turns an assembled grid into markup: an HTML page for the
// browser and the screenshot, and a plain terminal table for -once.
package render

import (
	"html/template"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tvepg/internal/epg"
)

const (
	defaultChannelColWidth = 150
	defaultRowHeight       = 80
)

// Page is everything the HTML guide needs. A nil Grid renders Placeholder.
type Page struct {
	Title       string
	Grid        *epg.GridModel
	Placeholder string

	LastRefresh time.Time
	Now         time.Time

	ChannelColWidth int
	RowHeight       int
	Location        *time.Location

	// RefreshSeconds reloads the page periodically; zero disables it.
	RefreshSeconds int
}

// Placeholder picks the text shown instead of the grid.
func Placeholder(loading bool, lastErr string) string {
	switch {
	case loading:
		return "Loading…"
	case lastErr != "":
		return "EPG load error: " + lastErr
	default:
		return "No EPG data"
	}
}

type pageView struct {
	Title          string
	Ready          bool
	Placeholder    string
	Updated        string
	RefreshSeconds int

	ChannelCol  int
	RowHeight   int
	EventHeight int

	Width     string
	NowLeft   float64
	NowLeftPx string
	Ticks     []tickView
	Rows      []rowView
}

type tickView struct {
	Left  string
	Label string
}

type rowView struct {
	Number int
	Name   string
	Cells  []cellView
}

type cellView struct {
	Left        string
	Width       string
	Color       string
	Category    string
	Title       string
	Time        string
	Description string
	Current     bool
}

// HTML writes the guide page to w.
func HTML(w io.Writer, p Page) error {
	return getGuideTemplate().Execute(w, newPageView(p))
}

func newPageView(p Page) pageView {
	if p.Title == "" {
		p.Title = "TV guide"
	}
	if p.ChannelColWidth <= 0 {
		p.ChannelColWidth = defaultChannelColWidth
	}
	if p.RowHeight <= 0 {
		p.RowHeight = defaultRowHeight
	}
	if p.Location == nil {
		p.Location = time.Local
	}

	v := pageView{
		Title:          p.Title,
		Ready:          true,
		Placeholder:    p.Placeholder,
		Updated:        updatedLine(p.LastRefresh, p.Now),
		RefreshSeconds: p.RefreshSeconds,
		ChannelCol:     p.ChannelColWidth,
		RowHeight:      p.RowHeight,
		EventHeight:    max(p.RowHeight-16, 1),
	}
	if p.Grid == nil {
		if v.Placeholder == "" {
			v.Placeholder = Placeholder(false, "")
		}
		return v
	}

	g := p.Grid
	v.Placeholder = ""
	v.Width = px(g.WidthPx)
	v.NowLeft = g.NowLeft
	v.NowLeftPx = px(g.NowLeft)
	for _, t := range g.Ticks {
		v.Ticks = append(v.Ticks, tickView{Left: px(t.Left), Label: t.Label})
	}
	for _, r := range g.Rows {
		row := rowView{Number: r.Number, Name: r.Name}
		if row.Name == "" {
			row.Name = r.ChannelID
		}
		for _, c := range r.Cells {
			row.Cells = append(row.Cells, cellView{
				Left:        px(c.Geometry.Left),
				Width:       px(c.Geometry.Width),
				Color:       c.Genre.Color,
				Category:    c.Genre.Category,
				Title:       c.Event.Title,
				Time:        clock(c.Event.Start, p.Location),
				Description: c.Event.Description,
				Current:     c.Geometry.IsCurrent,
			})
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// updatedLine reads like "updated 3 minutes ago".
func updatedLine(last, now time.Time) string {
	if last.IsZero() {
		return ""
	}
	if now.IsZero() {
		now = time.Now()
	}
	return "updated " + humanize.RelTime(last, now, "ago", "from now")
}

func clock(epoch int64, loc *time.Location) string {
	if epoch <= 0 {
		return ""
	}
	return time.Unix(epoch, 0).In(loc).Format("15:04")
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	tmplGuide     *template.Template
	tmplGuideOnce sync.Once
)

func getGuideTemplate() *template.Template {
	tmplGuideOnce.Do(func() {
		tmplGuide = template.Must(template.New("guide").Parse(guideTemplateStr))
	})
	return tmplGuide
}

const guideTemplateStr = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
{{if .RefreshSeconds}}<meta http-equiv="refresh" content="{{.RefreshSeconds}}">{{end}}
<title>{{.Title}}</title>
<style>
*{box-sizing:border-box}
body{margin:0;font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#fff;color:#212121}
.epg{height:100vh;display:flex;flex-direction:column;overflow:hidden}
.sticky-header{position:sticky;top:0;z-index:100;background:#fff}
.header-title{display:flex;justify-content:space-between;padding:12px 16px;font-size:18px;font-weight:600;border-bottom:1px solid #e0e0e0}
.header-title .updated{font-size:12px;font-weight:400;color:#757575}
.time-ruler{margin-left:{{.ChannelCol}}px;height:30px;border-bottom:1px solid #e0e0e0;background:#f5f5f5;position:relative;overflow:hidden}
.tick{position:absolute;top:0;height:100%;font-size:10px;padding:6px;color:#757575;border-left:1px solid #e0e0e0}
.container{flex:1;display:flex;overflow:auto;position:relative}
.channels{position:sticky;left:0;z-index:20;background:#fff;min-width:{{.ChannelCol}}px;border-right:2px solid #e0e0e0}
.channel{height:{{.RowHeight}}px;display:flex;align-items:center;padding:0 12px;border-bottom:1px solid #e0e0e0;font-size:13px}
.grid{position:relative;flex:1}
.row{position:relative;height:{{.RowHeight}}px;border-bottom:1px solid #e0e0e0}
.event{position:absolute;top:8px;height:{{.EventHeight}}px;padding:8px;border-radius:4px;font-size:11px;overflow:hidden;color:#fff;border-left:3px solid rgba(0,0,0,0.2);display:flex;flex-direction:column}
.event.current{box-shadow:0 0 0 2px #212121 inset}
.event-title{font-weight:bold;white-space:nowrap;overflow:hidden;text-overflow:ellipsis}
.event-time{font-size:.9em;opacity:.9;margin-top:2px}
.now-line{position:absolute;top:0;bottom:0;width:2px;background:#ff4444;z-index:50;pointer-events:none}
.placeholder{padding:16px}
</style>
</head>
<body>
<div class="epg" data-ready="{{.Ready}}">
{{if .Placeholder}}
  <div class="placeholder">{{.Placeholder}}</div>
{{else}}
  <div class="sticky-header">
    <div class="header-title"><span>{{.Title}}</span><span class="updated">{{.Updated}}</span></div>
    <div class="time-ruler">
      <div id="ruler" style="position:relative; width:{{.Width}}px; height:100%;">
        {{range .Ticks}}<div class="tick" style="left:{{.Left}}px">{{.Label}}</div>{{end}}
      </div>
    </div>
  </div>
  <div class="container">
    <div class="channels">
      {{range .Rows}}<div class="channel"><strong>{{.Number}}</strong>&nbsp;{{.Name}}</div>{{end}}
    </div>
    <div class="grid" style="width:{{.Width}}px">
      <div class="now-line" style="left:{{.NowLeftPx}}px"></div>
      {{range .Rows}}<div class="row" style="width:{{$.Width}}px">
        {{range .Cells}}<div class="event{{if .Current}} current{{end}}" data-category="{{.Category}}" title="{{.Description}}" style="left:{{.Left}}px; width:{{.Width}}px; background:{{.Color}}">
          <div class="event-title">{{.Title}}</div>
          <div class="event-time">{{.Time}}</div>
        </div>{{end}}
      </div>{{end}}
    </div>
  </div>
  <script>
  (function () {
    var nowLeft = {{.NowLeft}};
    var container = document.querySelector(".container");
    var ruler = document.getElementById("ruler");
    if (!container) { return; }
    requestAnimationFrame(function () {
      container.scrollLeft = nowLeft - container.clientWidth * 0.02;
    });
    container.addEventListener("scroll", function () {
      if (ruler) { ruler.style.transform = "translateX(" + (-container.scrollLeft) + "px)"; }
    });
  })();
  </script>
{{end}}
</div>
</body>
</html>`
