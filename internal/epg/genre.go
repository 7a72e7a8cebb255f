package epg

import (
	"math"
	"strconv"
	"strings"

	"tvepg/internal/model"
)

// DefaultColor is used for events whose genre is absent or unknown.
const DefaultColor = "#607d8b"

// CodeRange is an inclusive range of numeric genre codes.
type CodeRange struct {
	Min int
	Max int
}

// Contains reports whether code lies within r.
func (r CodeRange) Contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

// Category is one row of the genre classification table.
type Category struct {
	Name     string
	Color    string
	Codes    []CodeRange
	Keywords []string // lower-case substrings
}

func (c Category) ownsCode(code int) bool {
	for _, r := range c.Codes {
		if r.Contains(code) {
			return true
		}
	}
	return false
}

func (c Category) matchesText(lower string) bool {
	for _, kw := range c.Keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Palette is an ordered genre classification table. Categories are scanned
// in declaration order and the first match wins.
type Palette struct {
	Categories []Category
	Default    string
}

// Resolution is the outcome of a genre lookup. Category is empty when the
// default color was used.
type Resolution struct {
	Category string `json:"category,omitempty"`
	Color    string `json:"color"`
}

// DefaultPalette returns the DVB content-nibble classification with English
// and Hungarian keywords.
func DefaultPalette() *Palette {
	return &Palette{
		Default: DefaultColor,
		Categories: []Category{
			{
				Name:     "movie",
				Color:    "#c62828",
				Codes:    []CodeRange{{16, 31}},
				Keywords: []string{"movie", "film", "drama", "thriller", "comedy", "western", "sci-fi", "romance"},
			},
			{
				Name:     "news",
				Color:    "#1565c0",
				Codes:    []CodeRange{{32, 47}},
				Keywords: []string{"news", "hír", "weather", "időjárás", "magazine", "documentary", "dokumentum"},
			},
			{
				Name:     "show",
				Color:    "#6a1b9a",
				Codes:    []CodeRange{{48, 63}},
				Keywords: []string{"show", "game", "quiz", "talk", "kvíz", "vetélked"},
			},
			{
				Name:     "sport",
				Color:    "#2e7d32",
				Codes:    []CodeRange{{64, 79}},
				Keywords: []string{"sport", "football", "foci", "soccer", "tennis", "formula", "olympic"},
			},
			{
				Name:     "children",
				Color:    "#f9a825",
				Codes:    []CodeRange{{80, 95}},
				Keywords: []string{"child", "kid", "gyerek", "cartoon", "rajzfilm", "animation", "mese"},
			},
			{
				Name:     "music",
				Color:    "#ad1457",
				Codes:    []CodeRange{{96, 111}},
				Keywords: []string{"music", "zene", "concert", "koncert", "ballet", "dance", "opera"},
			},
			{
				Name:     "arts",
				Color:    "#4e342e",
				Codes:    []CodeRange{{112, 127}},
				Keywords: []string{"art", "culture", "kultúr", "religion", "museum"},
			},
			{
				Name:     "social",
				Color:    "#00838f",
				Codes:    []CodeRange{{128, 143}},
				Keywords: []string{"social", "politic", "economic", "gazdas", "report"},
			},
			{
				Name:     "education",
				Color:    "#558b2f",
				Codes:    []CodeRange{{144, 159}},
				Keywords: []string{"education", "science", "tudomány", "nature", "természet", "technology"},
			},
			{
				Name:     "leisure",
				Color:    "#ef6c00",
				Codes:    []CodeRange{{160, 175}},
				Keywords: []string{"leisure", "hobby", "travel", "utazás", "cooking", "főzés", "fitness", "motoring"},
			},
		},
	}
}

// WithColors returns a copy of p with category colors and the default color
// replaced from overrides, keyed by category name ("default" for the
// fallback). Table order is unchanged.
func (p *Palette) WithColors(overrides map[string]string) *Palette {
	out := &Palette{
		Default:    p.Default,
		Categories: make([]Category, len(p.Categories)),
	}
	copy(out.Categories, p.Categories)
	if c, ok := overrides["default"]; ok && c != "" {
		out.Default = c
	}
	for i := range out.Categories {
		if c, ok := overrides[out.Categories[i].Name]; ok && c != "" {
			out.Categories[i].Color = c
		}
	}
	return out
}

// Resolve maps genre entries to a color. Entries are tried in order and the
// first one that lands in a category wins. Numeric entries are matched
// against code ranges, anything else against keywords. Resolve never fails;
// unknown input yields the default color.
func (p *Palette) Resolve(g model.Genre) Resolution {
	for _, raw := range g {
		if c, ok := p.lookup(raw); ok {
			return Resolution{Category: c.Name, Color: c.Color}
		}
	}
	return Resolution{Color: p.defaultColor()}
}

// Color is shorthand for Resolve(g).Color.
func (p *Palette) Color(g model.Genre) string {
	return p.Resolve(g).Color
}

func (p *Palette) lookup(raw string) (Category, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Category{}, false
	}
	if code, ok := parseCode(raw); ok {
		for _, c := range p.Categories {
			if c.ownsCode(code) {
				return c, true
			}
		}
		return Category{}, false
	}
	lower := strings.ToLower(raw)
	for _, c := range p.Categories {
		if c.matchesText(lower) {
			return c, true
		}
	}
	return Category{}, false
}

func (p *Palette) defaultColor() string {
	if p.Default == "" {
		return DefaultColor
	}
	return p.Default
}

// parseCode accepts decimal, 0x-prefixed hex and integral floats ("64.0").
func parseCode(s string) (int, bool) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseInt(lower[2:], 16, 32)
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
