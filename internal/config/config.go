package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"tvepg/internal/epg"
)

// TVHeadendConfig points at a TVHeadend server whose EPG grid is pulled.
type TVHeadendConfig struct {
	// URL is the server base URL, e.g. "http://tvh.local:9981". Empty
	// disables the source.
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	// Limit caps the number of grid entries requested.
	Limit int `yaml:"limit" json:"limit"`
}

// ICSConfig describes an iCalendar feed that is shown as a single channel.
type ICSConfig struct {
	URL    string `yaml:"url" json:"url"`
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Number int    `yaml:"number" json:"number"`
}

// ProgramConfig is a recurring program on a static channel.
type ProgramConfig struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// RRule is an RFC 5545 recurrence rule, optionally prefixed with a
	// DTSTART line, e.g. "DTSTART:20250101T200000Z\nRRULE:FREQ=DAILY".
	RRule           string   `yaml:"rrule" json:"rrule"`
	DurationMinutes int      `yaml:"duration_minutes" json:"duration_minutes"`
	Genre           []string `yaml:"genre,omitempty" json:"genre,omitempty"`
}

// StaticChannelConfig is a channel without an EPG feed whose schedule is
// declared in the config file.
type StaticChannelConfig struct {
	ID       string          `yaml:"id" json:"id"`
	Number   int             `yaml:"number" json:"number"`
	Name     string          `yaml:"name" json:"name"`
	Programs []ProgramConfig `yaml:"programs" json:"programs"`
}

// LayoutConfig carries the grid scale and the row/column sizes used by the
// HTML renderer. CardGap is a pointer so an absent key gets the default
// while an explicit 0 disables the gap.
type LayoutConfig struct {
	PixelsPerMinute float64  `yaml:"px_per_minute" json:"px_per_minute"`
	CardGap         *float64 `yaml:"card_gap" json:"card_gap"`
	MinEventWidth   float64  `yaml:"min_event_width" json:"min_event_width"`
	ChannelColWidth int      `yaml:"channel_col_width" json:"channel_col_width"`
	RowHeight       int      `yaml:"row_height" json:"row_height"`
}

// CaptureConfig controls the headless Chromium screenshot of the guide.
type CaptureConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the guide and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for tick and time labels.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a standard 5-field cron expression driving source refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RenderIntervalSeconds is the minimum time between two grid assemblies
	// while the event list is unchanged.
	RenderIntervalSeconds int `yaml:"render_interval_seconds" json:"render_interval_seconds"`

	// HorizonHours and BackfillHours bound the expansion of static channels
	// and iCalendar feeds around now.
	HorizonHours  int `yaml:"horizon_hours" json:"horizon_hours"`
	BackfillHours int `yaml:"backfill_hours" json:"backfill_hours"`

	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// Colors overrides genre category colors by category name; the key
	// "default" overrides the fallback color. Values must be hex colors.
	Colors map[string]string `yaml:"colors,omitempty" json:"colors,omitempty"`

	TVHeadend      TVHeadendConfig       `yaml:"tvheadend" json:"tvheadend"`
	ICS            []ICSConfig           `yaml:"ics" json:"ics"`
	StaticChannels []StaticChannelConfig `yaml:"static_channels" json:"static_channels"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// hexColor accepts #rgb, #rrggbb and #rrggbbaa. Other CSS color forms are
// rejected by the HTML renderer's escaping.
var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultRefreshCron    = "*/15 * * * *"
	defaultRenderInterval = 60
	defaultHorizonHours   = 24
	defaultBackfillHours  = 2
	defaultTVHLimit       = 5000
	defaultChannelCol     = 150
	defaultRowHeight      = 80
	defaultCaptureWidth   = 1600
	defaultCaptureHeight  = 900
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                defaultListen,
		Timezone:              "Local",
		LogLevel:              "info",
		RefreshCron:           defaultRefreshCron,
		RenderIntervalSeconds: defaultRenderInterval,
		HorizonHours:          defaultHorizonHours,
		BackfillHours:         defaultBackfillHours,
		Layout: LayoutConfig{
			PixelsPerMinute: epg.DefaultPixelsPerMinute,
			CardGap:         floatPtr(epg.DefaultCardGap),
			MinEventWidth:   epg.DefaultMinEventWidth,
			ChannelColWidth: defaultChannelCol,
			RowHeight:       defaultRowHeight,
		},
		TVHeadend:      TVHeadendConfig{Limit: defaultTVHLimit},
		ICS:            []ICSConfig{},
		StaticChannels: []StaticChannelConfig{},
		Capture: CaptureConfig{
			Width:  defaultCaptureWidth,
			Height: defaultCaptureHeight,
		},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.RenderIntervalSeconds <= 0 {
		c.RenderIntervalSeconds = defaultRenderInterval
	}
	if c.HorizonHours <= 0 {
		c.HorizonHours = defaultHorizonHours
	}
	if c.BackfillHours < 0 {
		c.BackfillHours = 0
	}
	if c.Layout.PixelsPerMinute <= 0 {
		c.Layout.PixelsPerMinute = epg.DefaultPixelsPerMinute
	}
	if c.Layout.CardGap == nil || *c.Layout.CardGap < 0 {
		c.Layout.CardGap = floatPtr(epg.DefaultCardGap)
	}
	if c.Layout.MinEventWidth <= 0 {
		c.Layout.MinEventWidth = epg.DefaultMinEventWidth
	}
	if c.Layout.ChannelColWidth <= 0 {
		c.Layout.ChannelColWidth = defaultChannelCol
	}
	if c.Layout.RowHeight <= 0 {
		c.Layout.RowHeight = defaultRowHeight
	}
	if c.TVHeadend.Limit <= 0 {
		c.TVHeadend.Limit = defaultTVHLimit
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.StaticChannels == nil {
		c.StaticChannels = []StaticChannelConfig{}
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultCaptureWidth
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultCaptureHeight
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: invalid refresh schedule %q: %w", c.RefreshCron, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	for name, color := range c.Colors {
		if !hexColor.MatchString(color) {
			return fmt.Errorf("config: colors.%s: %q is not a hex color like #1e88e5", name, color)
		}
	}
	for i, sc := range c.StaticChannels {
		if sc.ID == "" {
			return fmt.Errorf("config: static_channels[%d]: id is required", i)
		}
		for j, p := range sc.Programs {
			if p.RRule == "" {
				return fmt.Errorf("config: static_channels[%d].programs[%d]: rrule is required", i, j)
			}
		}
	}
	return nil
}

// Gap returns the card gap, falling back to the default when unset.
func (l LayoutConfig) Gap() float64 {
	if l.CardGap == nil {
		return epg.DefaultCardGap
	}
	return *l.CardGap
}

func floatPtr(v float64) *float64 { return &v }

// Location resolves Timezone. "Local" and "" map to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// RenderInterval returns RenderIntervalSeconds as a duration.
func (c *Config) RenderInterval() time.Duration {
	return time.Duration(c.RenderIntervalSeconds) * time.Second
}

// EPG builds the layout engine configuration.
func (c *Config) EPG() epg.Config {
	loc, err := c.Location()
	if err != nil {
		loc = time.Local
	}
	palette := epg.DefaultPalette()
	if len(c.Colors) > 0 {
		palette = palette.WithColors(c.Colors)
	}
	return epg.Config{
		PixelsPerMinute: c.Layout.PixelsPerMinute,
		CardGap:         c.Layout.Gap(),
		MinEventWidth:   c.Layout.MinEventWidth,
		Location:        loc,
		Palette:         palette,
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned. Otherwise the YAML is read, normalized and
// validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tvepg-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
