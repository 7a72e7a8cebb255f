package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tvepg/internal/model"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Fatalf("Listen = %q, want %q", cfg.Listen, defaultListen)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.Layout.PixelsPerMinute != cfg.Layout.PixelsPerMinute {
		t.Fatalf("round trip changed layout: %+v vs %+v", again.Layout, cfg.Layout)
	}
}

func TestLoad_PartialConfigIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
timezone: UTC
layout:
  px_per_minute: 4
tvheadend:
  url: http://tvh.local:9981
colors:
  sport: "#00ff00"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Layout.PixelsPerMinute != 4 {
		t.Fatalf("PixelsPerMinute = %v, want 4", cfg.Layout.PixelsPerMinute)
	}
	if cfg.Layout.MinEventWidth != 5 || cfg.Layout.RowHeight != defaultRowHeight {
		t.Fatalf("layout defaults not applied: %+v", cfg.Layout)
	}
	if cfg.Layout.Gap() != 4 {
		t.Fatalf("absent card_gap = %v, want default 4", cfg.Layout.Gap())
	}
	if cfg.RefreshCron != defaultRefreshCron {
		t.Fatalf("RefreshCron = %q", cfg.RefreshCron)
	}
	if cfg.TVHeadend.Limit != defaultTVHLimit {
		t.Fatalf("TVHeadend.Limit = %d", cfg.TVHeadend.Limit)
	}
	if cfg.RenderInterval() != time.Minute {
		t.Fatalf("RenderInterval = %v, want 1m", cfg.RenderInterval())
	}

	ec := cfg.EPG()
	if ec.Location != time.UTC {
		t.Fatalf("Location = %v, want UTC", ec.Location)
	}
	if got := ec.Palette.Color(model.Genre{"67"}); got != "#00ff00" {
		t.Fatalf("sport color = %q, want override", got)
	}
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"cron":     "refresh: \"not a cron\"\n",
		"timezone": "timezone: Mars/Olympus\n",
		"static":   "static_channels:\n  - id: local\n    programs:\n      - title: News\n",
		"color":    "colors:\n  sport: \"rgb(0,0,0)\"\n",
		"yaml":     "listen: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSave_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.TVHeadend.URL = "http://example"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "http://example") {
		t.Fatalf("saved config missing url: %s", data)
	}
}

func TestSave_Errors(t *testing.T) {
	if err := Save("", DefaultConfig()); err == nil {
		t.Fatal("expected error for empty path")
	}
	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestLoad_CardGap(t *testing.T) {
	tests := map[string]struct {
		yaml string
		want float64
	}{
		"absent":   {yaml: "layout:\n  px_per_minute: 6\n", want: 4},
		"zero":     {yaml: "layout:\n  card_gap: 0\n", want: 0},
		"custom":   {yaml: "layout:\n  card_gap: 2.5\n", want: 2.5},
		"negative": {yaml: "layout:\n  card_gap: -1\n", want: 4},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := cfg.EPG().CardGap; got != tt.want {
				t.Fatalf("CardGap = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate_HexColors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Colors = map[string]string{"default": "#fff", "sport": "#00ff00", "news": "#1565c0cc"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, bad := range []string{"red", "rgb(0,0,0)", "#12345", "00ff00"} {
		cfg.Colors = map[string]string{"sport": bad}
		if err := cfg.Validate(); err == nil {
			t.Errorf("color %q accepted", bad)
		}
	}
}
