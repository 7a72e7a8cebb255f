package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGuideURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8080": "http://127.0.0.1:8080/guide",
		"0.0.0.0:9000":   "http://127.0.0.1:9000/guide",
		":8080":          "http://127.0.0.1:8080/guide",
		"[::]:8080":      "http://127.0.0.1:8080/guide",
		"tv.lan:80":      "http://tv.lan:80/guide",
	}
	for listen, want := range tests {
		if got := GuideURL(listen); got != want {
			t.Errorf("GuideURL(%q) = %q, want %q", listen, got, want)
		}
	}
}

func TestCaptureGuidePNG_RequiresURLAndOutput(t *testing.T) {
	ctx := context.Background()
	if err := CaptureGuidePNG(ctx, CaptureOptions{OutputPath: "x.png"}); err == nil {
		t.Fatal("expected error without URL")
	}
	if err := CaptureGuidePNG(ctx, CaptureOptions{URL: "http://127.0.0.1/guide"}); err == nil {
		t.Fatal("expected error without OutputPath")
	}
}

func TestWithDefaults(t *testing.T) {
	o, err := CaptureOptions{URL: "u", OutputPath: "p"}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults: %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout == 0 {
		t.Fatalf("defaults not applied: %+v", o)
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.png")
	if err := writeAtomic(path, []byte("png")); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
}
