package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tvepg/internal/config"
)

const tvhBody = `{
  "totalCount": 4,
  "entries": [
    {"eventId": 1, "channelUuid": "a1", "channelNumber": "2", "channelName": "Two",
     "start": 1700000000, "stop": 1700003600, "title": "Match", "genre": [64, "Football"]},
    {"eventId": 2, "channelUuid": "b1", "channelNumber": 1, "channelName": "One",
     "start": "1700000000", "stop": "1700001800", "title": "Headlines", "subtitle": "Daily",
     "genre": 32, "category": ["News"]},
    {"channelUuid": "c1", "channelNumber": "x", "start": "soon", "stop": null, "title": "Broken", "genre": null},
    "not an object"
  ]
}`

func TestDecodeTVHeadend(t *testing.T) {
	events, err := DecodeTVHeadend([]byte(tvhBody))
	if err != nil {
		t.Fatalf("DecodeTVHeadend: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	match := events[0]
	if match.ChannelID != "a1" || match.ChannelNumber != 2 || match.EventID != "1" {
		t.Fatalf("match = %+v", match)
	}
	if len(match.Genre) != 2 || match.Genre[0] != "64" || match.Genre[1] != "Football" {
		t.Fatalf("match genre = %v", match.Genre)
	}

	news := events[1]
	if news.Start != 1700000000 || news.Stop != 1700001800 {
		t.Fatalf("string times not coerced: %+v", news)
	}
	if news.Description != "Daily" {
		t.Fatalf("Description = %q, want subtitle fallback", news.Description)
	}
	if len(news.Genre) != 2 || news.Genre[0] != "32" || news.Genre[1] != "News" {
		t.Fatalf("news genre = %v", news.Genre)
	}

	broken := events[2]
	if broken.Start != 0 || broken.Stop != 0 || broken.ChannelNumber != 0 || !broken.Genre.Empty() {
		t.Fatalf("broken entry not coerced to zero values: %+v", broken)
	}
}

func TestDecodeTVHeadend_Shapes(t *testing.T) {
	tests := map[string]struct {
		body    string
		want    int
		wantErr bool
	}{
		"home assistant": {body: `{"epg": [{"channelUuid": "a", "start": 1, "stop": 2}]}`, want: 1},
		"bare array":     {body: `[{"channelUuid": "a"}, {"channelUuid": "b"}]`, want: 2},
		"empty list":     {body: `{"entries": []}`, want: 0},
		"not json":       {body: `<html>`, wantErr: true},
		"no list":        {body: `{"entries": 3}`, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			events, err := DecodeTVHeadend([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("err = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != tt.want {
				t.Fatalf("len = %d, want %d", len(events), tt.want)
			}
		})
	}
}

func TestTVHeadendEndpoint(t *testing.T) {
	ep, err := TVHeadendEndpoint(config.TVHeadendConfig{
		URL:      "http://tvh.local:9981/tvh",
		Username: "u",
		Password: "p",
		Limit:    100,
	})
	if err != nil {
		t.Fatalf("TVHeadendEndpoint: %v", err)
	}
	if ep.URL != "http://tvh.local:9981/tvh/api/epg/events/grid?limit=100" {
		t.Fatalf("URL = %q", ep.URL)
	}
	if ep.Username != "u" || ep.Password != "p" {
		t.Fatalf("credentials not carried: %+v", ep)
	}

	if _, err := TVHeadendEndpoint(config.TVHeadendConfig{URL: "tvh.local"}); err == nil {
		t.Fatal("expected error for URL without scheme")
	}
}

func TestFetcher_ConditionalRequestsAndFallback(t *testing.T) {
	var (
		calls   atomic.Int32
		failing atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ep := Endpoint{ID: "test", URL: srv.URL + "/grid"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, ep)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || string(first.Body) != "payload" {
		t.Fatalf("first = %+v", first)
	}

	second, err := f.FetchOne(ctx, ep)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || string(second.Body) != "payload" {
		t.Fatalf("304 did not use cache: %+v", second)
	}

	failing.Store(true)
	third, err := f.FetchOne(ctx, ep)
	if err != nil {
		t.Fatalf("non-OK with cache should fall back: %v", err)
	}
	if !third.FromCache || string(third.Body) != "payload" {
		t.Fatalf("third = %+v", third)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestFetcher_ErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	results, errs := f.FetchAll(context.Background(), []Endpoint{
		{ID: "bad", URL: srv.URL},
		{ID: "empty"},
	})
	if len(results) != 0 {
		t.Fatalf("results = %+v, want none", results)
	}
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2", errs)
	}
}

func TestFetcher_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != "admin" || p != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	res, err := f.FetchOne(context.Background(), Endpoint{ID: "auth", URL: srv.URL, Username: "admin", Password: "secret"})
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if string(res.Body) != "ok" {
		t.Fatalf("body = %q", res.Body)
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://user:pw@example.com/private.ics?token=abcd")
	if got != "https://example.com/...(redacted)" {
		t.Fatalf("RedactURL = %q", got)
	}
	if strings.Contains(RedactURL("not a url"), "not a url") {
		t.Fatal("unparseable URL leaked")
	}
}

func TestLoader_MergesSourcesAndKeepsGoingOnFailure(t *testing.T) {
	tvh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/epg/events/grid" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(tvhBody))
	}))
	defer tvh.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer broken.Close()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.TVHeadend.URL = tvh.URL
	cfg.ICS = []config.ICSConfig{{ID: "feed", URL: broken.URL + "/feed.ics"}}
	cfg.StaticChannels = []config.StaticChannelConfig{{
		ID:     "local",
		Number: 99,
		Programs: []config.ProgramConfig{{
			Title:           "Local News",
			RRule:           "FREQ=DAILY;BYHOUR=20;BYMINUTE=0",
			DurationMinutes: 30,
			Genre:           []string{"News"},
		}},
	}}
	cfg.Normalize()

	l := NewLoader(cfg, NewFetcher(t.TempDir()))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	events, err := l.Load(context.Background(), now)
	if err == nil || !strings.Contains(err.Error(), "feed") {
		t.Fatalf("err = %v, want feed failure", err)
	}

	var tvhCount, localCount int
	for _, e := range events {
		switch e.ChannelID {
		case "local":
			localCount++
			if e.ChannelName != "local" || e.ChannelNumber != 99 {
				t.Fatalf("static channel metadata = %+v", e)
			}
		default:
			tvhCount++
		}
	}
	if tvhCount != 3 {
		t.Fatalf("tvheadend events = %d, want 3", tvhCount)
	}
	// Horizon 24h from noon covers 20:00 today only.
	if localCount != 1 {
		t.Fatalf("static events = %d, want 1", localCount)
	}
}

func TestLoader_NoSources(t *testing.T) {
	cfg := config.DefaultConfig()
	l := NewLoader(cfg, NewFetcher(t.TempDir()))
	if _, err := l.Load(context.Background(), time.Now()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("err = %v, want ErrNoSources", err)
	}
}
