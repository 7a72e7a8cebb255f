package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "tvepg/internal/log"
)

// Endpoint is a single HTTP resource an EPG source is read from.
type Endpoint struct {
	// ID is an internal identifier used for logging.
	ID  string
	URL string
	// Username/Password enable HTTP basic auth when Username is set.
	Username string
	Password string
}

// FetchResult contains the outcome of fetching a single endpoint.
type FetchResult struct {
	Endpoint  Endpoint
	Body      []byte
	FromCache bool // true if the cached body was reused (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches endpoints with conditional requests (ETag/Last-Modified)
// and keeps the last good body on disk so a flaky server still yields data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir, e.g.
// "/var/lib/tvepg/cache".
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches every endpoint. Failures are logged and returned; the
// result slice only holds endpoints that produced a body.
func (f *Fetcher) FetchAll(ctx context.Context, endpoints []Endpoint) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(endpoints))
	errs := make([]error, 0)

	for _, ep := range endpoints {
		res, err := f.FetchOne(ctx, ep)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch %s: %w", ep.ID, err))
			appLog.Error("source fetch failed", err, "id", ep.ID, "url", RedactURL(ep.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne fetches a single endpoint. On network errors and non-OK responses
// it falls back to the cached body when one exists.
func (f *Fetcher) FetchOne(ctx context.Context, ep Endpoint) (FetchResult, error) {
	if ep.URL == "" {
		return FetchResult{}, errors.New("endpoint URL is empty")
	}

	cachePath := f.cachePathForURL(ep.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if ep.Username != "" {
		req.SetBasicAuth(ep.Username, ep.Password)
	}
	// Only send validators when there is a body to revalidate.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("source fetch start", "id", ep.ID, "url", RedactURL(ep.URL))

	cached := FetchResult{Endpoint: ep, Body: cachedBody, FromCache: true}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("source fetch network error, using cached body", err, "id", ep.ID, "url", RedactURL(ep.URL))
			return cached, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          ep.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("source cache save failed", err, "id", ep.ID, "url", RedactURL(ep.URL))
		}

		appLog.Info("source fetch success", "id", ep.ID, "url", RedactURL(ep.URL), "bytes", len(body))
		return FetchResult{Endpoint: ep, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("source not modified; using cache", "id", ep.ID, "url", RedactURL(ep.URL))
		return cached, nil

	default:
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if len(cachedBody) > 0 {
			appLog.Error("source fetch non-OK, using cached body", statusErr, "id", ep.ID, "url", RedactURL(ep.URL))
			return cached, nil
		}
		return FetchResult{}, statusErr
	}
}

// cachePathForURL keys the cache directory by the first 16 hex chars of the
// URL's SHA-256.
func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL keeps scheme and host only, hiding paths, tokens and
// credentials from logs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
