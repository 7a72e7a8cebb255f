package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tvepg/internal/config"
	"tvepg/internal/epg"
	"tvepg/internal/guide"
	"tvepg/internal/ics"
	appLog "tvepg/internal/log"
	"tvepg/internal/model"
	"tvepg/internal/render"
)

// Server exposes the guide as JSON, HTML, iCalendar and a PNG preview.
type Server struct {
	cfg         *config.Config
	guide       *guide.Service
	previewPath string
	mux         *http.ServeMux

	// OnRefresh, if set, runs after a successful POST /api/refresh, e.g. to
	// capture a new preview.
	OnRefresh func(ctx context.Context)

	now func() time.Time
}

// NewServer constructs a new Server. previewPath is the PNG served at
// /preview.png.
func NewServer(cfg *config.Config, svc *guide.Service, previewPath string) *Server {
	s := &Server{
		cfg:         cfg,
		guide:       svc,
		previewPath: previewPath,
		mux:         http.NewServeMux(),
		now:         time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tvepg", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/grid", s.handleGrid)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/guide", s.handleGuide)
	s.mux.HandleFunc("/epg.ics", s.handleICS)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/guide", http.StatusFound)
}

// emptyResponse is returned by /api/grid when there is nothing to lay out.
type emptyResponse struct {
	Empty  bool         `json:"empty"`
	Status guide.Status `json:"status"`
}

// handleGrid returns the assembled GridModel.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	grid, err := s.guide.Grid(s.now())
	switch {
	case errors.Is(err, epg.ErrEmptyData):
		writeJSON(w, http.StatusOK, emptyResponse{Empty: true, Status: s.guide.Status()})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, grid)
	}
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events []model.BroadcastEvent `json:"events"`
	Status guide.Status           `json:"status"`
}

// handleEvents returns the raw events of the last refresh.
//
// GET /api/events?channel=<id> limits the list to one channel.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	events, status := s.guide.Events()
	if ch := r.URL.Query().Get("channel"); ch != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.ChannelID == ch {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Status: status})
}

// handleRefresh reloads all sources. A partial failure still answers 200
// with the error in the status; a refresh that produced no events answers
// 502.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	err := s.guide.Refresh(r.Context())
	status := s.guide.Status()
	if err != nil && (status.Stale || status.EventCount == 0) {
		writeJSON(w, http.StatusBadGateway, status)
		return
	}
	if err == nil && s.OnRefresh != nil {
		s.OnRefresh(context.WithoutCancel(r.Context()))
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGuide serves the HTML guide, or its placeholder when there is no
// data yet.
func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	status := s.guide.Status()

	page := render.Page{
		LastRefresh:     status.LastRefresh,
		Now:             now,
		ChannelColWidth: s.cfg.Layout.ChannelColWidth,
		RowHeight:       s.cfg.Layout.RowHeight,
		Location:        s.guide.Layout().Location,
		RefreshSeconds:  s.cfg.RenderIntervalSeconds,
	}

	grid, err := s.guide.Grid(now)
	switch {
	case errors.Is(err, epg.ErrEmptyData):
		page.Placeholder = render.Placeholder(status.Loading, status.LastError)
	case err != nil:
		page.Placeholder = render.Placeholder(false, err.Error())
	default:
		page.Grid = grid
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.HTML(w, page); err != nil {
		appLog.Error("guide render failed", err)
	}
}

// handleICS exports the current events as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	events, _ := s.guide.Events()
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="epg.ics"`)
	_, _ = w.Write([]byte(ics.Export(events, s.now())))
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewPath == "" {
		http.NotFound(w, r)
		return
	}
	// http.ServeFile answers 404 for a missing file.
	http.ServeFile(w, r, s.previewPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
