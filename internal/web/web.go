package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shiftcal/internal/cache"
	"shiftcal/internal/config"
	"shiftcal/internal/layout"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/scheduler"
	"shiftcal/internal/week"
)

// WeekProvider returns laid-out week grids.
type WeekProvider interface {
	Week(ctx context.Context, start time.Time, days int, view week.View) (week.Week, error)
}

// RefreshStatus reports the background refresh schedule on /health.
type RefreshStatus interface {
	Status() scheduler.Status
	Next() time.Time
}

// Server provides the layout API, the week page and the snapshot preview.
type Server struct {
	cfg     *config.Config
	weeks   WeekProvider
	cache   cache.Cache
	loc     *time.Location
	router  chi.Router
	refresh RefreshStatus
}

// NewServer constructs a new Server. A nil cache disables memoization of
// /api/layout responses.
func NewServer(cfg *config.Config, weeks WeekProvider, c cache.Cache) *Server {
	if c == nil {
		c = cache.NewNull()
	}
	s := &Server{
		cfg:   cfg,
		weeks: weeks,
		cache: c,
		loc:   resolveLocationOrLocal(cfg.Timezone),
	}
	s.router = s.routes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/week", s.handleWeekPage)
	r.Get("/preview.png", s.handlePreview)
	r.Route("/api", func(r chi.Router) {
		r.Post("/layout", s.handleLayout)
		r.Get("/week", s.handleWeek)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than locking everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="ShiftCal", charset="UTF-8"`)
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

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// StartServer serves s on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, s *Server) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// SetRefreshStatus adds the refresh schedule to /health. Call it before
// the server starts.
func (s *Server) SetRefreshStatus(rs RefreshStatus) {
	s.refresh = rs
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if s.refresh == nil {
		_, _ = w.Write([]byte("OK"))
		return
	}

	st := s.refresh.Status()
	var b strings.Builder
	b.WriteString("OK\n")
	fmt.Fprintf(&b, "refresh_runs: %d\n", st.Runs)
	fmt.Fprintf(&b, "last_refresh: %s\n", formatHealthTime(st.LastRun))
	fmt.Fprintf(&b, "next_refresh: %s\n", formatHealthTime(s.refresh.Next()))
	if st.LastError != nil {
		fmt.Fprintf(&b, "last_error: %s\n", strings.ReplaceAll(st.LastError.Error(), "\n", "; "))
	}
	_, _ = w.Write([]byte(b.String()))
}

func formatHealthTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

// handlePreview serves the last captured PNG snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	// ServeFile maps missing files to 404.
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

func (s *Server) layoutOptions() layout.Options {
	if s.cfg == nil {
		return layout.DefaultOptions()
	}
	return s.cfg.LayoutOptions()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
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
