// Package server exposes the latest aggregator snapshot over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jmcampanini/grove-status/internal/aggregator"
	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/status"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	router *chi.Mux
	reader aggregator.Reader
	log    *clog.Logger
}

type StatusResponse struct {
	Repository string                   `json:"repo"`
	Branch     string                   `json:"branch"`
	Status     status.PullRequestStatus `json:"status"`
	Provider   aggregator.ProviderState `json:"provider,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// New builds the router. Requests are answered from reader.Latest and never
// reach a forge.
func New(reader aggregator.Reader, cfg config.ServerConfig, logger *clog.Logger) *Server {
	if logger == nil {
		logger = clog.Default().WithPrefix("server")
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Last-Modified"},
		MaxAge:         300,
	}))

	s := &Server{router: r, reader: reader, log: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/snapshot", s.handleSnapshot)
	s.router.Get("/api/status", s.handleStatus)
}

func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving snapshots", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, updatedAt, ok := s.latest(w)
	if !ok {
		return
	}
	w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	repo := strings.TrimSpace(r.URL.Query().Get("repo"))
	branch := strings.TrimSpace(r.URL.Query().Get("branch"))
	if repo == "" || branch == "" {
		writeError(w, http.StatusBadRequest, "repo and branch are required")
		return
	}

	snap, updatedAt, ok := s.latest(w)
	if !ok {
		return
	}
	st, found := snap.Get(repo, branch)
	if !found {
		writeError(w, http.StatusNotFound, "branch is not tracked")
		return
	}

	w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	writeJSON(w, http.StatusOK, StatusResponse{
		Repository: repo,
		Branch:     branch,
		Status:     st,
		Provider:   snap.Providers[repo],
	})
}

// latest writes a 503 and reports false until the first cycle completes.
func (s *Server) latest(w http.ResponseWriter) (aggregator.Snapshot, time.Time, bool) {
	snap, updatedAt := s.reader.Latest()
	if updatedAt.IsZero() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return aggregator.Snapshot{}, time.Time{}, false
	}
	return snap, updatedAt, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func requestLogger(logger *clog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start))
		})
	}
}
