// Package server exposes curation sessions over HTTP.
//
// Each session is an independent curate.Curator held in memory for the life
// of the process and addressed by a UUID:
//
//	POST   /api/sessions                              create a session
//	DELETE /api/sessions/{id}                         close it
//	GET    /api/sessions/{id}/search                  current search snapshot
//	PUT    /api/sessions/{id}/search                  {"query"} commit now
//	PUT    /api/sessions/{id}/search/input            {"text"} debounced keystroke
//	GET    /api/sessions/{id}/table                   working set
//	POST   /api/sessions/{id}/table                   {"name","version"} add selected
//	POST   /api/sessions/{id}/table/{name}/accept     accept
//	POST   /api/sessions/{id}/table/{name}/reject     reject
//	POST   /api/sessions/{id}/imports                 import a package.json
//
// Errors are JSON objects {"code", "error"}; the status follows the code.
package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/curator/pkg/curate"
	"github.com/matzehuels/curator/pkg/errors"
)

// DefaultMaxUpload bounds the size of an imported manifest.
const DefaultMaxUpload = 1 << 20

// Factory creates the Curator behind a new session.
type Factory func() *curate.Curator

// Options configures a Server.
type Options struct {
	Logger    *log.Logger
	Gatherer  prometheus.Gatherer // served on /metrics; prometheus.DefaultGatherer if nil
	MaxUpload int64               // bytes, DefaultMaxUpload if <= 0
}

// Server holds the sessions and routes requests to them.
type Server struct {
	factory   Factory
	logger    *log.Logger
	gatherer  prometheus.Gatherer
	maxUpload int64

	mu       sync.RWMutex
	sessions map[uuid.UUID]*curate.Curator
}

// New returns a Server creating sessions with factory.
func New(factory Factory, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	return &Server{
		factory:   factory,
		logger:    opts.Logger,
		gatherer:  opts.Gatherer,
		maxUpload: opts.MaxUpload,
		sessions:  make(map[uuid.UUID]*curate.Curator),
	}
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Delete("/", s.handleDeleteSession)

			r.Get("/search", s.handleGetSearch)
			r.Put("/search", s.handleCommitSearch)
			r.Put("/search/input", s.handleSearchInput)

			r.Get("/table", s.handleGetTable)
			r.Post("/table", s.handleAddSelected)
			r.Post("/table/{name}/{action}", s.handleSetStatus)

			r.Post("/imports", s.handleImport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Error: r.Method + " not allowed"})
	})
	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	s.logger.Info("server stopped")
	return err
}

// Close closes every session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*curate.Curator)
	s.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}

// Len returns the number of open sessions.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type sessionKey struct{}

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "id")
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, errors.New(errors.ErrCodeSessionNotFound, "session %q not found", raw))
			return
		}
		s.mu.RLock()
		cur, ok := s.sessions[id]
		s.mu.RUnlock()
		if !ok {
			writeError(w, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, cur)))
	})
}

func sessionFrom(r *http.Request) *curate.Curator {
	return r.Context().Value(sessionKey{}).(*curate.Curator)
}
