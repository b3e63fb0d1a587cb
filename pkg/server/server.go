// Package server exposes merging over HTTP.
//
// Routes:
//
//	POST /v1/merge   multipart form, one "feed" part per document in
//	                 increasing priority; responds with the merged XML
//	GET  /healthz    liveness probe
//	GET  /version    build information
//
// Errors are returned as JSON {"code": ..., "message": ...} with a status
// derived from the error code.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/ovalmerge/pkg/pipeline"
)

// Defaults for Config.
const (
	DefaultAddr           = "localhost:8080"
	DefaultMaxUploadBytes = 256 << 20
	DefaultTimeout        = 2 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	Timeout        time.Duration
	Logger         *log.Logger

	// Merge holds the merge defaults; requests may override indent and
	// refresh.
	Merge pipeline.Options
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
}

// Server serves merge requests using a shared pipeline Runner.
type Server struct {
	runner *pipeline.Runner
	cfg    Config
	router chi.Router
}

// New creates a Server. The runner's cache is shared by all requests.
func New(runner *pipeline.Runner, cfg Config) *Server {
	cfg.setDefaults()
	s := &Server{runner: runner, cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Timeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/merge", s.handleMerge)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.cfg.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}
