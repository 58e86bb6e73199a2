// Package api serves the local health and Prometheus metrics listener. It
// never exposes accounts, secrets or codes.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Config holds server configuration.
type Config struct {
	ListenAddr string
}

// HealthCheck reports whether the vault can currently be read.
type HealthCheck func(ctx context.Context) error

// Server is the local listener.
type Server struct {
	cfg   Config
	check HealthCheck
	log   zerolog.Logger

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer creates a Server. A nil check always reports healthy.
func NewServer(cfg Config, check HealthCheck) *Server {
	if check == nil {
		check = func(context.Context) error { return nil }
	}
	return &Server{cfg: cfg, check: check, log: log.Logger}
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l zerolog.Logger) *Server {
	s.log = l
	return s
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(logMiddleware(s.log))

	r.Handle("/metrics", MetricsHandler())
	r.Get("/v1/sys/health", s.HealthHandler)

	return r
}

// HealthHandler returns 200 when the vault is readable and 503 otherwise.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	status := "ok"
	readable := true
	if err := s.check(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		code = http.StatusServiceUnavailable
		status = "degraded"
		readable = false
		vaultHealthy.Set(0)
	} else {
		vaultHealthy.Set(1)
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"vault_readable": readable,
		"version":        Version,
	})
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.BuildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("starting metrics listener")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
