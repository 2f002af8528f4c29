// Package core provides the HTTP chassis for mailblast: the chi router, the
// global middleware chain, response helpers, and the liveness endpoint. It
// enforces cross-cutting concerns -- panic recovery, request correlation,
// logging, and compression -- before requests reach the page and API handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mailblast/internal/config"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
// Slow-loris protection for a tool that sits on operator networks but is still
// reachable over plain HTTP.
const readHeaderTimeout = 10 * time.Second

// Server encapsulates the HTTP-facing dependencies, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	router *chi.Mux
	http   *http.Server
}

// NewServer initializes the router and prepares the server for route mounting.
// It performs a fail-fast check on critical dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router. Used by the
// net/http server and directly by handler tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins serving on the configured listen address and blocks until the
// server stops. A stop triggered by Shutdown is reported as nil; any other
// listener failure is returned.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.Config.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.Logger.Info("server listening", slog.String("addr", s.Config.Server.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown performs a graceful termination of the HTTP listener, letting
// in-flight requests (including a running dispatch) finish within the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.Logger.Error("error shutting down http server", "error", err)
			return fmt.Errorf("shutting down http server: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
