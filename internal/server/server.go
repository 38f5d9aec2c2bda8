// Package server provides the HTTP server for backup checks, metrics and health checks.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imedwei/s3-backup-checker/internal/health"
)

// Server represents the HTTP server.
type Server struct {
	server  *http.Server
	router  chi.Router
	logger  *slog.Logger
	checker *health.Checker
}

// Config holds server configuration.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	HealthTimeout   time.Duration
}

// DefaultConfig returns default server configuration. The write timeout
// leaves room for a storage listing with retries.
func DefaultConfig() Config {
	return Config{
		Port:            9090,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    2 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthTimeout:   10 * time.Second,
	}
}

// New creates a new HTTP server serving checks through handler.
func New(config Config, logger *slog.Logger, handler *CheckHandler) *Server {
	router := chi.NewRouter()
	checker := health.NewChecker(config.HealthTimeout)

	router.Use(RequestLogger(logger))
	router.Use(MetricsMiddleware())

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", checker.Handler())
	router.Get("/ready", health.ReadinessHandler())
	router.Get("/live", health.LivenessHandler())

	router.Get("/{environment}/{backup}", handler.ServeHTTP)
	router.Get("/{environment}/{backup}/", handler.ServeHTTP)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "Please specify an environment and backup")
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:  server,
		router:  router,
		logger:  logger,
		checker: checker,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RegisterHealthCheck registers a health check function.
func (s *Server) RegisterHealthCheck(name string, checkFunc health.CheckFunc) {
	s.checker.RegisterCheck(name, checkFunc)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
