package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davidbz/tokenledger/internal/config"
	"github.com/davidbz/tokenledger/internal/http/middleware"
	"github.com/davidbz/tokenledger/internal/metrics"
	"github.com/davidbz/tokenledger/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      *config.ServerConfig
	handler     *Handler
	metrics     http.Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server. The metrics endpoint is mounted only
// when metrics are enabled.
func NewServer(
	cfg *config.ServerConfig,
	metricsCfg *config.MetricsConfig,
	corsCfg *config.CORSConfig,
	handler *Handler,
	collector *metrics.Collector,
) *Server {
	s := &Server{
		config:      cfg,
		handler:     handler,
		middlewares: middleware.BuildMiddlewareChain(corsCfg),
	}
	if metricsCfg.Enabled && collector != nil {
		s.metrics = collector.Handler()
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	return s
}

// Routes returns the routed handler with the middleware chain applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handler.HandleHealth)
	mux.HandleFunc("/v1/completions", s.handler.HandleCompletion)
	mux.HandleFunc("/v1/usage", s.handler.HandleRecordUsage)
	mux.HandleFunc("/v1/usage/summary", s.handler.HandleSummary)
	mux.HandleFunc("/v1/usage/snapshot", s.handler.HandleSnapshot)
	mux.HandleFunc("/v1/usage/persist", s.handler.HandlePersist)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	return s.middlewares(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
