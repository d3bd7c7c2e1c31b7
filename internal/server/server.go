// Package server implements the HTTP server that exposes the case retrieval
// engine via a REST API: case record CRUD, hybrid retrieval queries, the
// reconcile admin endpoint, and health/readiness/metrics probes.
// The server is started by the `casematch serve` CLI command.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/casematch-go/internal/logging"
)

// New constructs a Server from the engine components and config.
func New(ing ingestor, ret retriever, cases caseReader, cfg *Config) (*Server, error) {
	if ing == nil {
		return nil, fmt.Errorf("server: ingestor must not be nil")
	}
	if ret == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if cases == nil {
		return nil, fmt.Errorf("server: case reader must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Query requests wait on the embedding backend and the vector index.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		ingestor:  ing,
		retriever: ret,
		cases:     cases,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: CASEMATCH_API_KEY not set — API authentication is disabled")
	}

	// protected wraps an endpoint handler with auth, rate limiting, and
	// per-handler metrics. Probe endpoints stay outside auth so orchestration
	// can reach them without credentials.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/cases", protected("create_case", s.handleCreateCase))
	mux.Handle("GET /api/cases", protected("list_cases", s.handleListCases))
	mux.Handle("GET /api/cases/{id}", protected("get_case", s.handleGetCase))
	mux.Handle("POST /api/query", protected("query", s.handleQuery))
	mux.Handle("POST /api/admin/reconcile", protected("reconcile", s.handleReconcile))
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
