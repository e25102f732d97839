// Package server exposes hedge-pair analysis over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hedge-lab/internal/ingestion"
	"hedge-lab/internal/observability"
	"hedge-lab/internal/orchestrator"
	"hedge-lab/internal/query"
	"hedge-lab/internal/reporting"
)

// Config holds HTTP server settings.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
	PageSize       int // default view page size
	Retention      int // jobs kept in memory
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxUploadBytes: 32 << 20,
		PageSize:       query.DefaultPageSize,
		Retention:      20,
	}
}

// Options for creating Server.
type Options struct {
	Config       Config
	Orchestrator *orchestrator.Orchestrator
	Store        ingestion.RowSource // optional, enables source=store runs
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	// MetricsHandler serves /metrics; nil serves the default registry.
	// Set DisableMetricsRoute when metrics are served on a separate address.
	MetricsHandler      http.Handler
	DisableMetricsRoute bool
}

// Server is the HTTP API.
type Server struct {
	cfg       Config
	router    *mux.Router
	http      *http.Server
	orch      *orchestrator.Orchestrator
	store     ingestion.RowSource
	registry  *Registry
	generator *reporting.Generator
	logger    *zap.Logger
	metrics   *observability.Metrics

	// baseCtx parents every async job; cancelled on Shutdown.
	baseCtx    context.Context
	cancelJobs context.CancelFunc
	now        func() time.Time
	newID      func() string
}

// New creates a server and registers its routes.
func New(opts Options) *Server {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if opts.Orchestrator == nil {
		opts.Orchestrator = orchestrator.New(orchestrator.Options{Logger: opts.Logger, Metrics: opts.Metrics})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = observability.Handler()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		router:     mux.NewRouter(),
		orch:       opts.Orchestrator,
		store:      opts.Store,
		registry:   NewRegistry(cfg.Retention),
		generator:  reporting.NewGenerator(),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		baseCtx:    ctx,
		cancelJobs: cancel,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      newJobID,
	}
	s.routes(opts.MetricsHandler, !opts.DisableMetricsRoute)

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes(metricsHandler http.Handler, withMetrics bool) {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if withMetrics {
		s.router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	s.router.HandleFunc("/runs", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/runs", s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}", s.handleCancel).Methods(http.MethodDelete)
	s.router.HandleFunc("/runs/{id}/pairs", s.handlePairs).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/pairs/{pairID:[0-9]+}", s.handlePair).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/summary", s.handleSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/patterns", s.handlePatterns).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/export.{format:csv|json|xlsx|md}", s.handleExport).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/events", s.handleEvents).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the job registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.cfg.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown cancels running jobs and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	s.cancelJobs()
	s.registry.CancelAll()
	return s.http.Shutdown(ctx)
}
