// Package main serves hedge-pair analysis over HTTP:
// - CSV upload, synchronous or as a background run
// - paginated pair views, summaries and exports per run
// - run progress over websocket, Prometheus metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hedge-lab/internal/config"
	"hedge-lab/internal/logger"
	"hedge-lab/internal/metrics"
	"hedge-lab/internal/normalization"
	"hedge-lab/internal/observability"
	"hedge-lab/internal/orchestrator"
	"hedge-lab/internal/server"
	"hedge-lab/internal/storage/backend"
)

const shutdownTimeout = 30 * time.Second

type options struct {
	envFile     string
	addr        string
	metricsAddr string
	store       string
	migrate     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve hedge-pair analysis over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.envFile, "env-file", "", "env file to load instead of .env")
	f.StringVar(&opts.addr, "addr", "", "listen address (overrides HEDGE_HTTP_ADDR)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "separate Prometheus address (overrides HEDGE_METRICS_ADDR)")
	f.StringVar(&opts.store, "store", "", "trade row store for source=store runs: memory, postgres, clickhouse (default from env)")
	f.BoolVar(&opts.migrate, "migrate", false, "apply store migrations on startup")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	var (
		cfg *config.Config
		err error
	)
	if opts.envFile != "" {
		cfg, err = config.Load(opts.envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr = opts.addr
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := serve(cfg, opts, log); err != nil {
		log.Error("server error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func serve(cfg *config.Config, opts *options, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kind, err := backend.ParseKind(opts.store)
	if err != nil {
		return err
	}
	store, kind, cleanup, err := backend.Open(ctx, backend.Options{
		Kind:          kind,
		PostgresDSN:   cfg.PostgresDSN,
		ClickhouseDSN: cfg.ClickhouseDSN,
		Migrate:       opts.migrate,
		Logger:        log,
	})
	defer cleanup()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	log.Info("trade row store ready", zap.String("store", string(kind)))

	rules, err := normalization.Load(cfg.Rules, cfg.RulesFile)
	if err != nil {
		return err
	}
	cal, err := metrics.NewEpochMillis(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	m := observability.DefaultMetrics
	orch := orchestrator.New(orchestrator.Options{
		Normalizer: rules,
		Calendar:   cal,
		Workers:    cfg.Workers,
		Logger:     log.Named("orchestrator"),
		Metrics:    m,
	})

	srv := server.New(server.Options{
		Config: server.Config{
			Addr:           cfg.HTTPAddr,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxUploadBytes: cfg.MaxUploadBytes(),
			PageSize:       cfg.PageSize,
			Retention:      cfg.RunRetention,
		},
		Orchestrator:        orch,
		Store:               store,
		Logger:              log.Named("http"),
		Metrics:             m,
		DisableMetricsRoute: cfg.MetricsAddr != "",
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.MetricsAddr, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		// A second signal skips the graceful path.
		select {
		case sig := <-sigCh:
			log.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-done:
		}
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
