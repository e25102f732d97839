// Package main runs one hedge-pair analysis from a CSV file or a trade row
// store and writes the reports to disk.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hedge-lab/internal/config"
	"hedge-lab/internal/domain"
	"hedge-lab/internal/ingestion"
	"hedge-lab/internal/logger"
	"hedge-lab/internal/metrics"
	"hedge-lab/internal/normalization"
	"hedge-lab/internal/orchestrator"
	"hedge-lab/internal/reporting"
	"hedge-lab/internal/storage/backend"
	"hedge-lab/internal/verification"
)

type options struct {
	input     string
	store     string
	outputDir string
	formats   []string
	envFile   string
	rulesFile string
	ruleSet   string
	workers   int
	timezone  string
	verify    int

	params domain.AnalysisParameters
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{params: domain.DefaultAnalysisParameters()}

	cmd := &cobra.Command{
		Use:   "analyze [trades.csv]",
		Short: "Find hedge pairs in a trade export",
		Long: `Reads trades from a CSV file, or from the configured trade row store
when no file is given, finds hedge pairs and writes the reports.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			return run(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.store, "store", "", "trade row store when no CSV is given: postgres, clickhouse (default from env)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "output", "directory for report files")
	f.StringSliceVar(&opts.formats, "format", []string{"csv", "json", "md"}, "report formats: csv, json, xlsx, md")
	f.StringVar(&opts.envFile, "env-file", "", "env file to load instead of .env")
	f.StringVar(&opts.rulesFile, "rules", "", "YAML normalization rules (overrides HEDGE_RULES_FILE)")
	f.StringVar(&opts.ruleSet, "rule-set", "", "built-in normalization rules: default, extended (overrides HEDGE_RULES)")
	f.IntVar(&opts.workers, "workers", 0, "pairing workers (overrides HEDGE_WORKERS)")
	f.StringVar(&opts.timezone, "timezone", "", "zone for the hour-of-day histogram (overrides HEDGE_TIMEZONE)")
	f.IntVar(&opts.verify, "verify", 0, "re-run N times and fail unless every run is identical")

	f.Float64Var(&opts.params.PriceThreshold, "price-threshold", opts.params.PriceThreshold, "max entry price gap")
	f.Float64Var(&opts.params.ConfidenceThreshold, "confidence-threshold", opts.params.ConfidenceThreshold, "min confidence, 0..1")
	f.BoolVar(&opts.params.IncludeClosePrice, "include-close-price", opts.params.IncludeClosePrice, "score close price similarity")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts.envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	applyOverrides(cfg, cmd, opts)

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := execute(cmd.Context(), cfg, opts, log); err != nil {
		log.Error("analysis failed", zap.Error(err))
		return err
	}
	return nil
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

// applyOverrides lets explicitly set flags win over the environment.
func applyOverrides(cfg *config.Config, cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	if f.Changed("rules") {
		cfg.RulesFile = opts.rulesFile
	}
	if f.Changed("rule-set") {
		cfg.Rules = opts.ruleSet
	}
	if f.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if f.Changed("timezone") {
		cfg.Timezone = opts.timezone
	}
}

func execute(ctx context.Context, cfg *config.Config, opts *options, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	formats, err := parseFormats(opts.formats)
	if err != nil {
		return err
	}
	if err := opts.params.Validate(); err != nil {
		return err
	}

	orchOpts, err := orchestratorOptions(cfg, log)
	if err != nil {
		return err
	}

	rows, err := loadRows(ctx, cfg, opts, log)
	if err != nil {
		return err
	}

	if opts.verify > 0 {
		report, err := verification.VerifyDeterminism(ctx, orchestrator.New(orchOpts), rows, opts.params, opts.verify)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !report.Identical {
			for _, r := range report.Divergent() {
				for _, d := range r.Divergences {
					log.Warn("divergence", zap.Int("run", r.Run), zap.String("detail", d.String()))
				}
			}
			return fmt.Errorf("verify: %d of %d runs diverged", len(report.Divergent()), report.Runs)
		}
		log.Info("runs identical", zap.Int("runs", report.Runs), zap.String("run_id", report.RunID))
	}

	run, err := orchestrator.New(orchOpts).Run(ctx, rows, opts.params)
	if err != nil {
		return err
	}

	written, err := writeReports(opts.outputDir, reporting.NewGenerator().Generate(run), formats)
	if err != nil {
		return err
	}

	s := run.Summary()
	log.Info("analysis written",
		zap.String("run_id", run.ID),
		zap.Int("pairs", s.TotalPairs),
		zap.Int("self_hedges", s.SelfHedges),
		zap.Int("inter_user_hedges", s.InterUserHedges),
		zap.Float64("avg_confidence", s.AvgConfidence),
		zap.Strings("files", written),
	)
	return nil
}

func orchestratorOptions(cfg *config.Config, log *zap.Logger) (orchestrator.Options, error) {
	rules, err := normalization.Load(cfg.Rules, cfg.RulesFile)
	if err != nil {
		return orchestrator.Options{}, err
	}
	cal, err := metrics.NewEpochMillis(cfg.Timezone)
	if err != nil {
		return orchestrator.Options{}, fmt.Errorf("timezone: %w", err)
	}
	return orchestrator.Options{
		Normalizer: rules,
		Calendar:   cal,
		Workers:    cfg.Workers,
		Logger:     log,
	}, nil
}

func loadRows(ctx context.Context, cfg *config.Config, opts *options, log *zap.Logger) ([]domain.RawRow, error) {
	if opts.input != "" {
		log.Info("reading csv", zap.String("path", opts.input))
		return ingestion.CSVFileSource{Path: opts.input}.LoadRows(ctx)
	}

	kind, err := backend.ParseKind(opts.store)
	if err != nil {
		return nil, err
	}
	store, kind, cleanup, err := backend.Open(ctx, backend.Options{
		Kind:          kind,
		PostgresDSN:   cfg.PostgresDSN,
		ClickhouseDSN: cfg.ClickhouseDSN,
		Logger:        log,
	})
	defer cleanup()
	if err != nil {
		return nil, err
	}
	if kind == backend.KindMemory {
		return nil, errors.New("no input: pass a CSV file or configure HEDGE_POSTGRES_DSN / HEDGE_CLICKHOUSE_DSN")
	}

	log.Info("loading rows from store", zap.String("store", string(kind)))
	return store.LoadRows(ctx)
}

var knownFormats = map[string]bool{"csv": true, "json": true, "xlsx": true, "md": true}

func parseFormats(in []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		if !knownFormats[f] {
			return nil, fmt.Errorf("unknown format %q", f)
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("no report format selected")
	}
	return out, nil
}

// writeReports writes one file per format and returns their paths.
func writeReports(dir string, report *reporting.Report, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, format := range formats {
		path := filepath.Join(dir, fmt.Sprintf("hedge_pairs_%s.%s", report.RunID, format))
		if err := writeReport(path, report, format); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeReport(path string, report *reporting.Report, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	switch format {
	case "csv":
		return reporting.WriteCSV(f, report.Pairs)
	case "json":
		return reporting.WriteJSON(f, report)
	case "xlsx":
		return reporting.WriteXLSX(f, report)
	case "md":
		_, err = f.WriteString(reporting.RenderMarkdown(report))
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}
