// Package orchestrator runs the analysis end to end.
// It coordinates: validation → parsing → normalization and pairing → aggregation
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/idhash"
	"hedge-lab/internal/ingestion"
	"hedge-lab/internal/metrics"
	"hedge-lab/internal/normalization"
	"hedge-lab/internal/observability"
	"hedge-lab/internal/pairing"
	"hedge-lab/internal/scoring"
)

// Run statuses recorded in metrics.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Orchestrator coordinates one analysis run.
type Orchestrator struct {
	normalizer normalization.Normalizer
	scorer     *scoring.Scorer
	calendar   metrics.Calendar
	workers    int

	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	Normalizer normalization.Normalizer // defaults to normalization.Default()
	Scorer     *scoring.Scorer          // defaults to scoring.Default()
	Calendar   metrics.Calendar         // defaults to UTC epoch ms
	Workers    int                      // pairing workers, defaults to GOMAXPROCS

	Logger  *zap.Logger
	Metrics *observability.Metrics // optional
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Normalizer == nil {
		opts.Normalizer = normalization.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.Default()
	}
	if opts.Calendar == nil {
		opts.Calendar = metrics.EpochMillis{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		normalizer: opts.Normalizer,
		scorer:     opts.Scorer,
		calendar:   opts.Calendar,
		workers:    opts.Workers,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run executes the analysis over raw rows.
// Phases:
//  1. Validate parameters (fatal)
//  2. Validate and parse rows (defects counted)
//  3. Normalize and pair (cancellable)
//  4. Aggregate
func (o *Orchestrator) Run(ctx context.Context, rows []domain.RawRow, params domain.AnalysisParameters) (*AnalysisRun, error) {
	return o.RunWithProgress(ctx, rows, params, nil)
}

// RunFromSource loads rows from src and runs the analysis.
func (o *Orchestrator) RunFromSource(ctx context.Context, src ingestion.RowSource, params domain.AnalysisParameters) (*AnalysisRun, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	rows, err := src.LoadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	return o.Run(ctx, rows, params)
}

// RunWithProgress is Run with a per-group progress callback.
func (o *Orchestrator) RunWithProgress(ctx context.Context, rows []domain.RawRow, params domain.AnalysisParameters, progress pairing.ProgressFunc) (*AnalysisRun, error) {
	started := o.now()
	if o.metrics != nil {
		o.metrics.ActiveRuns.Inc()
		defer o.metrics.ActiveRuns.Dec()
	}

	run, err := o.run(ctx, rows, params, progress)
	o.recordOutcome(err)
	if err != nil {
		return nil, err
	}

	run.StartedAt = started
	run.Duration = o.now().Sub(started)
	o.logger.Info("analysis complete",
		zap.String("run_id", run.ID),
		zap.Int("pairs", len(run.Pairs)),
		zap.Duration("duration", run.Duration),
	)
	return run, nil
}

func (o *Orchestrator) run(ctx context.Context, rows []domain.RawRow, params domain.AnalysisParameters, progress pairing.ProgressFunc) (*AnalysisRun, error) {
	// Phase 1: parameters
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Phase 2: validation and parsing
	phase := time.Now()
	trades, quality := ingestion.Prepare(rows)
	o.observePhase("parse", phase)
	o.logger.Info("rows prepared",
		zap.Int("rows_read", quality.RowsRead),
		zap.Int("rows_valid", quality.RowsValid),
		zap.Int("trades", quality.RowsParsed),
		zap.Strings("defects", quality.Defects.Summary()),
	)
	if o.metrics != nil {
		o.metrics.RowsRead.Add(float64(quality.RowsRead))
		o.metrics.RecordDefects(o.metrics.RowDefects, quality.Defects.Counts)
	}

	// Phase 3: normalization and pairing
	phase = time.Now()
	engine := pairing.NewEngine(pairing.Options{
		Normalizer: o.normalizer,
		Scorer:     o.scorer,
		Workers:    o.workers,
		Logger:     o.logger,
		Progress:   progress,
	})
	result, err := engine.FindPairs(ctx, trades, params)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	o.observePhase("pair", phase)
	o.logger.Info("pairs found",
		zap.Int("groups", result.Stats.Groups),
		zap.Int("candidates", result.Stats.Candidates),
		zap.Int("admitted", result.Stats.Admitted),
		zap.Int("skipped", result.Stats.Skipped),
	)
	if o.metrics != nil {
		o.metrics.CandidatePairs.Add(float64(result.Stats.Candidates))
		o.metrics.RecordDefects(o.metrics.PairDefects, result.Defects.Counts)
		for i := range result.Pairs {
			o.metrics.PairsAdmitted.WithLabelValues(string(result.Pairs[i].Type)).Inc()
		}
	}

	// Phase 4: aggregation
	phase = time.Now()
	pop := metrics.PopulationOf(trades)
	aggregates := metrics.Aggregate(result.Pairs, pop, o.calendar)
	o.observePhase("aggregate", phase)

	rules := fingerprint(o.normalizer)
	return &AnalysisRun{
		ID:          idhash.ComputeRunID(params, rules, o.scorer.Weights(), trades),
		Params:      params,
		Rules:       rules,
		Trades:      trades,
		Quality:     quality,
		Population:  pop,
		Pairs:       result.Pairs,
		Stats:       result.Stats,
		PairDefects: result.Defects,
		Aggregates:  aggregates,
	}, nil
}

func (o *Orchestrator) observePhase(name string, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordPhase(name, time.Since(started).Seconds())
	}
}

func (o *Orchestrator) recordOutcome(err error) {
	status := StatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCancelled
	default:
		status = StatusFailed
	}

	if err != nil {
		o.logger.Warn("analysis stopped", zap.String("status", status), zap.Error(err))
	}
	if o.metrics == nil {
		return
	}
	o.metrics.RecordRun(status)
	if err == nil {
		o.metrics.LastSuccessfulRun.Set(float64(o.now().Unix()))
	}
}

// fingerprint identifies the normalizer for run ids.
func fingerprint(n normalization.Normalizer) string {
	if s, ok := n.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", n)
}
