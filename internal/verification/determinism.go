package verification

import (
	"context"
	"errors"
	"fmt"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/orchestrator"
)

// ErrTooFewRuns is returned when fewer than two runs are requested.
var ErrTooFewRuns = errors.New("determinism check needs at least two runs")

// Runner executes one analysis. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, rows []domain.RawRow, params domain.AnalysisParameters) (*orchestrator.AnalysisRun, error)
}

// RunResult summarizes one re-run against the reference.
type RunResult struct {
	Run         int // 1-based; run 1 is the reference
	RunID       string
	Pairs       int
	Match       bool
	Divergences []FieldDivergence
}

// Report contains the results of a determinism check.
type Report struct {
	Runs      int
	Identical bool
	RunID     string // reference run id
	Pairs     int    // reference pair count
	Results   []RunResult
}

// Divergent returns the re-runs that did not match.
func (r *Report) Divergent() []RunResult {
	var out []RunResult
	for _, res := range r.Results {
		if !res.Match {
			out = append(out, res)
		}
	}
	return out
}

// VerifyDeterminism runs the same analysis runs times and compares every
// re-run with the first.
func VerifyDeterminism(ctx context.Context, runner Runner, rows []domain.RawRow, params domain.AnalysisParameters, runs int) (*Report, error) {
	if runs < 2 {
		return nil, ErrTooFewRuns
	}
	runners := make([]Runner, runs)
	for i := range runners {
		runners[i] = runner
	}
	return verify(ctx, runners, rows, params)
}

// VerifyAcrossWorkers runs the analysis once per worker count, each with its
// own orchestrator built from opts, and compares every run with the first.
func VerifyAcrossWorkers(ctx context.Context, opts orchestrator.Options, rows []domain.RawRow, params domain.AnalysisParameters, workers []int) (*Report, error) {
	if len(workers) < 2 {
		return nil, ErrTooFewRuns
	}
	runners := make([]Runner, len(workers))
	for i, w := range workers {
		o := opts
		o.Workers = w
		runners[i] = orchestrator.New(o)
	}
	return verify(ctx, runners, rows, params)
}

func verify(ctx context.Context, runners []Runner, rows []domain.RawRow, params domain.AnalysisParameters) (*Report, error) {
	ref, err := runners[0].Run(ctx, rows, params)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}

	report := &Report{
		Runs:      len(runners),
		Identical: true,
		RunID:     ref.ID,
		Pairs:     len(ref.Pairs),
	}

	for i := 1; i < len(runners); i++ {
		run, err := runners[i].Run(ctx, rows, params)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		divs := CompareRuns(ref, run)
		res := RunResult{
			Run:         i + 1,
			RunID:       run.ID,
			Pairs:       len(run.Pairs),
			Match:       len(divs) == 0,
			Divergences: divs,
		}
		if !res.Match {
			report.Identical = false
		}
		report.Results = append(report.Results, res)
	}

	return report, nil
}
