package orchestrator

import (
	"time"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/ingestion"
	"hedge-lab/internal/metrics"
	"hedge-lab/internal/pairing"
	"hedge-lab/internal/query"
)

// AnalysisRun is the immutable result of one analysis. It is written once
// by Run and may then be read concurrently.
type AnalysisRun struct {
	ID        string
	Params    domain.AnalysisParameters
	Rules     string // normalizer fingerprint
	StartedAt time.Time
	Duration  time.Duration

	Trades     []domain.TradeRecord
	Quality    ingestion.DataQuality
	Population metrics.Population

	Pairs       []domain.HedgePair
	Stats       pairing.Stats
	PairDefects domain.DefectLog

	Aggregates metrics.Aggregates
}

// View returns one page of the run's pairs.
func (r *AnalysisRun) View(p query.ViewParams) query.ResultView {
	return query.View(r.Pairs, p)
}

// Pair returns the pair with the given id.
func (r *AnalysisRun) Pair(id int) (domain.HedgePair, bool) {
	// ids are assigned 1..n in slice order
	if id < 1 || id > len(r.Pairs) {
		return domain.HedgePair{}, false
	}
	return r.Pairs[id-1], true
}

// Summary returns the headline counts.
func (r *AnalysisRun) Summary() metrics.Summary {
	return r.Aggregates.Summary
}

// Patterns returns the notable-pattern reports.
func (r *AnalysisRun) Patterns() metrics.Patterns {
	return r.Aggregates.Patterns
}
