package reporting

import (
	"fmt"
	"time"

	"hedge-lab/internal/metrics"
	"hedge-lab/internal/orchestrator"
)

// Generator produces reports from finished runs.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for run.
func (g *Generator) Generate(run *orchestrator.AnalysisRun) *Report {
	agg := run.Aggregates

	return &Report{
		GeneratedAt: g.now(),
		RunID:       run.ID,
		Params:      ParamsFrom(run.Params),
		Rules:       run.Rules,
		DataQuality: QualitySection{
			RowsRead:   run.Quality.RowsRead,
			RowsValid:  run.Quality.RowsValid,
			RowsParsed: run.Quality.RowsParsed,
			Defects:    nonNil(run.Quality.Defects.Summary()),
			Samples:    run.Quality.Defects.Samples,
		},
		Pairing: PairingSection{
			Groups:     run.Stats.Groups,
			Candidates: run.Stats.Candidates,
			Admitted:   run.Stats.Admitted,
			Skipped:    run.Stats.Skipped,
			Defects:    nonNil(run.PairDefects.Summary()),
		},
		Summary:    summaryFrom(agg.Summary),
		Histograms: histogramsFrom(agg),
		Patterns:   patternsFrom(agg.Patterns),
		Pairs:      RecordsFrom(run.Pairs),
	}
}

func summaryFrom(s metrics.Summary) SummarySection {
	return SummarySection{
		TotalPairs:         s.TotalPairs,
		SelfHedges:         s.SelfHedges,
		InterUserHedges:    s.InterUserHedges,
		AvgConfidence:      s.AvgConfidence,
		UniqueUsers:        s.UniqueUsers,
		UniqueAccounts:     s.UniqueAccounts,
		UsersPercentage:    s.UsersPercentage,
		AccountsPercentage: s.AccountsPercentage,
	}
}

func histogramsFrom(agg metrics.Aggregates) HistogramsBlock {
	h := HistogramsBlock{
		Confidence: make([]BinRow, len(agg.ConfidenceBins)),
		Hour:       make([]BinRow, len(agg.HourBins)),
	}
	for i, c := range agg.ConfidenceBins {
		h.Confidence[i] = BinRow{Label: metrics.ConfidenceBinLabels[i], Count: c}
	}
	for i, c := range agg.HourBins {
		h.Hour[i] = BinRow{Label: fmt.Sprintf("%02d:00", i), Count: c}
	}
	return h
}

// PatternsFrom converts aggregator patterns to report rows.
func PatternsFrom(p metrics.Patterns) PatternsSection {
	return patternsFrom(p)
}

func patternsFrom(p metrics.Patterns) PatternsSection {
	out := PatternsSection{
		FrequentUsers: make([]UserRow, len(p.FrequentUsers)),
		PeakHours:     make([]HourRow, len(p.PeakHours)),
		Assets:        make([]AssetRow, len(p.Assets)),
	}
	for i, u := range p.FrequentUsers {
		out.FrequentUsers[i] = UserRow{UserID: u.UserID, Count: u.Count}
	}
	for i, h := range p.PeakHours {
		out.PeakHours[i] = HourRow{Hour: h.Hour, Count: h.Count, Percentage: h.Percentage}
	}
	for i, a := range p.Assets {
		out.Assets[i] = AssetRow{Asset: a.Asset, Count: a.Count, Percentage: a.Percentage}
	}
	return out
}

// SummaryFrom converts aggregator summary to its report form.
func SummaryFrom(s metrics.Summary) SummarySection {
	return summaryFrom(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
