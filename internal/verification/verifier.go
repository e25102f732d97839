// Package verification re-runs an analysis and checks that the results are
// identical. Pair ids, ordering, confidences and aggregates must not depend
// on worker count or scheduling.
package verification

import (
	"fmt"
	"reflect"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/orchestrator"
)

// FieldDivergence represents a mismatch between the reference run and a re-run.
type FieldDivergence struct {
	PairID   int    // 0 for run-level fields
	Field    string // field name
	Expected any    // reference value
	Actual   any    // re-run value
}

func (d FieldDivergence) String() string {
	if d.PairID == 0 {
		return fmt.Sprintf("%s: expected %v, got %v", d.Field, d.Expected, d.Actual)
	}
	return fmt.Sprintf("pair %d %s: expected %v, got %v", d.PairID, d.Field, d.Expected, d.Actual)
}

// ComparePairs compares two pairs field by field. Decimals compare by value.
func ComparePairs(expected, actual *domain.HedgePair) []FieldDivergence {
	var divs []FieldDivergence
	add := func(field string, e, a any) {
		divs = append(divs, FieldDivergence{PairID: expected.ID, Field: field, Expected: e, Actual: a})
	}

	if expected.ID != actual.ID {
		add("ID", expected.ID, actual.ID)
	}
	if expected.Type != actual.Type {
		add("Type", expected.Type, actual.Type)
	}
	if expected.CanonicalAsset != actual.CanonicalAsset {
		add("CanonicalAsset", expected.CanonicalAsset, actual.CanonicalAsset)
	}
	if expected.TradeA.TradeHash != actual.TradeA.TradeHash {
		add("TradeA", expected.TradeA.TradeHash, actual.TradeA.TradeHash)
	}
	if expected.TradeB.TradeHash != actual.TradeB.TradeHash {
		add("TradeB", expected.TradeB.TradeHash, actual.TradeB.TradeHash)
	}
	if expected.EntryTimeGap != actual.EntryTimeGap {
		add("EntryTimeGap", expected.EntryTimeGap, actual.EntryTimeGap)
	}
	if !expected.EntryPriceGap.Equal(actual.EntryPriceGap) {
		add("EntryPriceGap", expected.EntryPriceGap, actual.EntryPriceGap)
	}
	// Scoring is a fixed sequence of float operations; equal input gives
	// bit-identical output, so no tolerance is applied.
	if expected.Confidence != actual.Confidence {
		add("Confidence", expected.Confidence, actual.Confidence)
	}
	if !expected.NetProfitSum.Equal(actual.NetProfitSum) {
		add("NetProfitSum", expected.NetProfitSum, actual.NetProfitSum)
	}

	return divs
}

// CompareRuns compares everything a run derives from its input.
// Timing fields (StartedAt, Duration) are ignored.
func CompareRuns(expected, actual *orchestrator.AnalysisRun) []FieldDivergence {
	var divs []FieldDivergence
	add := func(field string, e, a any) {
		divs = append(divs, FieldDivergence{Field: field, Expected: e, Actual: a})
	}

	if expected.ID != actual.ID {
		add("ID", expected.ID, actual.ID)
	}
	if expected.Rules != actual.Rules {
		add("Rules", expected.Rules, actual.Rules)
	}
	if len(expected.Trades) != len(actual.Trades) {
		add("Trades", len(expected.Trades), len(actual.Trades))
	}
	if expected.Stats != actual.Stats {
		add("Stats", expected.Stats, actual.Stats)
	}
	if len(expected.Pairs) != len(actual.Pairs) {
		add("Pairs", len(expected.Pairs), len(actual.Pairs))
	} else {
		for i := range expected.Pairs {
			divs = append(divs, ComparePairs(&expected.Pairs[i], &actual.Pairs[i])...)
		}
	}
	if !reflect.DeepEqual(expected.Aggregates, actual.Aggregates) {
		add("Aggregates", expected.Aggregates.Summary, actual.Aggregates.Summary)
	}

	return divs
}
