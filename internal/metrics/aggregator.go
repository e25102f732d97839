package metrics

import (
	"sort"

	"hedge-lab/internal/domain"
)

const (
	// FrequentUserMinPairs is the pair count at which a user is reported.
	FrequentUserMinPairs = 3

	// PeakHourRatio is the share of the busiest hour an hour must reach
	// to be reported as a peak.
	PeakHourRatio = 0.8
)

// ConfidenceBinLabels names the five confidence buckets.
var ConfidenceBinLabels = [5]string{"0.0-0.2", "0.2-0.4", "0.4-0.6", "0.6-0.8", "0.8-1.0"}

// confidenceEdges are the lower bounds of buckets 1..4.
var confidenceEdges = [4]float64{0.2, 0.4, 0.6, 0.8}

// Population describes the validated dataset a run analyzed.
type Population struct {
	Users    int // distinct user ids
	Accounts int // distinct account ids
}

// PopulationOf counts distinct users and accounts among trades.
func PopulationOf(trades []domain.TradeRecord) Population {
	users := make(map[string]struct{})
	accounts := make(map[string]struct{})
	for i := range trades {
		users[trades[i].UserID] = struct{}{}
		accounts[trades[i].AccountID] = struct{}{}
	}
	return Population{Users: len(users), Accounts: len(accounts)}
}

// Summary holds the headline counts of a run.
type Summary struct {
	TotalPairs      int
	SelfHedges      int
	InterUserHedges int
	AvgConfidence   float64 // 0 when there are no pairs

	UniqueUsers    int // distinct users across both sides of all pairs
	UniqueAccounts int

	// Coverage relative to the analyzed dataset, in percent.
	UsersPercentage    float64
	AccountsPercentage float64
}

// UserCount is one frequent-user row.
type UserCount struct {
	UserID string
	Count  int
}

// HourCount is one peak-hour row.
type HourCount struct {
	Hour       int
	Count      int
	Percentage float64
}

// AssetCount is one asset-distribution row.
type AssetCount struct {
	Asset      string
	Count      int
	Percentage float64
}

// Patterns are the notable-pattern reports.
type Patterns struct {
	FrequentUsers []UserCount
	PeakHours     []HourCount
	Assets        []AssetCount
}

// Aggregates is everything derived from the full pair collection.
type Aggregates struct {
	Summary        Summary
	ConfidenceBins [5]int
	HourBins       [24]int
	Patterns       Patterns
}

// Aggregate computes summary, histograms and patterns over the full,
// unfiltered pair collection. It only reads pairs.
func Aggregate(pairs []domain.HedgePair, pop Population, cal Calendar) Aggregates {
	if cal == nil {
		cal = EpochMillis{}
	}

	var agg Aggregates
	agg.Summary = computeSummary(pairs, pop)
	agg.ConfidenceBins = confidenceHistogram(pairs)
	agg.HourBins = hourHistogram(pairs, cal)
	agg.Patterns = Patterns{
		FrequentUsers: frequentUsers(pairs),
		PeakHours:     peakHours(agg.HourBins, len(pairs)),
		Assets:        assetDistribution(pairs),
	}
	return agg
}

// ConfidenceBin returns the bucket index for a score. A score of exactly 1
// falls in the top bucket.
func ConfidenceBin(score float64) int {
	bin := 0
	for _, edge := range confidenceEdges {
		if score >= edge {
			bin++
		}
	}
	return bin
}

func confidenceHistogram(pairs []domain.HedgePair) [5]int {
	var bins [5]int
	for i := range pairs {
		bins[ConfidenceBin(pairs[i].Confidence)]++
	}
	return bins
}

func hourHistogram(pairs []domain.HedgePair, cal Calendar) [24]int {
	var bins [24]int
	for i := range pairs {
		h := cal.Hour(pairs[i].TradeA.EntryTime)
		if h >= 0 && h < 24 {
			bins[h]++
		}
	}
	return bins
}

// frequentUsers ranks users by the number of pairs they appear in. A
// self-hedge counts once for its user.
func frequentUsers(pairs []domain.HedgePair) []UserCount {
	counts := make(map[string]int)
	for i := range pairs {
		for _, u := range pairs[i].Users() {
			counts[u]++
		}
	}

	var out []UserCount
	for u, c := range counts {
		if c >= FrequentUserMinPairs {
			out = append(out, UserCount{UserID: u, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func peakHours(bins [24]int, total int) []HourCount {
	peak := 0
	for _, c := range bins {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return nil
	}

	var out []HourCount
	cutoff := PeakHourRatio * float64(peak)
	for h, c := range bins {
		if c > 0 && float64(c) >= cutoff {
			out = append(out, HourCount{Hour: h, Count: c, Percentage: percentage(c, total)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

func assetDistribution(pairs []domain.HedgePair) []AssetCount {
	counts := make(map[string]int)
	for i := range pairs {
		counts[pairs[i].CanonicalAsset]++
	}

	out := make([]AssetCount, 0, len(counts))
	for asset, c := range counts {
		out = append(out, AssetCount{Asset: asset, Count: c, Percentage: percentage(c, len(pairs))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}
