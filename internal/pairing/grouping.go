package pairing

import (
	"sort"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/normalization"
)

// Group is the set of trades sharing one canonical asset, in input order.
type Group struct {
	Key    string
	Trades []*domain.TradeRecord
}

// CandidateCount is n(n-1)/2 for a group of n trades.
func (g Group) CandidateCount() int {
	n := len(g.Trades)
	return n * (n - 1) / 2
}

// GroupTrades partitions trades by normalized asset. Groups are returned
// sorted by key; trades keep their input order inside a group.
func GroupTrades(trades []domain.TradeRecord, n normalization.Normalizer) []Group {
	index := make(map[string]int)
	var groups []Group

	for i := range trades {
		key := n.Normalize(trades[i].AssetSymbol)
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, Group{Key: key})
		}
		groups[gi].Trades = append(groups[gi].Trades, &trades[i])
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key < groups[j].Key
	})
	return groups
}
