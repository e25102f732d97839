package domain

import "github.com/shopspring/decimal"

// PairType classifies a hedge pair by the identities involved.
type PairType string

const (
	PairTypeSelfHedge      PairType = "self_hedge"
	PairTypeInterUserHedge PairType = "inter_user_hedge"
)

// String returns the string representation of PairType.
func (p PairType) String() string {
	return string(p)
}

// IsValid checks if the pair type is a valid value.
func (p PairType) IsValid() bool {
	return p == PairTypeSelfHedge || p == PairTypeInterUserHedge
}

// ClassifyPair returns self_hedge when both trades share a user_id.
func ClassifyPair(a, b *TradeRecord) PairType {
	if a.UserID == b.UserID {
		return PairTypeSelfHedge
	}
	return PairTypeInterUserHedge
}

// HedgePair is a derived pair of opposite trades judged to offset risk.
// Created once by the pairing engine; never edited afterwards.
type HedgePair struct {
	ID             int      // sequential within a run, discovery order
	Type           PairType // self_hedge | inter_user_hedge
	CanonicalAsset string

	// TradeA precedes TradeB in group order.
	TradeA TradeRecord
	TradeB TradeRecord

	EntryTimeGap  int64           // |entry_a - entry_b| (ms)
	EntryPriceGap decimal.Decimal // |avg_entry_a - avg_entry_b|
	Confidence    float64         // [0, 1]
	NetProfitSum  decimal.Decimal // net_profit_a + net_profit_b
}

// Users returns the distinct user ids of the pair, TradeA's first.
func (p *HedgePair) Users() []string {
	if p.TradeA.UserID == p.TradeB.UserID {
		return []string{p.TradeA.UserID}
	}
	return []string{p.TradeA.UserID, p.TradeB.UserID}
}
