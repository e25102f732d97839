package domain

import "github.com/shopspring/decimal"

// TradeRecord is a fully typed trade produced by the parsing stage.
// Immutable once produced; downstream components only read it.
type TradeRecord struct {
	TradeHash   string    // opaque id
	Direction   Direction // LONG | SHORT
	AssetSymbol string    // raw instrument symbol
	AccountID   string
	UserID      string

	EntryTime int64 // first entry timestamp (epoch ms)
	CloseTime int64 // first close timestamp (epoch ms), >= EntryTime

	// Numeric fields are optional at parse time. A pair that needs an
	// invalid value is skipped with ErrMalformedNumeric.
	AvgEntryPrice  decimal.NullDecimal
	AvgClosePrice  decimal.NullDecimal
	TotalContracts decimal.NullDecimal
	NetProfit      decimal.NullDecimal
	SecondsHeld    *int64
}

// Overlaps reports whether the [entry, close] intervals of t and o overlap.
// Endpoints are inclusive.
func (t *TradeRecord) Overlaps(o *TradeRecord) bool {
	return (o.EntryTime >= t.EntryTime && o.EntryTime <= t.CloseTime) ||
		(t.EntryTime >= o.EntryTime && t.EntryTime <= o.CloseTime)
}
