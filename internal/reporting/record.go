package reporting

import (
	"strconv"

	"github.com/shopspring/decimal"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/idhash"
)

// PairColumns is the flat column order shared by CSV and XLSX exports.
var PairColumns = []string{
	"id", "pair_key", "pair_type", "asset", "confidence",
	"entry_time_gap_ms", "entry_price_gap", "net_profit_sum",
	"trade_a_tradehash", "trade_a_short_long", "trade_a_asset", "trade_a_account_id", "trade_a_user_id",
	"trade_a_entry_time", "trade_a_close_time", "trade_a_avg_market_entry", "trade_a_avg_market_close",
	"trade_a_total_contracts", "trade_a_net_profit", "trade_a_seconds_held",
	"trade_b_tradehash", "trade_b_short_long", "trade_b_asset", "trade_b_account_id", "trade_b_user_id",
	"trade_b_entry_time", "trade_b_close_time", "trade_b_avg_market_entry", "trade_b_avg_market_close",
	"trade_b_total_contracts", "trade_b_net_profit", "trade_b_seconds_held",
}

// RecordFrom flattens a pair.
func RecordFrom(p domain.HedgePair) PairRecord {
	return PairRecord{
		ID:            p.ID,
		PairKey:       idhash.ComputePairKey(p.TradeA.TradeHash, p.TradeB.TradeHash),
		PairType:      string(p.Type),
		Asset:         p.CanonicalAsset,
		Confidence:    p.Confidence,
		EntryTimeGap:  p.EntryTimeGap,
		EntryPriceGap: p.EntryPriceGap.String(),
		NetProfitSum:  p.NetProfitSum.String(),
		TradeA:        tradeFrom(&p.TradeA),
		TradeB:        tradeFrom(&p.TradeB),
	}
}

// RecordsFrom flattens pairs in order.
func RecordsFrom(pairs []domain.HedgePair) []PairRecord {
	out := make([]PairRecord, len(pairs))
	for i := range pairs {
		out[i] = RecordFrom(pairs[i])
	}
	return out
}

func tradeFrom(t *domain.TradeRecord) TradeRecord {
	held := ""
	if t.SecondsHeld != nil {
		held = strconv.FormatInt(*t.SecondsHeld, 10)
	}
	return TradeRecord{
		TradeHash:      t.TradeHash,
		Direction:      string(t.Direction),
		Asset:          t.AssetSymbol,
		AccountID:      t.AccountID,
		UserID:         t.UserID,
		EntryTime:      t.EntryTime,
		CloseTime:      t.CloseTime,
		AvgEntryPrice:  nullDecimal(t.AvgEntryPrice),
		AvgClosePrice:  nullDecimal(t.AvgClosePrice),
		TotalContracts: nullDecimal(t.TotalContracts),
		NetProfit:      nullDecimal(t.NetProfit),
		SecondsHeld:    held,
	}
}

func nullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// Values returns the record in PairColumns order.
func (r PairRecord) Values() []string {
	out := make([]string, 0, len(PairColumns))
	out = append(out,
		strconv.Itoa(r.ID),
		r.PairKey,
		r.PairType,
		r.Asset,
		strconv.FormatFloat(r.Confidence, 'f', 6, 64),
		strconv.FormatInt(r.EntryTimeGap, 10),
		r.EntryPriceGap,
		r.NetProfitSum,
	)
	out = append(out, r.TradeA.values()...)
	out = append(out, r.TradeB.values()...)
	return out
}

func (t TradeRecord) values() []string {
	return []string{
		t.TradeHash,
		t.Direction,
		t.Asset,
		t.AccountID,
		t.UserID,
		strconv.FormatInt(t.EntryTime, 10),
		strconv.FormatInt(t.CloseTime, 10),
		t.AvgEntryPrice,
		t.AvgClosePrice,
		t.TotalContracts,
		t.NetProfit,
		t.SecondsHeld,
	}
}
