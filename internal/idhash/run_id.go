package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/scoring"
)

// runIDBytes is the number of digest bytes kept in a run id.
const runIDBytes = 16

// ComputeRunID computes a deterministic run fingerprint.
// Formula: SHA256(params|rules|weights|trade_1|...|trade_n), first 16 bytes,
// base58 encoded. Trade order is significant because pair ids depend on it.
func ComputeRunID(params domain.AnalysisParameters, rules string, w scoring.Weights, trades []domain.TradeRecord) string {
	h := sha256.New()
	fmt.Fprintf(h, "%g|%g|%t|%s", params.PriceThreshold, params.ConfidenceThreshold, params.IncludeClosePrice, rules)
	fmt.Fprintf(h, "|%g|%g|%g|%g|%g", w.PriceSimilarity, w.TimeOverlap, w.ClosePrice, w.ClosePriceBaseline, w.QuantityMatch)

	for i := range trades {
		t := &trades[i]
		fmt.Fprintf(h, "|%s|%s|%s|%s|%s|%d|%d|%s|%s|%s|%s",
			t.TradeHash,
			t.Direction,
			t.AssetSymbol,
			t.AccountID,
			t.UserID,
			t.EntryTime,
			t.CloseTime,
			nullString(t.AvgEntryPrice.Valid, t.AvgEntryPrice.Decimal.String()),
			nullString(t.AvgClosePrice.Valid, t.AvgClosePrice.Decimal.String()),
			nullString(t.TotalContracts.Valid, t.TotalContracts.Decimal.String()),
			nullString(t.NetProfit.Valid, t.NetProfit.Decimal.String()),
		)
	}

	sum := h.Sum(nil)
	return base58.Encode(sum[:runIDBytes])
}

func nullString(valid bool, s string) string {
	if !valid {
		return "-"
	}
	return s
}
