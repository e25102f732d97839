package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Raw field names supplied by the ingestion collaborator.
const (
	FieldTradeHash      = "tradehash"
	FieldDirection      = "short_long"
	FieldAsset          = "asset"
	FieldEntryDatetimes = "entry_datetimes"
	FieldMarketEntries  = "market_entries"
	FieldCloseDatetimes = "close_datetimes"
	FieldMarketCloses   = "market_closes"
	FieldAccountID      = "account_id"
	FieldUserID         = "user_id"
	FieldAvgEntry       = "avg_market_entry"
	FieldAvgClose       = "avg_market_close"
	FieldTotalContracts = "total_contracts"
	FieldNetProfit      = "net_profit"
	FieldSecondsHeld    = "seconds_held"
)

// RequiredFields must be present and non-null for a row to be valid.
var RequiredFields = []string{
	FieldTradeHash,
	FieldDirection,
	FieldAsset,
	FieldEntryDatetimes,
	FieldMarketEntries,
	FieldCloseDatetimes,
	FieldMarketCloses,
	FieldAccountID,
	FieldUserID,
}

// KnownFields lists every column the core understands, in export order.
var KnownFields = []string{
	FieldTradeHash,
	FieldDirection,
	FieldAsset,
	FieldEntryDatetimes,
	FieldMarketEntries,
	FieldCloseDatetimes,
	FieldMarketCloses,
	FieldAccountID,
	FieldUserID,
	FieldAvgEntry,
	FieldAvgClose,
	FieldTotalContracts,
	FieldNetProfit,
	FieldSecondsHeld,
}

// RawRow is one untyped trade row. Values may be strings or numbers.
type RawRow map[string]any

// Value returns the field rendered as a string, and false when the field
// is absent, null, NaN or blank.
func (r RawRow) Value(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(x)) {
			return "", false
		}
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Has reports whether the field is present and non-null.
func (r RawRow) Has(field string) bool {
	_, ok := r.Value(field)
	return ok
}
