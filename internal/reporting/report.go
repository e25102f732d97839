package reporting

import (
	"time"

	"hedge-lab/internal/domain"
)

// Report is the exportable form of one analysis run.
type Report struct {
	// Metadata
	GeneratedAt time.Time       `json:"generated_at"`
	RunID       string          `json:"run_id"`
	Params      ParamsSection   `json:"parameters"`
	Rules       string          `json:"normalization_rules"`
	DataQuality QualitySection  `json:"data_quality"`
	Pairing     PairingSection  `json:"pairing"`
	Summary     SummarySection  `json:"summary"`
	Histograms  HistogramsBlock `json:"histograms"`
	Patterns    PatternsSection `json:"patterns"`

	// Pairs in id order
	Pairs []PairRecord `json:"pairs"`
}

// ParamsSection mirrors AnalysisParameters.
type ParamsSection struct {
	PriceThreshold      float64 `json:"price_threshold"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IncludeClosePrice   bool    `json:"include_close_price"`
}

// QualitySection reports rows dropped before pairing.
type QualitySection struct {
	RowsRead   int      `json:"rows_read"`
	RowsValid  int      `json:"rows_valid"`
	RowsParsed int      `json:"rows_parsed"`
	Defects    []string `json:"defects"` // "kind: count", sorted by kind
	Samples    []string `json:"samples,omitempty"`
}

// PairingSection reports candidate counts.
type PairingSection struct {
	Groups     int      `json:"groups"`
	Candidates int      `json:"candidates"`
	Admitted   int      `json:"admitted"`
	Skipped    int      `json:"skipped"`
	Defects    []string `json:"defects"`
}

// SummarySection is the headline block.
type SummarySection struct {
	TotalPairs         int     `json:"total_pairs"`
	SelfHedges         int     `json:"self_hedges"`
	InterUserHedges    int     `json:"inter_user_hedges"`
	AvgConfidence      float64 `json:"avg_confidence"`
	UniqueUsers        int     `json:"unique_users"`
	UniqueAccounts     int     `json:"unique_accounts"`
	UsersPercentage    float64 `json:"users_percentage"`
	AccountsPercentage float64 `json:"accounts_percentage"`
}

// HistogramsBlock holds both histograms.
type HistogramsBlock struct {
	Confidence []BinRow `json:"confidence"`
	Hour       []BinRow `json:"hour_of_day"`
}

// BinRow is one histogram bucket.
type BinRow struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PatternsSection holds the notable-pattern reports.
type PatternsSection struct {
	FrequentUsers []UserRow  `json:"frequent_users"`
	PeakHours     []HourRow  `json:"peak_hours"`
	Assets        []AssetRow `json:"asset_distribution"`
}

// UserRow is one frequent user.
type UserRow struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// HourRow is one peak hour.
type HourRow struct {
	Hour       int     `json:"hour"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AssetRow is one asset row.
type AssetRow struct {
	Asset      string  `json:"asset"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PairRecord is the flat export form of a HedgePair. Every field of the
// pair and of both trades is represented.
type PairRecord struct {
	ID            int     `json:"id"`
	PairKey       string  `json:"pair_key"`
	PairType      string  `json:"pair_type"`
	Asset         string  `json:"asset"`
	Confidence    float64 `json:"confidence"`
	EntryTimeGap  int64   `json:"entry_time_gap_ms"`
	EntryPriceGap string  `json:"entry_price_gap"`
	NetProfitSum  string  `json:"net_profit_sum"`

	TradeA TradeRecord `json:"trade_a"`
	TradeB TradeRecord `json:"trade_b"`
}

// TradeRecord is the flat export form of a trade. Unset numeric fields are
// empty strings.
type TradeRecord struct {
	TradeHash      string `json:"tradehash"`
	Direction      string `json:"short_long"`
	Asset          string `json:"asset"`
	AccountID      string `json:"account_id"`
	UserID         string `json:"user_id"`
	EntryTime      int64  `json:"entry_time"`
	CloseTime      int64  `json:"close_time"`
	AvgEntryPrice  string `json:"avg_market_entry"`
	AvgClosePrice  string `json:"avg_market_close"`
	TotalContracts string `json:"total_contracts"`
	NetProfit      string `json:"net_profit"`
	SecondsHeld    string `json:"seconds_held"`
}

// ParamsFrom converts run parameters.
func ParamsFrom(p domain.AnalysisParameters) ParamsSection {
	return ParamsSection{
		PriceThreshold:      p.PriceThreshold,
		ConfidenceThreshold: p.ConfidenceThreshold,
		IncludeClosePrice:   p.IncludeClosePrice,
	}
}
