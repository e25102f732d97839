// Package scoring computes the bounded confidence of a candidate hedge pair.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"hedge-lab/internal/domain"
)

// Weights is the tunable scoring policy. The reference values are
// heuristic; they are kept for compatibility, not derived from labels.
type Weights struct {
	PriceSimilarity    float64 // scaled by 1 - entry_gap/threshold
	TimeOverlap        float64 // flat, overlap is a precondition
	ClosePrice         float64 // scaled by 1 - min(close_gap/threshold, 1)
	ClosePriceBaseline float64 // used instead of ClosePrice when close prices are excluded
	QuantityMatch      float64 // bonus when total_contracts are equal
}

// DefaultWeights returns the reference policy.
func DefaultWeights() Weights {
	return Weights{
		PriceSimilarity:    0.4,
		TimeOverlap:        0.3,
		ClosePrice:         0.3,
		ClosePriceBaseline: 0.15,
		QuantityMatch:      0.1,
	}
}

// Components is the per-term breakdown of a score.
type Components struct {
	PriceSimilarity float64
	TimeOverlap     float64
	ClosePrice      float64
	QuantityMatch   float64
	Total           float64 // clamped to [0, 1]
}

// Scorer is a pure confidence function over a weight policy.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Default returns a scorer with DefaultWeights.
func Default() *Scorer {
	return NewScorer(DefaultWeights())
}

// Weights returns the scorer's policy.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns the confidence of a pair in [0, 1].
// entryGap is |avg_entry_a - avg_entry_b|. Fails with ErrMalformedNumeric
// when a value the score depends on is missing or unparseable.
func (s *Scorer) Score(a, b *domain.TradeRecord, entryGap decimal.Decimal, params domain.AnalysisParameters) (float64, error) {
	c, err := s.Explain(a, b, entryGap, params)
	if err != nil {
		return 0, err
	}
	return c.Total, nil
}

// Explain returns the score broken down by term.
func (s *Scorer) Explain(a, b *domain.TradeRecord, entryGap decimal.Decimal, params domain.AnalysisParameters) (Components, error) {
	var c Components
	w := s.weights

	c.PriceSimilarity = w.PriceSimilarity * (1 - gapRatio(entryGap, params.PriceThreshold))
	c.TimeOverlap = w.TimeOverlap

	if params.IncludeClosePrice {
		if err := requireNumeric(a, domain.FieldAvgClose, a.AvgClosePrice); err != nil {
			return Components{}, err
		}
		if err := requireNumeric(b, domain.FieldAvgClose, b.AvgClosePrice); err != nil {
			return Components{}, err
		}
		closeGap := a.AvgClosePrice.Decimal.Sub(b.AvgClosePrice.Decimal).Abs()
		c.ClosePrice = w.ClosePrice * (1 - gapRatio(closeGap, params.PriceThreshold))
	} else {
		c.ClosePrice = w.ClosePriceBaseline
	}

	if err := requireNumeric(a, domain.FieldTotalContracts, a.TotalContracts); err != nil {
		return Components{}, err
	}
	if err := requireNumeric(b, domain.FieldTotalContracts, b.TotalContracts); err != nil {
		return Components{}, err
	}
	if a.TotalContracts.Decimal.Equal(b.TotalContracts.Decimal) {
		c.QuantityMatch = w.QuantityMatch
	}

	c.Total = Clamp(c.PriceSimilarity + c.TimeOverlap + c.ClosePrice + c.QuantityMatch)
	return c, nil
}

// gapRatio returns min(gap/threshold, 1). A zero threshold yields 0 for a
// zero gap and 1 otherwise.
func gapRatio(gap decimal.Decimal, threshold float64) float64 {
	if threshold <= 0 {
		if gap.IsZero() {
			return 0
		}
		return 1
	}
	r := gap.InexactFloat64() / threshold
	if r > 1 {
		return 1
	}
	return r
}

// Clamp bounds v to [0, 1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func requireNumeric(t *domain.TradeRecord, field string, v decimal.NullDecimal) error {
	if v.Valid {
		return nil
	}
	return &domain.FieldError{
		Kind:      domain.ErrMalformedNumeric,
		TradeHash: t.TradeHash,
		Field:     field,
	}
}
