package domain

import (
	"fmt"
	"math"
)

// AnalysisParameters are supplied once per run and stay fixed for it.
type AnalysisParameters struct {
	PriceThreshold      float64 // max admissible entry-price gap, >= 0
	ConfidenceThreshold float64 // min score for inclusion, [0, 1]
	IncludeClosePrice   bool    // close-price similarity contributes to score
}

// DefaultAnalysisParameters returns the upload defaults.
func DefaultAnalysisParameters() AnalysisParameters {
	return AnalysisParameters{
		PriceThreshold:      5,
		ConfidenceThreshold: 0.7,
		IncludeClosePrice:   true,
	}
}

// Validate rejects parameters that would make a run meaningless.
// Returned errors wrap ErrInvalidParameter.
func (p AnalysisParameters) Validate() error {
	if math.IsNaN(p.PriceThreshold) || math.IsInf(p.PriceThreshold, 0) {
		return &ParameterError{Field: "price_threshold", Reason: "must be a finite number"}
	}
	if p.PriceThreshold < 0 {
		return &ParameterError{Field: "price_threshold", Reason: fmt.Sprintf("must be >= 0, got %g", p.PriceThreshold)}
	}
	if math.IsNaN(p.ConfidenceThreshold) {
		return &ParameterError{Field: "confidence_threshold", Reason: "must be a number"}
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return &ParameterError{Field: "confidence_threshold", Reason: fmt.Sprintf("must be within [0, 1], got %g", p.ConfidenceThreshold)}
	}
	return nil
}
