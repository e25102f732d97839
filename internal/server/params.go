package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/query"
)

// Form defaults for an analysis request.
const (
	DefaultPriceThreshold      = 5.0
	DefaultConfidenceThreshold = 0.7
	DefaultIncludeClosePrice   = true

	maxPageSize = 500
)

// parseAnalysisParams reads price_threshold, confidence_threshold and
// include_close_price from the form or query string.
func parseAnalysisParams(r *http.Request) (domain.AnalysisParameters, error) {
	p := domain.AnalysisParameters{
		PriceThreshold:      DefaultPriceThreshold,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		IncludeClosePrice:   DefaultIncludeClosePrice,
	}

	var err error
	if v := strings.TrimSpace(r.FormValue("price_threshold")); v != "" {
		if p.PriceThreshold, err = strconv.ParseFloat(v, 64); err != nil {
			return p, &domain.ParameterError{Field: "price_threshold", Reason: fmt.Sprintf("not a number: %q", v)}
		}
	}
	if v := strings.TrimSpace(r.FormValue("confidence_threshold")); v != "" {
		if p.ConfidenceThreshold, err = strconv.ParseFloat(v, 64); err != nil {
			return p, &domain.ParameterError{Field: "confidence_threshold", Reason: fmt.Sprintf("not a number: %q", v)}
		}
	}
	if v := strings.TrimSpace(r.FormValue("include_close_price")); v != "" {
		b, ok := parseFlag(v)
		if !ok {
			return p, &domain.ParameterError{Field: "include_close_price", Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		p.IncludeClosePrice = b
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// parseFlag accepts strconv.ParseBool forms plus HTML checkbox values.
func parseFlag(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "on", "yes":
		return true, true
	case "off", "no":
		return false, true
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

// parseViewParams reads type, min_confidence, sort, page and page_size.
func parseViewParams(r *http.Request, defaultSize int) (query.ViewParams, error) {
	q := r.URL.Query()
	p := query.ViewParams{
		TypeFilter: query.TypeFilterAll,
		SortKey:    query.SortConfidenceDesc,
		Page:       1,
		PageSize:   defaultSize,
	}

	if v := q.Get("type"); v != "" {
		if v != query.TypeFilterAll && !domain.PairType(v).IsValid() {
			return p, fmt.Errorf("unknown pair type %q", v)
		}
		p.TypeFilter = v
	}
	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return p, fmt.Errorf("min_confidence must be a number within [0, 1]")
		}
		p.MinConfidence = f
	}
	// Unrecognized keys keep discovery order.
	if v := q.Get("sort"); v != "" {
		p.SortKey = query.SortKey(v)
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("page must be an integer")
		}
		p.Page = n // clamped by the view
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return p, fmt.Errorf("page_size must be within [1, %d]", maxPageSize)
		}
		p.PageSize = n
	}
	return p, nil
}
