// Package query serves filtered, sorted, paginated views over a finished
// pair collection. It never mutates the collection it reads.
package query

import (
	"sort"

	"hedge-lab/internal/domain"
)

// DefaultPageSize is the page size used when none is given.
const DefaultPageSize = 10

// TypeFilterAll keeps pairs of every type.
const TypeFilterAll = "all"

// SortKey selects the view order.
type SortKey string

const (
	SortConfidenceDesc SortKey = "confidence-desc"
	SortConfidenceAsc  SortKey = "confidence-asc"
	SortTimeDesc       SortKey = "time-desc" // by trade_a entry time
	SortTimeAsc        SortKey = "time-asc"
)

// ViewParams are the caller-supplied view settings.
type ViewParams struct {
	TypeFilter    string  // "all" (or empty) or a PairType value
	MinConfidence float64 // inclusive
	SortKey       SortKey
	Page          int // 1-based, clamped into [1, PageCount]
	PageSize      int // defaults to DefaultPageSize
}

// ResultView is one page of a view plus navigation metadata.
type ResultView struct {
	Items      []domain.HedgePair
	Page       int // the page actually served after clamping
	PageCount  int // >= 1
	PageSize   int
	TotalItems int // filtered count
	HasPrev    bool
	HasNext    bool
}

// View filters, sorts and paginates pairs.
func View(pairs []domain.HedgePair, p ViewParams) ResultView {
	filtered := Filter(pairs, p.TypeFilter, p.MinConfidence)
	Sort(filtered, p.SortKey)

	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page, count := ClampPage(p.Page, len(filtered), size)

	start := (page - 1) * size
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}

	return ResultView{
		Items:      filtered[start:end],
		Page:       page,
		PageCount:  count,
		PageSize:   size,
		TotalItems: len(filtered),
		HasPrev:    page > 1,
		HasNext:    page < count,
	}
}

// Filter returns a new slice with the pairs matching typeFilter whose
// confidence is at least minConfidence, in source order.
func Filter(pairs []domain.HedgePair, typeFilter string, minConfidence float64) []domain.HedgePair {
	out := make([]domain.HedgePair, 0, len(pairs))
	for _, p := range pairs {
		if typeFilter != "" && typeFilter != TypeFilterAll && string(p.Type) != typeFilter {
			continue
		}
		if p.Confidence < minConfidence {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Sort orders pairs in place by key. The sort is stable; unknown keys
// leave the order unchanged.
func Sort(pairs []domain.HedgePair, key SortKey) {
	var less func(a, b *domain.HedgePair) bool
	switch key {
	case SortConfidenceDesc:
		less = func(a, b *domain.HedgePair) bool { return a.Confidence > b.Confidence }
	case SortConfidenceAsc:
		less = func(a, b *domain.HedgePair) bool { return a.Confidence < b.Confidence }
	case SortTimeDesc:
		less = func(a, b *domain.HedgePair) bool { return a.TradeA.EntryTime > b.TradeA.EntryTime }
	case SortTimeAsc:
		less = func(a, b *domain.HedgePair) bool { return a.TradeA.EntryTime < b.TradeA.EntryTime }
	default:
		return
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return less(&pairs[i], &pairs[j])
	})
}

// ClampPage returns the page to serve and the page count for n items.
// The count is at least 1, so an empty view has exactly one empty page.
func ClampPage(page, n, size int) (int, int) {
	count := (n + size - 1) / size
	if count < 1 {
		count = 1
	}
	if page < 1 {
		page = 1
	}
	if page > count {
		page = count
	}
	return page, count
}
