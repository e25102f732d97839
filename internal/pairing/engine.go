// Package pairing finds hedge pairs among validated trades.
package pairing

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/normalization"
	"hedge-lab/internal/scoring"
)

// Stats counts how candidates fell through the admission criteria.
type Stats struct {
	Groups            int
	Candidates        int // unordered pairs considered, sum of n(n-1)/2
	OppositeDirection int
	WithinPrice       int
	Overlapping       int
	Scored            int
	Admitted          int
	Skipped           int // aborted by a defect
}

func (s *Stats) add(o Stats) {
	s.Candidates += o.Candidates
	s.OppositeDirection += o.OppositeDirection
	s.WithinPrice += o.WithinPrice
	s.Overlapping += o.Overlapping
	s.Scored += o.Scored
	s.Admitted += o.Admitted
	s.Skipped += o.Skipped
}

// Result is the authoritative pair collection of one run.
type Result struct {
	Pairs   []domain.HedgePair // ids 1..n in (group key, discovery) order
	Stats   Stats
	Defects domain.DefectLog // pair-level defects
}

// Progress is reported after each group finishes.
type Progress struct {
	Group      string
	Done       int // groups finished so far
	Total      int
	Candidates int
	Admitted   int
}

// ProgressFunc receives progress updates. It may be called from several
// goroutines and must be safe for concurrent use.
type ProgressFunc func(Progress)

// Engine enumerates and scores candidate pairs per asset group.
type Engine struct {
	normalizer normalization.Normalizer
	scorer     *scoring.Scorer
	workers    int
	logger     *zap.Logger
	progress   ProgressFunc
}

// Options contains configuration for creating an Engine.
type Options struct {
	Normalizer normalization.Normalizer // defaults to normalization.Default()
	Scorer     *scoring.Scorer          // defaults to scoring.Default()
	Workers    int                      // defaults to GOMAXPROCS
	Logger     *zap.Logger
	Progress   ProgressFunc
}

// NewEngine creates a pairing engine.
func NewEngine(opts Options) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = normalization.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		normalizer: opts.Normalizer,
		scorer:     opts.Scorer,
		workers:    opts.Workers,
		logger:     opts.Logger,
		progress:   opts.Progress,
	}
}

// FindPairs returns every admitted hedge pair among trades.
//
// Groups are evaluated concurrently and merged in key order, so the result
// is identical for identical input regardless of scheduling. On
// cancellation no partial result is returned.
func (e *Engine) FindPairs(ctx context.Context, trades []domain.TradeRecord, params domain.AnalysisParameters) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := GroupTrades(trades, e.normalizer)
	partials := make([]groupResult, len(groups))

	threshold := decimal.NewFromFloat(params.PriceThreshold)
	tracker := newProgressTracker(len(groups), e.progress)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range groups {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.evaluateGroup(gctx, groups[i], threshold, params)
			if err != nil {
				return err
			}
			partials[i] = res
			tracker.done(groups[i].Key, res.stats)

			e.logger.Debug("group evaluated",
				zap.String("asset", groups[i].Key),
				zap.Int("trades", len(groups[i].Trades)),
				zap.Int("candidates", res.stats.Candidates),
				zap.Int("admitted", res.stats.Admitted),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("find pairs: %w", err)
	}

	return merge(partials), nil
}

type groupResult struct {
	pairs   []domain.HedgePair
	stats   Stats
	defects domain.DefectLog
}

// evaluateGroup considers every unordered pair (i < j) of the group once.
// Cancellation is observed between outer iterations.
func (e *Engine) evaluateGroup(ctx context.Context, grp Group, threshold decimal.Decimal, params domain.AnalysisParameters) (groupResult, error) {
	var res groupResult
	trades := grp.Trades

	for i := 0; i < len(trades); i++ {
		if err := ctx.Err(); err != nil {
			return groupResult{}, err
		}
		a := trades[i]
		for j := i + 1; j < len(trades); j++ {
			b := trades[j]
			res.stats.Candidates++

			pair, ok, err := e.evaluate(grp.Key, a, b, threshold, params, &res.stats)
			if err != nil {
				res.stats.Skipped++
				res.defects.Record(err)
				continue
			}
			if ok {
				res.stats.Admitted++
				res.pairs = append(res.pairs, pair)
			}
		}
	}

	return res, nil
}

// evaluate applies the admission criteria to one candidate pair.
func (e *Engine) evaluate(asset string, a, b *domain.TradeRecord, threshold decimal.Decimal, params domain.AnalysisParameters, stats *Stats) (domain.HedgePair, bool, error) {
	if !a.Direction.Opposes(b.Direction) {
		return domain.HedgePair{}, false, nil
	}
	stats.OppositeDirection++

	if err := requireValid(a, domain.FieldAvgEntry, a.AvgEntryPrice); err != nil {
		return domain.HedgePair{}, false, err
	}
	if err := requireValid(b, domain.FieldAvgEntry, b.AvgEntryPrice); err != nil {
		return domain.HedgePair{}, false, err
	}
	gap := a.AvgEntryPrice.Decimal.Sub(b.AvgEntryPrice.Decimal).Abs()
	if gap.GreaterThan(threshold) {
		return domain.HedgePair{}, false, nil
	}
	stats.WithinPrice++

	if !a.Overlaps(b) {
		return domain.HedgePair{}, false, nil
	}
	stats.Overlapping++

	confidence, err := e.scorer.Score(a, b, gap, params)
	if err != nil {
		return domain.HedgePair{}, false, err
	}
	stats.Scored++

	if confidence < params.ConfidenceThreshold {
		return domain.HedgePair{}, false, nil
	}

	if err := requireValid(a, domain.FieldNetProfit, a.NetProfit); err != nil {
		return domain.HedgePair{}, false, err
	}
	if err := requireValid(b, domain.FieldNetProfit, b.NetProfit); err != nil {
		return domain.HedgePair{}, false, err
	}

	timeGap := a.EntryTime - b.EntryTime
	if timeGap < 0 {
		timeGap = -timeGap
	}

	return domain.HedgePair{
		Type:           domain.ClassifyPair(a, b),
		CanonicalAsset: asset,
		TradeA:         *a,
		TradeB:         *b,
		EntryTimeGap:   timeGap,
		EntryPriceGap:  gap,
		Confidence:     confidence,
		NetProfitSum:   a.NetProfit.Decimal.Add(b.NetProfit.Decimal),
	}, true, nil
}

// merge concatenates group results in group order and assigns ids.
func merge(partials []groupResult) *Result {
	res := &Result{Stats: Stats{Groups: len(partials)}}

	total := 0
	for _, p := range partials {
		total += len(p.pairs)
	}
	res.Pairs = make([]domain.HedgePair, 0, total)

	for _, p := range partials {
		for _, pair := range p.pairs {
			pair.ID = len(res.Pairs) + 1
			res.Pairs = append(res.Pairs, pair)
		}
		res.Stats.add(p.stats)
		res.Defects.Merge(p.defects)
	}
	return res
}

func requireValid(t *domain.TradeRecord, field string, v decimal.NullDecimal) error {
	if v.Valid {
		return nil
	}
	return &domain.FieldError{
		Kind:      domain.ErrMalformedNumeric,
		TradeHash: t.TradeHash,
		Field:     field,
	}
}
