package storage

import (
	"context"

	"hedge-lab/internal/domain"
)

// TradeRowStore provides access to trade_rows storage.
//
// Rows are stored unparsed: every known column as nullable text, so that the
// validator sees exactly what a CSV upload of the same data would give it.
type TradeRowStore interface {
	// InsertBulk adds rows atomically. Fails entire batch on any duplicate tradehash.
	InsertBulk(ctx context.Context, rows []domain.RawRow) error

	// LoadRows retrieves all rows in insertion order.
	LoadRows(ctx context.Context) ([]domain.RawRow, error)

	// GetByHash retrieves a row by tradehash. Returns ErrNotFound if not exists.
	GetByHash(ctx context.Context, tradeHash string) (domain.RawRow, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)
}
