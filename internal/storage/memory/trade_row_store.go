package memory

import (
	"context"
	"sync"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/storage"
)

// TradeRowStore is an in-memory implementation of storage.TradeRowStore.
type TradeRowStore struct {
	mu    sync.RWMutex
	rows  []domain.RawRow
	index map[string]int // tradehash -> position in rows
}

// NewTradeRowStore creates a new in-memory trade row store.
func NewTradeRowStore() *TradeRowStore {
	return &TradeRowStore{
		index: make(map[string]int),
	}
}

var _ storage.TradeRowStore = (*TradeRowStore)(nil)

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *TradeRowStore) InsertBulk(_ context.Context, rows []domain.RawRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, row := range rows {
		hash := storage.TradeHash(row)
		if hash == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.index[hash]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[hash]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[hash] = struct{}{}
	}

	// Second pass: insert normalized copies
	for _, row := range rows {
		s.index[storage.TradeHash(row)] = len(s.rows)
		s.rows = append(s.rows, storage.RowFromColumns(storage.ColumnValues(row)))
	}

	return nil
}

// LoadRows retrieves all rows in insertion order.
func (s *TradeRowStore) LoadRows(_ context.Context) ([]domain.RawRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RawRow, len(s.rows))
	for i, row := range s.rows {
		result[i] = copyRow(row)
	}
	return result, nil
}

// GetByHash retrieves a row by tradehash.
func (s *TradeRowStore) GetByHash(_ context.Context, tradeHash string) (domain.RawRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[tradeHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRow(s.rows[i]), nil
}

// Count returns the number of stored rows.
func (s *TradeRowStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func copyRow(row domain.RawRow) domain.RawRow {
	c := make(domain.RawRow, len(row))
	for k, v := range row {
		c[k] = v
	}
	return c
}
