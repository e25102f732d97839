package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/observability"
	"hedge-lab/internal/storage"
)

// TradeRowStore implements storage.TradeRowStore using ClickHouse.
//
// MergeTree does not enforce keys, so duplicates are checked before each
// insert and seq is assigned here. A single store instance must own the
// table's writes for both to hold.
type TradeRowStore struct {
	conn *Conn
	mu   sync.Mutex // serializes InsertBulk
}

// NewTradeRowStore creates a new TradeRowStore.
func NewTradeRowStore(conn *Conn) *TradeRowStore {
	return &TradeRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeRowStore = (*TradeRowStore)(nil)

var columnList = strings.Join(storage.Columns, ", ")

// InsertBulk adds rows. Fails entire batch on any duplicate.
func (s *TradeRowStore) InsertBulk(ctx context.Context, rows []domain.RawRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	hashes := make([]string, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		h := storage.TradeHash(row)
		if h == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[h]; exists {
			return storage.ErrDuplicateKey
		}
		seen[h] = struct{}{}
		hashes[i] = h
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_trade_rows", time.Since(start).Seconds(), err) }()

	for _, h := range hashes {
		exists, err := s.exists(ctx, h)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	var next uint64
	if err := s.conn.QueryRow(ctx, "SELECT max(seq) + 1 FROM trade_rows").Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO trade_rows (seq, %s)", columnList))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, row := range rows {
		vals := storage.ColumnValues(row)
		args := make([]any, 0, len(vals)+1)
		args = append(args, next+uint64(i), hashes[i])
		for _, v := range vals[1:] {
			args = append(args, v)
		}
		if err := batch.Append(args...); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// LoadRows retrieves all rows in insertion order.
func (s *TradeRowStore) LoadRows(ctx context.Context) (result []domain.RawRow, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "load_trade_rows", time.Since(start).Seconds(), err) }()

	rows, err := s.conn.Query(ctx, fmt.Sprintf("SELECT %s FROM trade_rows FINAL ORDER BY seq ASC", columnList))
	if err != nil {
		return nil, fmt.Errorf("query trade rows: %w", err)
	}
	defer rows.Close()

	return scanTradeRows(rows)
}

// GetByHash retrieves a row by tradehash. Returns ErrNotFound if not exists.
func (s *TradeRowStore) GetByHash(ctx context.Context, tradeHash string) (domain.RawRow, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf("SELECT %s FROM trade_rows FINAL WHERE tradehash = ? LIMIT 1", columnList), tradeHash)
	if err != nil {
		return nil, fmt.Errorf("query trade row: %w", err)
	}
	defer rows.Close()

	result, err := scanTradeRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	return result[0], nil
}

// Count returns the number of stored rows.
func (s *TradeRowStore) Count(ctx context.Context) (int, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, "SELECT count() FROM trade_rows FINAL").Scan(&n); err != nil {
		return 0, fmt.Errorf("count trade rows: %w", err)
	}
	return int(n), nil
}

func (s *TradeRowStore) exists(ctx context.Context, tradeHash string) (bool, error) {
	var count uint64
	if err := s.conn.QueryRow(ctx, "SELECT count() FROM trade_rows WHERE tradehash = ?", tradeHash).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTradeRows scans rows whose first column is the non-null tradehash.
func scanTradeRows(rows chRows) ([]domain.RawRow, error) {
	var result []domain.RawRow

	for rows.Next() {
		var hash string
		vals := make([]*string, len(storage.Columns))
		dest := make([]any, len(vals))
		dest[0] = &hash
		for i := 1; i < len(vals); i++ {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		vals[0] = &hash
		result = append(result, storage.RowFromColumns(vals))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return result, nil
}
