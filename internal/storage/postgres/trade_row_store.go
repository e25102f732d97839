package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/observability"
	"hedge-lab/internal/storage"
)

// TradeRowStore implements storage.TradeRowStore using PostgreSQL.
type TradeRowStore struct {
	pool *Pool
}

// NewTradeRowStore creates a new TradeRowStore.
func NewTradeRowStore(pool *Pool) *TradeRowStore {
	return &TradeRowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRowStore = (*TradeRowStore)(nil)

var (
	columnList = strings.Join(storage.Columns, ", ")
	insertRow  = fmt.Sprintf("INSERT INTO trade_rows (%s) VALUES (%s)", columnList, placeholders(len(storage.Columns)))
	selectRows = fmt.Sprintf("SELECT %s FROM trade_rows", columnList)
)

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
// Rows are queued in one pipelined batch so seq follows slice order.
func (s *TradeRowStore) InsertBulk(ctx context.Context, rows []domain.RawRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if storage.TradeHash(row) == "" {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "insert_trade_rows", time.Since(start).Seconds(), err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertRow, args(row)...)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade row in bulk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadRows retrieves all rows in insertion order.
func (s *TradeRowStore) LoadRows(ctx context.Context) (result []domain.RawRow, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "load_trade_rows", time.Since(start).Seconds(), err) }()

	rows, err := s.pool.Query(ctx, selectRows+" ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("query trade rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanTradeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return result, nil
}

// GetByHash retrieves a row by tradehash. Returns ErrNotFound if not exists.
func (s *TradeRowStore) GetByHash(ctx context.Context, tradeHash string) (domain.RawRow, error) {
	row, err := scanTradeRow(s.pool.QueryRow(ctx, selectRows+" WHERE tradehash = $1", tradeHash))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade row: %w", err)
	}
	return row, nil
}

// Count returns the number of stored rows.
func (s *TradeRowStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trade_rows").Scan(&n); err != nil {
		return 0, fmt.Errorf("count trade rows: %w", err)
	}
	return n, nil
}

func args(row domain.RawRow) []any {
	vals := storage.ColumnValues(row)
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func scanTradeRow(row pgx.Row) (domain.RawRow, error) {
	vals := make([]*string, len(storage.Columns))
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return storage.RowFromColumns(vals), nil
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}
