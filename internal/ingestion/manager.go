package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows written per InsertBulk call.
const DefaultBatchSize = 1000

// Manager copies rows from a source into a sink in fixed-size batches.
type Manager struct {
	source    RowSource
	sink      RowSink
	batchSize int
	logger    *zap.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source    RowSource
	Sink      RowSink
	BatchSize int
	Logger    *zap.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		source:    opts.Source,
		sink:      opts.Sink,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	RowsRead    int
	RowsWritten int
	Quality     DataQuality
}

// Import loads all rows, drops those missing required fields, and writes the
// rest to the sink. Source order is preserved across batches.
func (m *Manager) Import(ctx context.Context) (*ImportResult, error) {
	rows, err := m.source.LoadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}

	valid, quality := Validate(rows)
	result := &ImportResult{RowsRead: len(rows), Quality: quality}

	for start := 0; start < len(valid); start += m.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := start + m.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := m.sink.InsertBulk(ctx, valid[start:end]); err != nil {
			return result, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		result.RowsWritten = end
		m.logger.Debug("batch written", zap.Int("from", start), zap.Int("to", end))
	}

	m.logger.Info("import complete",
		zap.Int("rows_read", result.RowsRead),
		zap.Int("rows_written", result.RowsWritten),
		zap.Int("rows_dropped", result.RowsRead-result.RowsWritten),
	)
	return result, nil
}
