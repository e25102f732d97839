package ingestion

import (
	"context"

	"hedge-lab/internal/domain"
)

// RowSource supplies raw trade rows for one analysis run.
// Rows must be returned in a stable order; pair ids depend on it.
type RowSource interface {
	LoadRows(ctx context.Context) ([]domain.RawRow, error)
}

// RowSink accepts raw trade rows, e.g. a database table.
type RowSink interface {
	InsertBulk(ctx context.Context, rows []domain.RawRow) error
}

// CSVFileSource reads rows from a CSV file on disk.
type CSVFileSource struct {
	Path string
}

// LoadRows reads the whole file.
func (s CSVFileSource) LoadRows(_ context.Context) ([]domain.RawRow, error) {
	return ReadCSVFile(s.Path)
}

// StaticSource serves a fixed slice of rows.
type StaticSource []domain.RawRow

// LoadRows returns the rows as given.
func (s StaticSource) LoadRows(_ context.Context) ([]domain.RawRow, error) {
	return s, nil
}

var (
	_ RowSource = CSVFileSource{}
	_ RowSource = StaticSource(nil)
)
