package ingestion

import "hedge-lab/internal/domain"

// Validate returns the rows whose required fields are all present and
// non-null, preserving input order. Dropped rows are only counted.
func Validate(rows []domain.RawRow) ([]domain.RawRow, DataQuality) {
	var q DataQuality
	q.RowsRead = len(rows)

	valid := make([]domain.RawRow, 0, len(rows))
	for _, row := range rows {
		if field, ok := firstMissing(row); !ok {
			hash, _ := row.Value(domain.FieldTradeHash)
			q.Defects.Record(&domain.FieldError{
				Kind:      domain.ErrMissingField,
				TradeHash: hash,
				Field:     field,
			})
			continue
		}
		valid = append(valid, row)
	}

	q.RowsValid = len(valid)
	return valid, q
}

// firstMissing returns the first required field absent from row.
func firstMissing(row domain.RawRow) (string, bool) {
	for _, f := range domain.RequiredFields {
		if !row.Has(f) {
			return f, false
		}
	}
	return "", true
}

// Prepare runs validation then parsing and returns typed records with a
// combined data-quality summary.
func Prepare(rows []domain.RawRow) ([]domain.TradeRecord, DataQuality) {
	valid, q := Validate(rows)
	trades, pq := Parse(valid)
	q.RowsParsed = len(trades)
	q.Defects.Merge(pq.Defects)
	return trades, q
}
