package storage

import "hedge-lab/internal/domain"

// Columns lists the trade_rows value columns in table order.
var Columns = domain.KnownFields

// ColumnValues flattens a row into one nullable string per column.
// Unknown fields are dropped.
func ColumnValues(row domain.RawRow) []*string {
	vals := make([]*string, len(Columns))
	for i, field := range Columns {
		if v, ok := row.Value(field); ok {
			s := v
			vals[i] = &s
		}
	}
	return vals
}

// RowFromColumns is the inverse of ColumnValues. Null columns are omitted.
func RowFromColumns(vals []*string) domain.RawRow {
	row := make(domain.RawRow, len(Columns))
	for i, field := range Columns {
		if i < len(vals) && vals[i] != nil {
			row[field] = *vals[i]
		}
	}
	return row
}

// TradeHash returns the row key, or "" when absent.
func TradeHash(row domain.RawRow) string {
	h, _ := row.Value(domain.FieldTradeHash)
	return h
}
