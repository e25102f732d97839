package ingestion

import (
	"testing"

	"hedge-lab/internal/domain"
)

// makeRow returns a complete raw row; overrides replace or delete fields
// (a nil value deletes).
func makeRow(hash string, overrides map[string]any) domain.RawRow {
	row := domain.RawRow{
		domain.FieldTradeHash:      hash,
		domain.FieldDirection:      "LONG",
		domain.FieldAsset:          "NQM5",
		domain.FieldEntryDatetimes: "[100]",
		domain.FieldMarketEntries:  "[18000]",
		domain.FieldCloseDatetimes: "[200]",
		domain.FieldMarketCloses:   "[18010]",
		domain.FieldAccountID:      "acc-1",
		domain.FieldUserID:         "user-1",
		domain.FieldAvgEntry:       "18000",
		domain.FieldAvgClose:       "18010",
		domain.FieldTotalContracts: "2",
		domain.FieldNetProfit:      "20.5",
		domain.FieldSecondsHeld:    "100",
	}
	for k, v := range overrides {
		if v == nil {
			delete(row, k)
			continue
		}
		row[k] = v
	}
	return row
}

func TestValidate_DropsRowsMissingRequiredFields(t *testing.T) {
	rows := []domain.RawRow{
		makeRow("h1", nil),
		makeRow("h2", map[string]any{domain.FieldUserID: nil}),
		makeRow("h3", map[string]any{domain.FieldAsset: "  "}),
		makeRow("h4", map[string]any{domain.FieldNetProfit: nil}), // optional
		makeRow("h5", nil),
	}

	valid, q := Validate(rows)

	if len(valid) != 3 {
		t.Fatalf("len(valid) = %d, want 3", len(valid))
	}
	wantOrder := []string{"h1", "h4", "h5"}
	for i, row := range valid {
		if hash, _ := row.Value(domain.FieldTradeHash); hash != wantOrder[i] {
			t.Errorf("valid[%d] = %s, want %s", i, hash, wantOrder[i])
		}
	}
	if q.RowsRead != 5 || q.RowsValid != 3 {
		t.Errorf("quality = read %d valid %d, want 5/3", q.RowsRead, q.RowsValid)
	}
	if q.Defects.Count("missing_field") != 2 {
		t.Errorf("missing_field = %d, want 2", q.Defects.Count("missing_field"))
	}
}

func TestValidate_Empty(t *testing.T) {
	valid, q := Validate(nil)
	if len(valid) != 0 {
		t.Errorf("len(valid) = %d, want 0", len(valid))
	}
	if q.RowsRead != 0 || q.Defects.Total() != 0 {
		t.Errorf("unexpected quality %+v", q)
	}
}

func TestPrepare(t *testing.T) {
	rows := []domain.RawRow{
		makeRow("h1", nil),
		makeRow("h2", map[string]any{domain.FieldAccountID: nil}),
		makeRow("h3", map[string]any{domain.FieldEntryDatetimes: "[abc]"}),
		makeRow("h4", map[string]any{domain.FieldTotalContracts: "two"}),
	}

	trades, q := Prepare(rows)

	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2", len(trades))
	}
	if q.RowsRead != 4 || q.RowsValid != 3 || q.RowsParsed != 2 {
		t.Errorf("quality = %d/%d/%d, want 4/3/2", q.RowsRead, q.RowsValid, q.RowsParsed)
	}
	if q.RowsDropped() != 2 {
		t.Errorf("RowsDropped() = %d, want 2", q.RowsDropped())
	}
	if q.Defects.Count("missing_field") != 1 {
		t.Errorf("missing_field = %d, want 1", q.Defects.Count("missing_field"))
	}
	if q.Defects.Count("malformed_timestamp") != 1 {
		t.Errorf("malformed_timestamp = %d, want 1", q.Defects.Count("malformed_timestamp"))
	}
	if q.Defects.Count("malformed_numeric") != 1 {
		t.Errorf("malformed_numeric = %d, want 1", q.Defects.Count("malformed_numeric"))
	}
	if trades[1].TotalContracts.Valid {
		t.Error("unparseable total_contracts should be left invalid")
	}
}
