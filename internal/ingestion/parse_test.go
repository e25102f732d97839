package ingestion

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"hedge-lab/internal/domain"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"[1700000000000]", 1700000000000, false},
		{"1700000000000", 1700000000000, false},
		{" [ 100 ] ", 100, false},
		{"[100, 200]", 100, false},
		{"['100', '200']", 100, false},
		{"[1.7e12]", 1700000000000, false},
		{"[]", 0, true},
		{"", 0, true},
		{"[abc]", 0, true},
		{"[100.5]", 0, true},
		{"[99999999999999999999]", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"18000.25", "18000.25", false},
		{" 18,000.25 ", "18000.25", false},
		{"-12.5", "-12.5", false},
		{"", "", true},
		{"n/a", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDecimal(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDecimal(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseDecimal(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestParseRow(t *testing.T) {
	tr, fieldErrs, err := ParseRow(makeRow("h1", map[string]any{domain.FieldDirection: " short "}))
	if err != nil {
		t.Fatalf("ParseRow() error = %v", err)
	}
	if len(fieldErrs) != 0 {
		t.Fatalf("unexpected field errors: %v", fieldErrs)
	}

	if tr.TradeHash != "h1" || tr.Direction != domain.DirectionShort {
		t.Errorf("identity = %s/%s", tr.TradeHash, tr.Direction)
	}
	if tr.EntryTime != 100 || tr.CloseTime != 200 {
		t.Errorf("times = %d/%d, want 100/200", tr.EntryTime, tr.CloseTime)
	}
	if !tr.AvgEntryPrice.Valid || !tr.AvgEntryPrice.Decimal.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("AvgEntryPrice = %v", tr.AvgEntryPrice)
	}
	if !tr.NetProfit.Decimal.Equal(decimal.RequireFromString("20.5")) {
		t.Errorf("NetProfit = %v", tr.NetProfit)
	}
	if tr.SecondsHeld == nil || *tr.SecondsHeld != 100 {
		t.Errorf("SecondsHeld = %v, want 100", tr.SecondsHeld)
	}
}

func TestParseRow_RowDefects(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]any
		wantKind error
	}{
		{"unknown direction", map[string]any{domain.FieldDirection: "BUY"}, domain.ErrInvalidRecord},
		{"entry after close", map[string]any{domain.FieldEntryDatetimes: "[300]"}, domain.ErrInvalidRecord},
		{"bad entry time", map[string]any{domain.FieldEntryDatetimes: "[x]"}, domain.ErrMalformedTimestamp},
		{"empty close list", map[string]any{domain.FieldCloseDatetimes: "[]"}, domain.ErrMalformedTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRow(makeRow("h1", tt.override))
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("ParseRow() error = %v, want %v", err, tt.wantKind)
			}
		})
	}
}

func TestParseRow_NumericDefectsKeepRow(t *testing.T) {
	tr, fieldErrs, err := ParseRow(makeRow("h1", map[string]any{
		domain.FieldAvgClose:    "?",
		domain.FieldSecondsHeld: "1.5",
		domain.FieldNetProfit:   nil,
	}))
	if err != nil {
		t.Fatalf("ParseRow() error = %v", err)
	}
	if len(fieldErrs) != 2 {
		t.Fatalf("len(fieldErrs) = %d, want 2: %v", len(fieldErrs), fieldErrs)
	}
	for _, fe := range fieldErrs {
		if !errors.Is(fe, domain.ErrMalformedNumeric) {
			t.Errorf("field error %v is not ErrMalformedNumeric", fe)
		}
	}
	if tr.AvgClosePrice.Valid || tr.NetProfit.Valid || tr.SecondsHeld != nil {
		t.Error("defective optional fields should stay unset")
	}
	if !tr.AvgEntryPrice.Valid {
		t.Error("AvgEntryPrice should parse")
	}
}

func TestParse_NumericValuesFromJSON(t *testing.T) {
	row := makeRow("h1", map[string]any{
		domain.FieldAvgEntry:       18000.5,
		domain.FieldTotalContracts: 3,
	})

	trades, q := Parse([]domain.RawRow{row})
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1 (defects %v)", len(trades), q.Defects.Summary())
	}
	if !trades[0].AvgEntryPrice.Decimal.Equal(decimal.RequireFromString("18000.5")) {
		t.Errorf("AvgEntryPrice = %s", trades[0].AvgEntryPrice.Decimal)
	}
	if !trades[0].TotalContracts.Decimal.Equal(decimal.NewFromInt(3)) {
		t.Errorf("TotalContracts = %s", trades[0].TotalContracts.Decimal)
	}
}
