package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		raw    string
		want   Direction
		wantOK bool
	}{
		{"LONG", DirectionLong, true},
		{" short ", DirectionShort, true},
		{"Long", DirectionLong, true},
		{"BUY", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDirection(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("ParseDirection(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseDirection(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestDirection_Opposes(t *testing.T) {
	if !DirectionLong.Opposes(DirectionShort) {
		t.Error("LONG should oppose SHORT")
	}
	if DirectionLong.Opposes(DirectionLong) {
		t.Error("LONG should not oppose LONG")
	}
	if Direction("FLAT").Opposes(DirectionShort) {
		t.Error("invalid direction should never oppose")
	}
}

func TestTradeRecord_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TradeRecord
		want bool
	}{
		{"partial", TradeRecord{EntryTime: 100, CloseTime: 200}, TradeRecord{EntryTime: 150, CloseTime: 250}, true},
		{"contained", TradeRecord{EntryTime: 100, CloseTime: 400}, TradeRecord{EntryTime: 150, CloseTime: 250}, true},
		{"touching endpoints", TradeRecord{EntryTime: 100, CloseTime: 200}, TradeRecord{EntryTime: 200, CloseTime: 300}, true},
		{"disjoint", TradeRecord{EntryTime: 100, CloseTime: 200}, TradeRecord{EntryTime: 201, CloseTime: 300}, false},
		{"instant inside", TradeRecord{EntryTime: 150, CloseTime: 150}, TradeRecord{EntryTime: 100, CloseTime: 200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(&tt.b); got != tt.want {
				t.Errorf("a.Overlaps(b) = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(&tt.a); got != tt.want {
				t.Errorf("b.Overlaps(a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyPair(t *testing.T) {
	a := &TradeRecord{UserID: "u1"}
	if got := ClassifyPair(a, &TradeRecord{UserID: "u1"}); got != PairTypeSelfHedge {
		t.Errorf("same user = %s, want self_hedge", got)
	}
	if got := ClassifyPair(a, &TradeRecord{UserID: "u2"}); got != PairTypeInterUserHedge {
		t.Errorf("different user = %s, want inter_user_hedge", got)
	}
}

func TestHedgePair_Users(t *testing.T) {
	self := HedgePair{TradeA: TradeRecord{UserID: "u1"}, TradeB: TradeRecord{UserID: "u1"}}
	if got := self.Users(); len(got) != 1 || got[0] != "u1" {
		t.Errorf("self hedge users = %v, want [u1]", got)
	}

	inter := HedgePair{TradeA: TradeRecord{UserID: "u1"}, TradeB: TradeRecord{UserID: "u2"}}
	if got := inter.Users(); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("inter-user users = %v, want [u1 u2]", got)
	}
}

func TestAnalysisParameters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  AnalysisParameters
		wantErr bool
	}{
		{"defaults", DefaultAnalysisParameters(), false},
		{"zero thresholds", AnalysisParameters{}, false},
		{"confidence one", AnalysisParameters{PriceThreshold: 1, ConfidenceThreshold: 1}, false},
		{"negative price", AnalysisParameters{PriceThreshold: -1}, true},
		{"nan price", AnalysisParameters{PriceThreshold: math.NaN()}, true},
		{"inf price", AnalysisParameters{PriceThreshold: math.Inf(1)}, true},
		{"confidence above one", AnalysisParameters{ConfidenceThreshold: 1.01}, true},
		{"negative confidence", AnalysisParameters{ConfidenceThreshold: -0.1}, true},
		{"nan confidence", AnalysisParameters{ConfidenceThreshold: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidParameter", err)
			}
		})
	}
}

func TestFieldError_Is(t *testing.T) {
	cause := errors.New("bad digit")
	err := error(&FieldError{Kind: ErrMalformedNumeric, TradeHash: "h1", Field: FieldNetProfit, Value: "x", Err: cause})

	if !errors.Is(err, ErrMalformedNumeric) {
		t.Error("expected errors.Is(err, ErrMalformedNumeric)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	if errors.Is(err, ErrMissingField) {
		t.Error("unexpected match on ErrMissingField")
	}
	if got := ErrorKindName(err); got != "malformed_numeric" {
		t.Errorf("ErrorKindName() = %s, want malformed_numeric", got)
	}
	if got := ErrorKindName(errors.New("other")); got != "unknown" {
		t.Errorf("ErrorKindName(other) = %s, want unknown", got)
	}
}

func TestDefectLog(t *testing.T) {
	var a DefectLog
	a.Record(&FieldError{Kind: ErrMissingField, Field: FieldAsset})
	a.Record(&FieldError{Kind: ErrMissingField, Field: FieldUserID})

	var b DefectLog
	b.Record(&FieldError{Kind: ErrMalformedTimestamp, Field: FieldEntryDatetimes})

	a.Merge(b)

	if a.Total() != 3 {
		t.Errorf("Total() = %d, want 3", a.Total())
	}
	if a.Count("missing_field") != 2 {
		t.Errorf("Count(missing_field) = %d, want 2", a.Count("missing_field"))
	}

	summary := a.Summary()
	want := []string{"malformed_timestamp: 1", "missing_field: 2"}
	if len(summary) != len(want) {
		t.Fatalf("Summary() = %v, want %v", summary, want)
	}
	for i := range want {
		if summary[i] != want[i] {
			t.Errorf("Summary()[%d] = %q, want %q", i, summary[i], want[i])
		}
	}
}

func TestDefectLog_SamplesBounded(t *testing.T) {
	var l DefectLog
	for i := 0; i < MaxDefectSamples+10; i++ {
		l.Record(&FieldError{Kind: ErrInvalidRecord})
	}
	if len(l.Samples) != MaxDefectSamples {
		t.Errorf("len(Samples) = %d, want %d", len(l.Samples), MaxDefectSamples)
	}
	if l.Total() != MaxDefectSamples+10 {
		t.Errorf("Total() = %d, want %d", l.Total(), MaxDefectSamples+10)
	}
}

func TestRawRow_Value(t *testing.T) {
	row := RawRow{
		"s":     " abc ",
		"blank": "   ",
		"num":   json.Number("18000.25"),
		"f":     18000.5,
		"nan":   math.NaN(),
		"i":     42,
		"nil":   nil,
	}

	tests := []struct {
		field  string
		want   string
		wantOK bool
	}{
		{"s", "abc", true},
		{"blank", "", false},
		{"num", "18000.25", true},
		{"f", "18000.5", true},
		{"nan", "", false},
		{"i", "42", true},
		{"nil", "", false},
		{"absent", "", false},
	}

	for _, tt := range tests {
		got, ok := row.Value(tt.field)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Value(%q) = (%q, %v), want (%q, %v)", tt.field, got, ok, tt.want, tt.wantOK)
		}
	}
}
