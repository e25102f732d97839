package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hedge-lab/internal/domain"
)

var errEmptyList = errors.New("empty list")

// Parse converts validated rows into typed trade records.
//
// Rows with an unknown direction, an unparseable timestamp, or entry after
// close are dropped and counted. Numeric fields that fail to parse are left
// invalid on the record and counted; the pairing stage refuses to use them.
func Parse(rows []domain.RawRow) ([]domain.TradeRecord, DataQuality) {
	var q DataQuality
	q.RowsRead = len(rows)

	trades := make([]domain.TradeRecord, 0, len(rows))
	for _, row := range rows {
		t, fieldErrs, err := ParseRow(row)
		for _, fe := range fieldErrs {
			q.Defects.Record(fe)
		}
		if err != nil {
			q.Defects.Record(err)
			continue
		}
		trades = append(trades, t)
	}

	q.RowsValid = len(rows)
	q.RowsParsed = len(trades)
	return trades, q
}

// ParseRow converts one validated row. A non-nil error means the row cannot
// be used at all. fieldErrs lists recoverable numeric defects.
func ParseRow(row domain.RawRow) (t domain.TradeRecord, fieldErrs []error, err error) {
	hash, _ := row.Value(domain.FieldTradeHash)
	t.TradeHash = hash
	t.AssetSymbol, _ = row.Value(domain.FieldAsset)
	t.AccountID, _ = row.Value(domain.FieldAccountID)
	t.UserID, _ = row.Value(domain.FieldUserID)

	rawDir, _ := row.Value(domain.FieldDirection)
	dir, ok := domain.ParseDirection(rawDir)
	if !ok {
		return t, nil, &domain.FieldError{
			Kind:      domain.ErrInvalidRecord,
			TradeHash: hash,
			Field:     domain.FieldDirection,
			Value:     rawDir,
		}
	}
	t.Direction = dir

	if t.EntryTime, err = timestampField(row, hash, domain.FieldEntryDatetimes); err != nil {
		return t, nil, err
	}
	if t.CloseTime, err = timestampField(row, hash, domain.FieldCloseDatetimes); err != nil {
		return t, nil, err
	}
	if t.EntryTime > t.CloseTime {
		return t, nil, &domain.FieldError{
			Kind:      domain.ErrInvalidRecord,
			TradeHash: hash,
			Field:     domain.FieldCloseDatetimes,
			Value:     fmt.Sprintf("entry %d after close %d", t.EntryTime, t.CloseTime),
		}
	}

	numeric := func(field string) decimal.NullDecimal {
		raw, ok := row.Value(field)
		if !ok {
			return decimal.NullDecimal{}
		}
		d, perr := ParseDecimal(raw)
		if perr != nil {
			fieldErrs = append(fieldErrs, &domain.FieldError{
				Kind:      domain.ErrMalformedNumeric,
				TradeHash: hash,
				Field:     field,
				Value:     raw,
				Err:       perr,
			})
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}

	t.AvgEntryPrice = numeric(domain.FieldAvgEntry)
	t.AvgClosePrice = numeric(domain.FieldAvgClose)
	t.TotalContracts = numeric(domain.FieldTotalContracts)
	t.NetProfit = numeric(domain.FieldNetProfit)

	if held := numeric(domain.FieldSecondsHeld); held.Valid {
		if !held.Decimal.IsInteger() {
			raw, _ := row.Value(domain.FieldSecondsHeld)
			fieldErrs = append(fieldErrs, &domain.FieldError{
				Kind:      domain.ErrMalformedNumeric,
				TradeHash: hash,
				Field:     domain.FieldSecondsHeld,
				Value:     raw,
			})
		} else {
			v := held.Decimal.IntPart()
			t.SecondsHeld = &v
		}
	}

	return t, fieldErrs, nil
}

func timestampField(row domain.RawRow, hash, field string) (int64, error) {
	raw, _ := row.Value(field)
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return 0, &domain.FieldError{
			Kind:      domain.ErrMalformedTimestamp,
			TradeHash: hash,
			Field:     field,
			Value:     raw,
			Err:       err,
		}
	}
	return ts, nil
}

// ParseTimestamp parses a bracket-wrapped epoch timestamp such as
// "[1700000000000]". A single leading '[' and trailing ']' are stripped.
// When the remainder is a comma list the first element is used.
func ParseTimestamp(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return 0, errEmptyList
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("non-integral timestamp %s", s)
	}
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, fmt.Errorf("timestamp %s out of range", s)
	}
	return d.IntPart(), nil
}

var (
	maxInt64 = decimal.NewFromInt(1<<63 - 1)
	minInt64 = decimal.NewFromInt(-1 << 63)
)

// ParseDecimal parses a numeric field that may carry surrounding
// whitespace or a thousands separator.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Decimal{}, errors.New("empty value")
	}
	return decimal.NewFromString(s)
}
