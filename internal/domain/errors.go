package domain

import (
	"errors"
	"fmt"
)

// Error kinds for record, field and parameter defects.
var (
	// ErrMissingField marks a row dropped because a required field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrMalformedTimestamp marks a timestamp field that cannot be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrMalformedNumeric marks a numeric field that cannot be parsed.
	ErrMalformedNumeric = errors.New("malformed numeric")

	// ErrInvalidRecord marks a parsed row that is internally inconsistent
	// (unknown direction, entry after close).
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidParameter marks run parameters rejected before processing.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMissingColumn is returned when a source lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
)

// FieldError describes a defect in one field of one trade.
type FieldError struct {
	Kind      error  // one of the sentinels above
	TradeHash string // may be empty when the hash itself is missing
	Field     string
	Value     string
	Err       error // underlying parse error, optional
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%v: trade %q field %s", e.Kind, e.TradeHash, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ParameterError describes a rejected analysis parameter.
type ParameterError struct {
	Field  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidParameter, e.Field, e.Reason)
}

// Unwrap returns ErrInvalidParameter.
func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// ErrorKindName returns a stable label for an error kind, used in
// data-quality summaries and metric labels.
func ErrorKindName(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrMalformedTimestamp):
		return "malformed_timestamp"
	case errors.Is(err, ErrMalformedNumeric):
		return "malformed_numeric"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrMissingColumn):
		return "missing_column"
	default:
		return "unknown"
	}
}
