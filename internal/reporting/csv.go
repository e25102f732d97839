package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// WriteCSV writes pair records as CSV with a PairColumns header.
func WriteCSV(w io.Writer, records []PairRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(PairColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("write csv pair %d: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// RenderCSV renders pair records as a CSV string.
func RenderCSV(records []PairRecord) (string, error) {
	var sb strings.Builder
	if err := WriteCSV(&sb, records); err != nil {
		return "", err
	}
	return sb.String(), nil
}
