package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX export.
const (
	SheetSummary  = "Summary"
	SheetPairs    = "Pairs"
	SheetPatterns = "Patterns"
)

// WriteXLSX writes the report as a workbook with Summary, Pairs and
// Patterns sheets.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetPairs, SheetPatterns} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	sw := &sheetWriter{f: f, bold: bold}
	sw.summary(r)
	sw.pairs(r.Pairs)
	sw.patterns(r.Patterns)
	if sw.err != nil {
		return sw.err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f    *excelize.File
	bold int
	err  error
}

func (s *sheetWriter) row(sheet string, n int, values []interface{}) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		s.err = err
		return
	}
	if err := s.f.SetSheetRow(sheet, cell, &values); err != nil {
		s.err = fmt.Errorf("write %s row %d: %w", sheet, n, err)
	}
}

func (s *sheetWriter) header(sheet string, n int, values []interface{}) {
	s.row(sheet, n, values)
	if s.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, n)
	last, _ := excelize.CoordinatesToCellName(len(values), n)
	if err := s.f.SetCellStyle(sheet, first, last, s.bold); err != nil {
		s.err = err
	}
}

func (s *sheetWriter) summary(r *Report) {
	const sheet = SheetSummary
	sm := r.Summary
	rows := [][]interface{}{
		{"Run ID", r.RunID},
		{"Generated", r.GeneratedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"Price threshold", r.Params.PriceThreshold},
		{"Confidence threshold", r.Params.ConfidenceThreshold},
		{"Include close price", r.Params.IncludeClosePrice},
		{"Rows read", r.DataQuality.RowsRead},
		{"Trades parsed", r.DataQuality.RowsParsed},
		{"Total pairs", sm.TotalPairs},
		{"Self hedges", sm.SelfHedges},
		{"Inter-user hedges", sm.InterUserHedges},
		{"Average confidence", sm.AvgConfidence},
		{"Unique users", sm.UniqueUsers},
		{"Unique accounts", sm.UniqueAccounts},
		{"Users %", sm.UsersPercentage},
		{"Accounts %", sm.AccountsPercentage},
	}

	s.header(sheet, 1, []interface{}{"Metric", "Value"})
	for i, row := range rows {
		s.row(sheet, i+2, row)
	}

	n := len(rows) + 3
	s.header(sheet, n, []interface{}{"Confidence", "Pairs"})
	for _, b := range r.Histograms.Confidence {
		n++
		s.row(sheet, n, []interface{}{b.Label, b.Count})
	}
}

func (s *sheetWriter) pairs(records []PairRecord) {
	const sheet = SheetPairs
	header := make([]interface{}, len(PairColumns))
	for i, c := range PairColumns {
		header[i] = c
	}
	s.header(sheet, 1, header)

	for i, r := range records {
		values := []interface{}{
			r.ID, r.PairKey, r.PairType, r.Asset, r.Confidence,
			r.EntryTimeGap, r.EntryPriceGap, r.NetProfitSum,
		}
		values = append(values, r.TradeA.cells()...)
		values = append(values, r.TradeB.cells()...)
		s.row(sheet, i+2, values)
	}
}

func (t TradeRecord) cells() []interface{} {
	return []interface{}{
		t.TradeHash, t.Direction, t.Asset, t.AccountID, t.UserID,
		t.EntryTime, t.CloseTime,
		t.AvgEntryPrice, t.AvgClosePrice, t.TotalContracts, t.NetProfit, t.SecondsHeld,
	}
}

func (s *sheetWriter) patterns(p PatternsSection) {
	const sheet = SheetPatterns
	n := 1

	s.header(sheet, n, []interface{}{"Frequent user", "Pairs"})
	for _, u := range p.FrequentUsers {
		n++
		s.row(sheet, n, []interface{}{u.UserID, u.Count})
	}

	n += 2
	s.header(sheet, n, []interface{}{"Peak hour", "Pairs", "%"})
	for _, h := range p.PeakHours {
		n++
		s.row(sheet, n, []interface{}{fmt.Sprintf("%02d:00", h.Hour), h.Count, h.Percentage})
	}

	n += 2
	s.header(sheet, n, []interface{}{"Asset", "Pairs", "%"})
	for _, a := range p.Assets {
		n++
		s.row(sheet, n, []interface{}{a.Asset, a.Count, a.Percentage})
	}
}
