package ingestion

import "hedge-lab/internal/domain"

// DataQuality summarizes rows dropped or degraded before pairing.
// Field-level numeric defects are counted but do not drop the row.
type DataQuality struct {
	RowsRead   int // rows handed to validation
	RowsValid  int // rows with every required field present
	RowsParsed int // typed records produced

	Defects domain.DefectLog
}

// RowsDropped is the number of rows that did not become trade records.
func (q DataQuality) RowsDropped() int {
	return q.RowsRead - q.RowsParsed
}
