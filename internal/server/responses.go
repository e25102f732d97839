package server

import (
	"encoding/json"
	"net/http"
	"time"

	"hedge-lab/internal/query"
	"hedge-lab/internal/reporting"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type jobResponse struct {
	ID         string                  `json:"id"`
	Status     Status                  `json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Params     reporting.ParamsSection `json:"parameters"`
	Progress   Event                   `json:"progress"`
	Error      string                  `json:"error,omitempty"`
	Result     *resultBlock            `json:"result,omitempty"`
}

type resultBlock struct {
	RunID       string                   `json:"run_id"`
	DurationMs  int64                    `json:"duration_ms"`
	Summary     reporting.SummarySection `json:"summary"`
	DataQuality reporting.QualitySection `json:"data_quality"`
	Pairing     reporting.PairingSection `json:"pairing"`
	Pairs       *viewResponse            `json:"pairs,omitempty"`
}

type viewResponse struct {
	Items      []reporting.PairRecord `json:"items"`
	Page       int                    `json:"current_page"`
	PageCount  int                    `json:"page_count"`
	PageSize   int                    `json:"page_size"`
	TotalItems int                    `json:"total_items"`
	HasPrev    bool                   `json:"has_prev"`
	HasNext    bool                   `json:"has_next"`
}

type summaryResponse struct {
	RunID       string                    `json:"run_id"`
	Summary     reporting.SummarySection  `json:"summary"`
	Histograms  reporting.HistogramsBlock `json:"histograms"`
	DataQuality reporting.QualitySection  `json:"data_quality"`
	Pairing     reporting.PairingSection  `json:"pairing"`
}

func viewFrom(v query.ResultView) *viewResponse {
	return &viewResponse{
		Items:      reporting.RecordsFrom(v.Items),
		Page:       v.Page,
		PageCount:  v.PageCount,
		PageSize:   v.PageSize,
		TotalItems: v.TotalItems,
		HasPrev:    v.HasPrev,
		HasNext:    v.HasNext,
	}
}

func (s *Server) jobFrom(snap Snapshot, report *reporting.Report) jobResponse {
	resp := jobResponse{
		ID:        snap.ID,
		Status:    snap.Status,
		CreatedAt: snap.CreatedAt,
		Params:    reporting.ParamsFrom(snap.Params),
		Progress:  snap.Progress,
		Error:     snap.Error,
	}
	if !snap.FinishedAt.IsZero() {
		t := snap.FinishedAt
		resp.FinishedAt = &t
	}
	if snap.Run != nil && report != nil {
		resp.Result = &resultBlock{
			RunID:       snap.Run.ID,
			DurationMs:  snap.Run.Duration.Milliseconds(),
			Summary:     report.Summary,
			DataQuality: report.DataQuality,
			Pairing:     report.Pairing,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: w.Header().Get(RequestIDHeader)})
}
