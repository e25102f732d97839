package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/ingestion"
	"hedge-lab/internal/orchestrator"
	"hedge-lab/internal/query"
	"hedge-lab/internal/reporting"
)

// rowLoader supplies the rows of one job.
type rowLoader func(ctx context.Context) ([]domain.RawRow, error)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   len(s.registry.List()),
	})
}

// handleAnalyze runs an uploaded CSV synchronously and returns the
// summary with the first page of pairs.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rows, params, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	job := newJob(s.newID(), params, s.now())
	if err := s.registry.Add(job); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	job.start(cancel)
	s.execute(ctx, job, func(context.Context) ([]domain.RawRow, error) { return rows, nil })

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("analysis %s: %s", snap.Status, snap.Error))
		return
	}

	view, err := parseViewParams(r, s.cfg.PageSize)
	if err != nil {
		view = query.ViewParams{Page: 1, PageSize: s.cfg.PageSize}
	}
	resp := s.jobFrom(snap, s.generator.Generate(snap.Run))
	resp.Result.Pairs = viewFrom(snap.Run.View(view))
	writeJSON(w, http.StatusOK, resp)
}

// handleSubmit starts an analysis in the background and returns 202.
// The rows come from an uploaded CSV, or from the row store with source=store.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var (
		load   rowLoader
		params domain.AnalysisParameters
	)

	if r.URL.Query().Get("source") == "store" {
		if s.store == nil {
			writeError(w, http.StatusBadRequest, "no row store configured")
			return
		}
		p, err := parseAnalysisParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params, load = p, s.store.LoadRows
	} else {
		rows, p, ok := s.readUpload(w, r)
		if !ok {
			return
		}
		params = p
		load = func(context.Context) ([]domain.RawRow, error) { return rows, nil }
	}

	job := newJob(s.newID(), params, s.now())
	if err := s.registry.Add(job); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	job.start(cancel)
	go func() {
		defer cancel()
		s.execute(ctx, job, load)
	}()

	w.Header().Set("Location", "/runs/"+job.ID)
	writeJSON(w, http.StatusAccepted, s.jobFrom(job.Snapshot(), nil))
}

// execute runs one job to completion and records the outcome on it.
func (s *Server) execute(ctx context.Context, job *Job, load rowLoader) {
	log := s.logger.With(zap.String("job_id", job.ID))
	log.Info("run started")

	rows, err := load(ctx)
	var run *orchestrator.AnalysisRun
	if err == nil {
		run, err = s.orch.RunWithProgress(ctx, rows, job.Params, job.progress)
	}
	job.finish(run, err, s.now())

	snap := job.Snapshot()
	if err != nil {
		log.Warn("run finished", zap.String("status", string(snap.Status)), zap.Error(err))
		return
	}
	log.Info("run finished",
		zap.String("status", string(snap.Status)),
		zap.String("run_id", run.ID),
		zap.Int("pairs", len(run.Pairs)),
		zap.Duration("duration", run.Duration),
	)
}

// readUpload parses the multipart form: a .csv "file" plus analysis params.
// On failure it writes the error response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]domain.RawRow, domain.AnalysisParameters, bool) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return nil, domain.AnalysisParameters{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		} else {
			writeError(w, http.StatusBadRequest, "expected a multipart form upload")
		}
		return nil, domain.AnalysisParameters{}, false
	}

	params, err := parseAnalysisParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, params, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return nil, params, false
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "file must be a .csv")
		return nil, params, false
	}

	rows, err := ingestion.ReadCSV(file)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrMissingColumn) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return nil, params, false
	}
	return rows, params, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.List()
	out := make([]jobResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, s.jobFrom(snap, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	snap := job.Snapshot()
	var report *reporting.Report
	if snap.Run != nil {
		report = s.generator.Generate(snap.Run)
	}
	writeJSON(w, http.StatusOK, s.jobFrom(snap, report))
}

// handleCancel cancels a running job. Finished jobs answer 409.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	if !job.Cancel() {
		writeError(w, http.StatusConflict, fmt.Sprintf("run already %s", job.Snapshot().Status))
		return
	}
	writeJSON(w, http.StatusAccepted, s.jobFrom(job.Snapshot(), nil))
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	run, ok := s.completedRun(w, r)
	if !ok {
		return
	}
	view, err := parseViewParams(r, s.cfg.PageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewFrom(run.View(view)))
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	run, ok := s.completedRun(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["pairID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pair id")
		return
	}
	pair, found := run.Pair(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("pair %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, reporting.RecordFrom(pair))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.completedRun(w, r)
	if !ok {
		return
	}
	report := s.generator.Generate(run)
	writeJSON(w, http.StatusOK, summaryResponse{
		RunID:       run.ID,
		Summary:     report.Summary,
		Histograms:  report.Histograms,
		DataQuality: report.DataQuality,
		Pairing:     report.Pairing,
	})
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	run, ok := s.completedRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reporting.PatternsFrom(run.Patterns()))
}

// handleExport streams the run as csv, json, xlsx or md. The CSV export
// honors the type, min_confidence and sort view parameters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.completedRun(w, r)
	if !ok {
		return
	}
	format := mux.Vars(r)["format"]
	name := fmt.Sprintf("hedge_pairs_%s.%s", run.ID, format)

	var err error
	switch format {
	case "csv":
		view, verr := parseViewParams(r, s.cfg.PageSize)
		if verr != nil {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		pairs := query.Filter(run.Pairs, view.TypeFilter, view.MinConfidence)
		query.Sort(pairs, view.SortKey)
		setAttachment(w, "text/csv; charset=utf-8", name)
		err = reporting.WriteCSV(w, reporting.RecordsFrom(pairs))
	case "json":
		setAttachment(w, "application/json", name)
		err = reporting.WriteJSON(w, s.generator.Generate(run))
	case "xlsx":
		setAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", name)
		err = reporting.WriteXLSX(w, s.generator.Generate(run))
	case "md":
		setAttachment(w, "text/markdown; charset=utf-8", name)
		_, err = w.Write([]byte(reporting.RenderMarkdown(s.generator.Generate(run))))
	}
	if err != nil {
		// headers are already sent
		s.logger.Warn("export failed", zap.String("format", format), zap.Error(err))
	}
}

func setAttachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

// job resolves {id}, answering 404 when unknown.
func (s *Server) job(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	id := mux.Vars(r)["id"]
	job, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return nil, false
	}
	return job, true
}

// completedRun resolves {id} to a finished analysis, answering 409 while
// the job is pending, running, failed or cancelled.
func (s *Server) completedRun(w http.ResponseWriter, r *http.Request) (*orchestrator.AnalysisRun, bool) {
	job, ok := s.job(w, r)
	if !ok {
		return nil, false
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("run is %s", snap.Status))
		return nil, false
	}
	return snap.Run, true
}
