package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dakota-labs/glpipe/pkg/core"
)

const defaultListLimit = 50

type runResponse struct {
	ID            string     `json:"id"`
	Pipeline      string     `json:"pipeline"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	RowsProcessed int64      `json:"rows_processed"`
	Error         string     `json:"error,omitempty"`
}

type qualityResponse struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	TableName  string    `json:"table_name"`
	ColumnName string    `json:"column_name,omitempty"`
	CheckType  string    `json:"check_type"`
	Expression string    `json:"expression"`
	Expected   string    `json:"expected"`
	Actual     string    `json:"actual"`
	Status     string    `json:"status"`
	Blocking   bool      `json:"blocking"`
	CheckedAt  time.Time `json:"checked_at"`
}

type lineageResponse struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	SourceTable    string    `json:"source_table"`
	TargetTable    string    `json:"target_table"`
	TransformKind  string    `json:"transform_kind"`
	TransformLogic string    `json:"transform_logic"`
	CreatedAt      time.Time `json:"created_at"`
}

type auditResponse struct {
	ID             string    `json:"id"`
	ConnectionType string    `json:"connection_type"`
	User           string    `json:"user"`
	Operation      string    `json:"operation"`
	TableName      string    `json:"table_name"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(limitParam(r))
	s.auditor.Record(core.AccessOpRead, "pipeline_runs", err == nil, err)
	if err != nil {
		s.serverError(w, "failed to list runs", err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:            run.ID,
			Pipeline:      run.Pipeline,
			Status:        string(run.Status),
			StartedAt:     run.StartedAt,
			CompletedAt:   run.CompletedAt,
			RowsProcessed: run.RowsProcessed,
			Error:         run.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleRunQuality(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(runID); err != nil {
		if errors.Is(err, core.ErrRunNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		s.serverError(w, "failed to load run", err)
		return
	}

	results, err := s.store.QualityResultsForRun(runID)
	s.auditor.Record(core.AccessOpRead, "quality_check_results", err == nil, err)
	if err != nil {
		s.serverError(w, "failed to list quality results", err)
		return
	}
	out := make([]qualityResponse, 0, len(results))
	for _, res := range results {
		out = append(out, qualityResponse{
			ID:         res.ID,
			RunID:      res.RunID,
			TableName:  res.TableName,
			ColumnName: res.ColumnName,
			CheckType:  string(res.CheckType),
			Expression: res.Expression,
			Expected:   res.Expected,
			Actual:     res.Actual,
			Status:     string(res.Status),
			Blocking:   res.Blocking,
			CheckedAt:  res.CheckedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	var (
		edges []*core.LineageEdge
		err   error
	)
	if table := r.URL.Query().Get("table"); table != "" {
		edges, err = s.store.LineageForTable(table)
	} else {
		edges, err = s.store.ListLineage(limitParam(r))
	}
	s.auditor.Record(core.AccessOpRead, "lineage_edges", err == nil, err)
	if err != nil {
		s.serverError(w, "failed to list lineage", err)
		return
	}
	out := make([]lineageResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, lineageResponse{
			ID:             e.ID,
			RunID:          e.RunID,
			SourceTable:    e.SourceTable,
			TargetTable:    e.TargetTable,
			TransformKind:  string(e.TransformKind),
			TransformLogic: e.TransformLogic,
			CreatedAt:      e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListAccess(limitParam(r))
	s.auditor.Record(core.AccessOpRead, "access_audit", err == nil, err)
	if err != nil {
		s.serverError(w, "failed to list audit entries", err)
		return
	}
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:             e.ID,
			ConnectionType: e.ConnectionType,
			User:           e.User,
			Operation:      e.Operation,
			TableName:      e.TableName,
			Success:        e.Success,
			Error:          e.Error,
			OccurredAt:     e.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func limitParam(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}
