package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// StartRun creates a new pipeline run in the RUNNING state.
func (s *SQLiteStore) StartRun(pipeline string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:        generateID(),
		Pipeline:  pipeline,
		Status:    core.RunStatusRunning,
		StartedAt: s.clock.Now().UTC(),
	}

	s.logger.Debug("starting run", slog.String("id", run.ID), slog.String("pipeline", pipeline))

	_, err := s.db.Exec(
		`INSERT INTO pipeline_runs (id, pipeline, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Pipeline, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, pipeline, status, started_at, completed_at, rows_processed, error
		 FROM pipeline_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Pipeline, &run.Status, &run.StartedAt, &completedAt, &run.RowsProcessed, &errMsg)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}

// CompleteRun marks a run as terminal. It is the single allowed mutation of
// a run; completing an unknown run returns core.ErrRunNotFound and
// completing an already-terminal run returns core.ErrRunNotActive.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, rowsProcessed int64, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if status != core.RunStatusSuccess && status != core.RunStatusFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	now := s.clock.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	res, err := s.db.Exec(
		`UPDATE pipeline_runs SET status = ?, completed_at = ?, rows_processed = ?, error = ?
		 WHERE id = ? AND status = ?`,
		string(status), now, rowsProcessed, errorPtr, id, string(core.RunStatusRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing run from a double completion.
		var existing string
		err := s.db.QueryRow(`SELECT status FROM pipeline_runs WHERE id = ?`, id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to check run status: %w", err)
		}
		return fmt.Errorf("%w: %s (status %s)", core.ErrRunNotActive, id, existing)
	}

	s.logger.Debug("completed run",
		slog.String("id", id), slog.String("status", string(status)), slog.Int64("rows", rowsProcessed))

	return nil
}

// ListRuns retrieves the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, pipeline, status, started_at, completed_at, rows_processed, error
		 FROM pipeline_runs ORDER BY started_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run := &core.Run{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.Status, &run.StartedAt, &completedAt, &run.RowsProcessed, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
