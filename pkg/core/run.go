package core

import (
	"errors"
	"time"
)

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

// Run status values. A run is created RUNNING and mutated exactly once to a
// terminal status; history is append-only.
const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// Run tracker logic errors. Completing a run twice, or completing a run id
// that was never started, is a caller bug and is surfaced, not swallowed.
var (
	ErrRunNotFound  = errors.New("pipeline run not found")
	ErrRunNotActive = errors.New("pipeline run already completed")
)

// Run records one pipeline execution.
type Run struct {
	ID            string
	Pipeline      string
	Status        RunStatus
	StartedAt     time.Time
	CompletedAt   *time.Time
	RowsProcessed int64
	Error         string
}

// Terminal reports whether the run has reached a terminal status.
func (r *Run) Terminal() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailed
}
