package core

import (
	"errors"
	"time"
)

// TableStatus marks whether a table's current version passed its quality
// gate and may be consumed downstream.
type TableStatus string

// Table version statuses.
const (
	TableStatusValid  TableStatus = "VALID"
	TableStatusFailed TableStatus = "FAILED"
)

// ErrTableVersionNotFound is returned for tables never built by a run.
var ErrTableVersionNotFound = errors.New("table version not found")

// TableVersion is the completion marker for one pipeline-built table. The
// engine records it after the quality gate and refuses to read a source
// whose marker is missing or FAILED, so a failed table version is never
// consumed downstream.
type TableVersion struct {
	TableName string
	RunID     string
	Status    TableStatus
	UpdatedAt time.Time
}
