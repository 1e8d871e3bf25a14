package core

import "time"

// CheckType enumerates the declarative quality check kinds.
type CheckType string

// Quality check types.
const (
	CheckNotNull     CheckType = "NOT_NULL"
	CheckUnique      CheckType = "UNIQUE"
	CheckRange       CheckType = "RANGE"
	CheckReferential CheckType = "REFERENTIAL"
	CheckCustom      CheckType = "CUSTOM"
)

// CheckStatus is the outcome of a single quality check evaluation.
type CheckStatus string

// Quality check outcomes. WARNING marks a possible but non-blocking problem
// and never fails a run.
const (
	CheckStatusPass    CheckStatus = "PASS"
	CheckStatusFail    CheckStatus = "FAIL"
	CheckStatusWarning CheckStatus = "WARNING"
)

// QualityCheckResult is the persisted outcome of one check against one table
// within a run. Results are immutable once written; quality history is
// append-only evidence.
type QualityCheckResult struct {
	ID         string
	RunID      string
	TableName  string
	ColumnName string
	CheckType  CheckType
	Expression string
	Expected   string
	Actual     string
	Status     CheckStatus
	Blocking   bool
	CheckedAt  time.Time
}
