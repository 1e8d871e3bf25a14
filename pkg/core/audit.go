package core

import "time"

// Access operations recorded by the auditor.
const (
	AccessOpRead  = "READ"
	AccessOpWrite = "WRITE"
	AccessOpAdmin = "ADMIN"
)

// AccessEntry is one audited store operation. Entries are best-effort,
// forensic evidence: a failed audit write must never abort the operation
// being audited.
type AccessEntry struct {
	ID             string
	ConnectionType string
	User           string
	Operation      string
	TableName      string
	Success        bool
	Error          string
	OccurredAt     time.Time
}
