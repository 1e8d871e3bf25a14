package core

// Store is the metadata layer: pipeline runs, quality results, lineage edges
// and the access audit trail. Implementations must keep run history
// append-only and reject terminal-state mutations of completed runs.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Run tracker. StartRun creates a RUNNING run; CompleteRun is the single
	// allowed terminal mutation and returns ErrRunNotFound / ErrRunNotActive
	// for unknown or already-completed runs.
	StartRun(pipeline string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, rowsProcessed int64, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	// Quality results, persisted regardless of outcome.
	RecordQualityResult(res *QualityCheckResult) error
	QualityResultsForRun(runID string) ([]*QualityCheckResult, error)

	// Lineage edges, append-only.
	RecordLineage(edge *LineageEdge) error
	LineageForTable(targetTable string) ([]*LineageEdge, error)
	ListLineage(limit int) ([]*LineageEdge, error)

	// Table completion markers, one per pipeline-built table, overwritten
	// each build. TableVersion returns ErrTableVersionNotFound for tables
	// never built.
	MarkTableVersion(v *TableVersion) error
	TableVersion(table string) (*TableVersion, error)

	// Access audit trail.
	RecordAccess(entry *AccessEntry) error
	ListAccess(limit int) ([]*AccessEntry, error)
}
