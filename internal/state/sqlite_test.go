package state

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dakota-labs/glpipe/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	tables := []string{"pipeline_runs", "quality_check_results", "lineage_edges", "access_audit", "table_versions"}
	for _, table := range tables {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			rows.Close()
		}
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartRun("raw_to_staging")
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	if run.Status != core.RunStatusRunning {
		t.Errorf("new run status = %s, want RUNNING", run.Status)
	}
	if run.ID == "" {
		t.Error("new run has empty id")
	}

	if err := store.CompleteRun(run.ID, core.RunStatusSuccess, 42, ""); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != core.RunStatusSuccess {
		t.Errorf("completed run status = %s, want SUCCESS", got.Status)
	}
	if got.RowsProcessed != 42 {
		t.Errorf("rows processed = %d, want 42", got.RowsProcessed)
	}
	if got.CompletedAt == nil {
		t.Error("completed run has nil completed_at")
	}
}

func TestSQLiteStore_CompleteRunTwice(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartRun("staging_to_fact")
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	if err := store.CompleteRun(run.ID, core.RunStatusFailed, 0, "boom"); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	err = store.CompleteRun(run.ID, core.RunStatusSuccess, 0, "")
	if !errors.Is(err, core.ErrRunNotActive) {
		t.Errorf("double completion error = %v, want ErrRunNotActive", err)
	}
}

func TestSQLiteStore_CompleteUnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.CompleteRun("no-such-run", core.RunStatusSuccess, 0, "")
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("unknown run completion error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteStore_CompleteRunRejectsNonTerminalStatus(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartRun("fact_to_marts")
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	if err := store.CompleteRun(run.ID, core.RunStatusRunning, 0, ""); err == nil {
		t.Error("completing with RUNNING status should fail")
	}
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock)

	for i := 0; i < 3; i++ {
		if _, err := store.StartRun("raw_to_staging"); err != nil {
			t.Fatalf("failed to start run %d: %v", i, err)
		}
		clock.Advance(time.Minute)
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("list returned %d runs, want 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("runs not ordered newest first")
	}
}

func TestSQLiteStore_QualityResults(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartRun("raw_to_staging")
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}

	res := &core.QualityCheckResult{
		ID:         "check-1",
		RunID:      run.ID,
		TableName:  "staging.gl_transactions",
		ColumnName: "gl_entry_id",
		CheckType:  core.CheckUnique,
		Expression: "UNIQUE gl_entry_id",
		Expected:   "0 violations",
		Actual:     "0 violations",
		Status:     core.CheckStatusPass,
		Blocking:   true,
		CheckedAt:  time.Now().UTC(),
	}
	if err := store.RecordQualityResult(res); err != nil {
		t.Fatalf("failed to record quality result: %v", err)
	}

	results, err := store.QualityResultsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to fetch quality results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if got.CheckType != core.CheckUnique || got.Status != core.CheckStatusPass || !got.Blocking {
		t.Errorf("unexpected result round-trip: %+v", got)
	}
}

func TestSQLiteStore_Lineage(t *testing.T) {
	store := setupTestStore(t)

	edge := &core.LineageEdge{
		ID:             "edge-1",
		RunID:          "run-1",
		SourceTable:    "raw.gl_records",
		TargetTable:    "staging.gl_transactions",
		TransformKind:  core.TransformFilter,
		TransformLogic: "drop null keys",
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.RecordLineage(edge); err != nil {
		t.Fatalf("failed to record lineage: %v", err)
	}

	edges, err := store.LineageForTable("staging.gl_transactions")
	if err != nil {
		t.Fatalf("failed to fetch lineage: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].SourceTable != "raw.gl_records" || edges[0].TransformKind != core.TransformFilter {
		t.Errorf("unexpected edge round-trip: %+v", edges[0])
	}

	all, err := store.ListLineage(10)
	if err != nil {
		t.Fatalf("failed to list lineage: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("list returned %d edges, want 1", len(all))
	}
}

func TestSQLiteStore_AccessAudit(t *testing.T) {
	store := setupTestStore(t)

	entry := &core.AccessEntry{
		ConnectionType: "pipeline",
		User:           "tester",
		Operation:      core.AccessOpWrite,
		TableName:      "raw.gl_records",
		Success:        true,
		OccurredAt:     time.Now().UTC(),
	}
	if err := store.RecordAccess(entry); err != nil {
		t.Fatalf("failed to record access: %v", err)
	}

	entries, err := store.ListAccess(10)
	if err != nil {
		t.Fatalf("failed to list access entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Operation != core.AccessOpWrite || !entries[0].Success {
		t.Errorf("unexpected entry round-trip: %+v", entries[0])
	}
}

func TestSQLiteStore_TableVersions(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.TableVersion("staging.gl_transactions"); !errors.Is(err, core.ErrTableVersionNotFound) {
		t.Fatalf("expected ErrTableVersionNotFound, got %v", err)
	}

	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	if err := store.MarkTableVersion(&core.TableVersion{
		TableName: "staging.gl_transactions",
		RunID:     "run-1",
		Status:    core.TableStatusValid,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("failed to mark table version: %v", err)
	}

	v, err := store.TableVersion("staging.gl_transactions")
	if err != nil {
		t.Fatalf("failed to get table version: %v", err)
	}
	if v.RunID != "run-1" || v.Status != core.TableStatusValid {
		t.Errorf("unexpected version round-trip: %+v", v)
	}
	if !v.UpdatedAt.Equal(now) {
		t.Errorf("updated_at = %v, want %v", v.UpdatedAt, now)
	}

	// Re-marking overwrites the single row per table.
	if err := store.MarkTableVersion(&core.TableVersion{
		TableName: "staging.gl_transactions",
		RunID:     "run-2",
		Status:    core.TableStatusFailed,
		UpdatedAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("failed to re-mark table version: %v", err)
	}
	v, err = store.TableVersion("staging.gl_transactions")
	if err != nil {
		t.Fatalf("failed to get table version: %v", err)
	}
	if v.RunID != "run-2" || v.Status != core.TableStatusFailed {
		t.Errorf("marker not overwritten: %+v", v)
	}
}
