package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dakota-labs/glpipe/internal/state"
	"github.com/dakota-labs/glpipe/internal/warehouse"
	"github.com/dakota-labs/glpipe/pkg/core"
)

func setupGate(t *testing.T) (*Gate, warehouse.Adapter, *state.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	wh := warehouse.NewDuckDB()
	require.NoError(t, wh.Connect(ctx, warehouse.Config{Type: "duckdb", Path: ":memory:"}))
	t.Cleanup(func() { _ = wh.Close() })

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	return NewGate(wh, store, nil, nil), wh, store
}

func TestGateEvaluate(t *testing.T) {
	gate, wh, store := setupGate(t)
	ctx := context.Background()

	require.NoError(t, wh.Exec(ctx, `CREATE TABLE entries (id INTEGER, code VARCHAR, amount DOUBLE)`))
	require.NoError(t, wh.Exec(ctx,
		`INSERT INTO entries VALUES (1, 'A', 10.0), (2, NULL, -5.0), (2, 'B', 50.0)`))

	run, err := store.StartRun("quality_test")
	require.NoError(t, err)

	min, max := 0.0, 100.0
	checks := []Check{
		{Name: "id_not_null", Type: core.CheckNotNull, Column: "id"},
		{Name: "code_not_null", Type: core.CheckNotNull, Column: "code"},
		{Name: "id_unique", Type: core.CheckUnique, Column: "id", Severity: SeverityWarning},
		{Name: "amount_in_range", Type: core.CheckRange, Column: "amount", Min: &min, Max: &max},
	}

	results, err := gate.Evaluate(ctx, run.ID, "entries", checks)
	require.NoError(t, err)
	require.Len(t, results, 4)

	byName := map[string]*core.QualityCheckResult{}
	for _, r := range results {
		byName[r.ColumnName+"/"+string(r.CheckType)] = r
	}

	assert.Equal(t, core.CheckStatusPass, byName["id/NOT_NULL"].Status)
	assert.Equal(t, core.CheckStatusFail, byName["code/NOT_NULL"].Status)
	assert.True(t, byName["code/NOT_NULL"].Blocking)
	// Warning-severity failures are recorded as WARNING, not FAIL.
	assert.Equal(t, core.CheckStatusWarning, byName["id/UNIQUE"].Status)
	assert.False(t, byName["id/UNIQUE"].Blocking)
	assert.Equal(t, core.CheckStatusFail, byName["amount/RANGE"].Status)
	assert.Equal(t, "1 violations", byName["amount/RANGE"].Actual)

	// Every result is persisted under the run.
	persisted, err := store.QualityResultsForRun(run.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 4)
	for _, r := range persisted {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "entries", r.TableName)
		assert.False(t, r.CheckedAt.IsZero())
	}
}

func TestGateEvaluateInvalidCheck(t *testing.T) {
	gate, wh, store := setupGate(t)
	ctx := context.Background()

	require.NoError(t, wh.Exec(ctx, `CREATE TABLE entries (id INTEGER)`))
	run, err := store.StartRun("quality_test")
	require.NoError(t, err)

	_, err = gate.Evaluate(ctx, run.ID, "entries", []Check{{Name: "bad", Type: core.CheckNotNull}})
	require.Error(t, err)
}

func TestGateCustomCheck(t *testing.T) {
	gate, wh, store := setupGate(t)
	ctx := context.Background()

	require.NoError(t, wh.Exec(ctx, `CREATE TABLE entries (debit DOUBLE, credit DOUBLE, net DOUBLE)`))
	require.NoError(t, wh.Exec(ctx, `INSERT INTO entries VALUES (100, 0, 100), (0, 50, -49)`))

	run, err := store.StartRun("quality_test")
	require.NoError(t, err)

	check := Check{
		Name:       "net_consistency",
		Type:       core.CheckCustom,
		Expression: "SELECT COUNT(*) FROM {table} WHERE ABS(net - (debit - credit)) > 0.01",
		Severity:   SeverityWarning,
	}
	results, err := gate.Evaluate(ctx, run.ID, "entries", []Check{check})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.CheckStatusWarning, results[0].Status)
	assert.Equal(t, "1 violations", results[0].Actual)
}
