package quality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dakota-labs/glpipe/internal/audit"
	"github.com/dakota-labs/glpipe/internal/warehouse"
	"github.com/dakota-labs/glpipe/pkg/core"
)

// Gate evaluates checks against warehouse tables and persists every result
// to the metadata store, pass or fail.
type Gate struct {
	db      warehouse.Adapter
	store   core.Store
	auditor *audit.Recorder
	logger  *slog.Logger
	clock   clockwork.Clock
}

// NewGate creates a quality gate over the given warehouse connection and
// metadata store.
func NewGate(db warehouse.Adapter, store core.Store, auditor *audit.Recorder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{
		db:      db,
		store:   store,
		auditor: auditor,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
	}
}

// SetClock replaces the wall clock, for tests.
func (g *Gate) SetClock(c clockwork.Clock) { g.clock = c }

// Evaluate runs every check against the table and returns one result per
// check. A failing check is not an error: FAIL and WARNING come back as
// results, and the caller decides whether blocking failures are fatal.
// Results are persisted before return; a persistence failure is an error.
func (g *Gate) Evaluate(ctx context.Context, runID, table string, checks []Check) ([]*core.QualityCheckResult, error) {
	results := make([]*core.QualityCheckResult, 0, len(checks))
	for _, check := range checks {
		result, err := g.evaluateOne(ctx, runID, table, check)
		if err != nil {
			return nil, err
		}
		if err := g.store.RecordQualityResult(result); err != nil {
			return nil, fmt.Errorf("failed to persist quality result %s: %w", check.Name, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (g *Gate) evaluateOne(ctx context.Context, runID, table string, check Check) (*core.QualityCheckResult, error) {
	query, err := check.violationSQL(table)
	if err != nil {
		return nil, err
	}

	violations, err := g.countViolations(ctx, query)
	g.auditor.Record(core.AccessOpRead, table, err == nil, err)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate check %s on %s: %w", check.Name, table, err)
	}

	status := core.CheckStatusPass
	if violations > 0 {
		if check.Blocking() {
			status = core.CheckStatusFail
		} else {
			status = core.CheckStatusWarning
		}
		g.logger.Warn("quality check violated",
			slog.String("check", check.Name),
			slog.String("table", table),
			slog.Int64("violations", violations),
			slog.String("status", string(status)))
	}

	return &core.QualityCheckResult{
		ID:         uuid.NewString(),
		RunID:      runID,
		TableName:  table,
		ColumnName: check.Column,
		CheckType:  check.Type,
		Expression: check.describe(),
		Expected:   "0 violations",
		Actual:     fmt.Sprintf("%d violations", violations),
		Status:     status,
		Blocking:   check.Blocking(),
		CheckedAt:  g.clock.Now().UTC(),
	}, nil
}

func (g *Gate) countViolations(ctx context.Context, query string) (int64, error) {
	rows, err := g.db.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("violation query returned no rows")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
