// Package engine orchestrates the layered transformations: raw to staging,
// staging to fact, fact to marts. Steps form a dependency graph; each step
// fully replaces its target table inside a transaction, so retrying a failed
// stage never sees a half-written state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/dakota-labs/glpipe/internal/audit"
	"github.com/dakota-labs/glpipe/internal/dag"
	"github.com/dakota-labs/glpipe/internal/quality"
	"github.com/dakota-labs/glpipe/internal/warehouse"
	"github.com/dakota-labs/glpipe/pkg/core"
)

// Engine drives stage execution over a warehouse connection, recording runs,
// quality results and lineage in the metadata store.
type Engine struct {
	db      warehouse.Adapter
	store   core.Store
	gate    *quality.Gate
	auditor *audit.Recorder
	logger  *slog.Logger
	clock   clockwork.Clock
	locks   *lockTable
	graph   *dag.Graph
}

// New builds an engine and its transformation graph.
func New(db warehouse.Adapter, store core.Store, gate *quality.Gate, auditor *audit.Recorder, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	graph, err := buildGraph()
	if err != nil {
		return nil, err
	}
	return &Engine{
		db:      db,
		store:   store,
		gate:    gate,
		auditor: auditor,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		locks:   newLockTable(),
		graph:   graph,
	}, nil
}

// SetClock replaces the wall clock, for tests.
func (e *Engine) SetClock(c clockwork.Clock) { e.clock = c }

// buildGraph wires the step definitions into a DAG, keyed by target table.
// A step depends on any step whose target it reads from.
func buildGraph() (*dag.Graph, error) {
	graph := dag.New()
	all := steps()
	targets := make(map[string]bool, len(all))
	for _, s := range all {
		graph.AddStep(s.name, s)
		targets[s.target] = true
	}
	for _, s := range all {
		if targets[s.source] {
			if err := graph.AddDependency(s.name, s.source); err != nil {
				return nil, fmt.Errorf("invalid transformation graph: %w", err)
			}
		}
	}
	if cyclic, path := graph.HasCycle(); cyclic {
		return nil, fmt.Errorf("invalid transformation graph: cycle %v", path)
	}
	return graph, nil
}

// AddChecks appends quality checks to the step producing target, on top of
// the built-in suite for that layer.
func (e *Engine) AddChecks(target string, checks ...quality.Check) error {
	node, ok := e.graph.Step(target)
	if !ok {
		return fmt.Errorf("no transformation step produces %s", target)
	}
	st := node.Data.(step)
	st.checks = append(st.checks, checks...)
	e.graph.AddStep(target, st)
	return nil
}

// LoadCheckSuite merges a YAML check suite into the built-in checks, keyed
// by target table.
func (e *Engine) LoadCheckSuite(suite quality.Suite) error {
	for target, checks := range suite {
		if err := e.AddChecks(target, checks...); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSchemas creates the staging and marts schemas if missing.
func (e *Engine) EnsureSchemas(ctx context.Context) error {
	for _, schema := range []string{"staging", "marts"} {
		if err := e.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}
	return nil
}

// RunStage executes one stage as a tracked pipeline run. Steps within the
// stage run level-parallel per the dependency graph. asOf anchors
// time-relative derivations such as well activity status. A blocking
// quality failure marks the run FAILED with the failing check ids and is
// returned as an error alongside the result.
func (e *Engine) RunStage(ctx context.Context, stage core.Stage, asOf time.Time) (*core.StageResult, error) {
	run, err := e.store.StartRun(string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	result, err := e.executeStage(ctx, run.ID, stage, asOf)
	if err != nil {
		e.failRun(run.ID, err)
		return nil, err
	}

	if failing := result.BlockingFailures(); len(failing) > 0 {
		qerr := fmt.Errorf("blocking quality checks failed on %s: %s", stage, strings.Join(failing, ", "))
		e.failRun(run.ID, qerr)
		return result, qerr
	}

	if err := e.store.CompleteRun(run.ID, core.RunStatusSuccess, result.RowsOut, ""); err != nil {
		return result, fmt.Errorf("stage succeeded but run completion failed: %w", err)
	}

	e.logger.Info("stage complete",
		slog.String("run_id", run.ID),
		slog.String("stage", string(stage)),
		slog.Int64("rows_in", result.RowsIn),
		slog.Int64("rows_out", result.RowsOut),
		slog.Int64("rejected", result.Rejected))
	return result, nil
}

// RunAll executes every stage in order, stopping at the first failure.
func (e *Engine) RunAll(ctx context.Context, asOf time.Time) ([]*core.StageResult, error) {
	var results []*core.StageResult
	for _, stage := range core.Stages() {
		res, err := e.RunStage(ctx, stage, asOf)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *Engine) failRun(runID string, cause error) {
	if err := e.store.CompleteRun(runID, core.RunStatusFailed, 0, cause.Error()); err != nil {
		e.logger.Error("failed to mark run FAILED",
			slog.String("run_id", runID), slog.Any("error", err))
	}
}

func (e *Engine) executeStage(ctx context.Context, runID string, stage core.Stage, asOf time.Time) (*core.StageResult, error) {
	result := &core.StageResult{
		RunID:     runID,
		Stage:     stage,
		StartedAt: e.clock.Now().UTC(),
	}

	levels, err := e.graph.ExecutionLevels()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	seenIn := make(map[string]bool)
	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range level {
			node, ok := e.graph.Step(name)
			if !ok {
				continue
			}
			st := node.Data.(step)
			if st.stage != stage {
				continue
			}
			g.Go(func() error {
				out, err := e.executeStep(gctx, runID, st, asOf)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				// Steps sharing a source count its rows once.
				if !seenIn[st.source] {
					seenIn[st.source] = true
					result.RowsIn += out.rowsIn
				}
				result.RowsOut += out.rowsOut
				if st.kind == core.TransformFilter {
					result.Rejected += out.rowsIn - out.rowsOut
				}
				result.QualityResults = append(result.QualityResults, out.quality...)
				result.LineageEdges = append(result.LineageEdges, out.edge)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result.CompletedAt = e.clock.Now().UTC()
	return result, nil
}

type stepOutput struct {
	rowsIn  int64
	rowsOut int64
	quality []*core.QualityCheckResult
	edge    *core.LineageEdge
}

// executeStep rebuilds one target table under its advisory lock, inside a
// transaction, then evaluates quality checks, records the lineage edge and
// marks the target's completion status. Sources built by earlier steps must
// carry a VALID marker; a failed upstream version is never consumed.
func (e *Engine) executeStep(ctx context.Context, runID string, st step, asOf time.Time) (*stepOutput, error) {
	unlock := e.locks.acquire(st.stage, st.target)
	defer unlock()

	if err := e.checkSourceVersion(st.source); err != nil {
		return nil, err
	}

	rowsIn, err := warehouse.Count(ctx, e.db, st.source)
	if err != nil {
		e.auditor.Record(core.AccessOpRead, st.source, false, err)
		return nil, fmt.Errorf("failed to count %s: %w", st.source, err)
	}
	e.auditor.Record(core.AccessOpRead, st.source, true, nil)

	if err := e.replaceTable(ctx, st.target, st.buildSQL(asOf)); err != nil {
		e.auditor.Record(core.AccessOpWrite, st.target, false, err)
		return nil, fmt.Errorf("failed to rebuild %s: %w", st.target, err)
	}
	e.auditor.Record(core.AccessOpWrite, st.target, true, nil)

	rowsOut, err := warehouse.Count(ctx, e.db, st.target)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", st.target, err)
	}

	results, err := e.gate.Evaluate(ctx, runID, st.target, st.checks)
	if err != nil {
		return nil, err
	}
	if err := e.markTargetVersion(runID, st.target, results); err != nil {
		return nil, err
	}

	edge := &core.LineageEdge{
		ID:             uuid.NewString(),
		RunID:          runID,
		SourceTable:    st.source,
		TargetTable:    st.target,
		TransformKind:  st.kind,
		TransformLogic: st.logic,
		CreatedAt:      e.clock.Now().UTC(),
	}
	if err := e.store.RecordLineage(edge); err != nil {
		return nil, fmt.Errorf("failed to record lineage for %s: %w", st.target, err)
	}

	e.logger.Debug("step complete",
		slog.String("target", st.target),
		slog.Int64("rows_in", rowsIn),
		slog.Int64("rows_out", rowsOut))

	return &stepOutput{rowsIn: rowsIn, rowsOut: rowsOut, quality: results, edge: edge}, nil
}

// checkSourceVersion gates reads of pipeline-built tables. A source outside
// the graph (the raw layer) carries no marker and is always readable; a
// source built by a step must have been built and passed its blocking
// checks.
func (e *Engine) checkSourceVersion(source string) error {
	if _, ok := e.graph.Step(source); !ok {
		return nil
	}
	v, err := e.store.TableVersion(source)
	if err != nil {
		if errors.Is(err, core.ErrTableVersionNotFound) {
			return fmt.Errorf("source %s has never been built; run its stage first", source)
		}
		return fmt.Errorf("failed to read version marker for %s: %w", source, err)
	}
	if v.Status != core.TableStatusValid {
		return fmt.Errorf("source %s failed blocking quality checks in run %s; rebuild it before continuing", source, v.RunID)
	}
	return nil
}

// markTargetVersion records the target's completion marker: VALID when no
// blocking check failed, FAILED otherwise.
func (e *Engine) markTargetVersion(runID, target string, results []*core.QualityCheckResult) error {
	status := core.TableStatusValid
	for _, r := range results {
		if r.Blocking && r.Status == core.CheckStatusFail {
			status = core.TableStatusFailed
			break
		}
	}
	v := &core.TableVersion{
		TableName: target,
		RunID:     runID,
		Status:    status,
		UpdatedAt: e.clock.Now().UTC(),
	}
	if err := e.store.MarkTableVersion(v); err != nil {
		return fmt.Errorf("failed to mark table version for %s: %w", target, err)
	}
	return nil
}

// replaceTable swaps the target wholesale: drop and recreate from the
// select, atomically within one transaction. Readers either see the old
// version or the new, never a partial write.
func (e *Engine) replaceTable(ctx context.Context, target, selectSQL string) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", target, selectSQL)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockTable holds per-(stage, target) advisory locks enforcing
// single-writer-per-table execution within this process.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) acquire(stage core.Stage, target string) (release func()) {
	key := string(stage) + "\x00" + target
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}
