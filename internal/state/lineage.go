package state

import (
	"database/sql"
	"fmt"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// RecordLineage appends one source→target transformation edge.
func (s *SQLiteStore) RecordLineage(edge *core.LineageEdge) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if edge.ID == "" {
		edge.ID = generateID()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = s.clock.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO lineage_edges (id, run_id, source_table, target_table, transform_kind, transform_logic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.RunID, edge.SourceTable, edge.TargetTable,
		string(edge.TransformKind), nullable(edge.TransformLogic), edge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record lineage edge: %w", err)
	}
	return nil
}

// LineageForTable retrieves all edges that produced the given target table,
// newest first.
func (s *SQLiteStore) LineageForTable(targetTable string) ([]*core.LineageEdge, error) {
	return s.queryLineage(
		`SELECT id, run_id, source_table, target_table, transform_kind, transform_logic, created_at
		 FROM lineage_edges WHERE target_table = ? ORDER BY created_at DESC, id`, targetTable)
}

// ListLineage retrieves the most recent lineage edges up to limit.
func (s *SQLiteStore) ListLineage(limit int) ([]*core.LineageEdge, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryLineage(
		`SELECT id, run_id, source_table, target_table, transform_kind, transform_logic, created_at
		 FROM lineage_edges ORDER BY created_at DESC, id LIMIT ?`, limit)
}

func (s *SQLiteStore) queryLineage(query string, args ...any) ([]*core.LineageEdge, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []*core.LineageEdge
	for rows.Next() {
		edge := &core.LineageEdge{}
		var logic sql.NullString
		if err := rows.Scan(&edge.ID, &edge.RunID, &edge.SourceTable, &edge.TargetTable,
			&edge.TransformKind, &logic, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		edge.TransformLogic = logic.String
		edges = append(edges, edge)
	}

	return edges, rows.Err()
}
