package state

import (
	"database/sql"
	"fmt"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// RecordQualityResult persists one check outcome. Results are written
// regardless of status; quality history is append-only evidence.
func (s *SQLiteStore) RecordQualityResult(res *core.QualityCheckResult) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if res.ID == "" {
		res.ID = generateID()
	}
	if res.CheckedAt.IsZero() {
		res.CheckedAt = s.clock.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO quality_check_results
		 (id, run_id, table_name, column_name, check_type, expression, expected, actual, status, blocking, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.RunID, res.TableName, nullable(res.ColumnName), string(res.CheckType),
		nullable(res.Expression), nullable(res.Expected), nullable(res.Actual),
		string(res.Status), boolToInt(res.Blocking), res.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record quality result: %w", err)
	}
	return nil
}

// QualityResultsForRun retrieves all check results produced by a run.
func (s *SQLiteStore) QualityResultsForRun(runID string) ([]*core.QualityCheckResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, table_name, column_name, check_type, expression, expected, actual, status, blocking, checked_at
		 FROM quality_check_results WHERE run_id = ? ORDER BY checked_at, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query quality results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*core.QualityCheckResult
	for rows.Next() {
		res := &core.QualityCheckResult{}
		var column, expression, expected, actual sql.NullString
		var blocking int
		if err := rows.Scan(&res.ID, &res.RunID, &res.TableName, &column, &res.CheckType,
			&expression, &expected, &actual, &res.Status, &blocking, &res.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quality result: %w", err)
		}
		res.ColumnName = column.String
		res.Expression = expression.String
		res.Expected = expected.String
		res.Actual = actual.String
		res.Blocking = blocking != 0
		results = append(results, res)
	}

	return results, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
