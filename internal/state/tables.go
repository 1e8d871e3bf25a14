package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// MarkTableVersion overwrites the completion marker for v.TableName.
func (s *SQLiteStore) MarkTableVersion(v *core.TableVersion) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = s.clock.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO table_versions (table_name, run_id, status, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(table_name) DO UPDATE SET
		 run_id = excluded.run_id, status = excluded.status, updated_at = excluded.updated_at`,
		v.TableName, v.RunID, string(v.Status), v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark table version: %w", err)
	}
	return nil
}

// TableVersion reads the completion marker for a table. Returns
// ErrTableVersionNotFound for tables never built by a run.
func (s *SQLiteStore) TableVersion(table string) (*core.TableVersion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	v := &core.TableVersion{}
	err := s.db.QueryRow(
		`SELECT table_name, run_id, status, updated_at FROM table_versions WHERE table_name = ?`,
		table,
	).Scan(&v.TableName, &v.RunID, &v.Status, &v.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrTableVersionNotFound, table)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table version: %w", err)
	}
	return v, nil
}
