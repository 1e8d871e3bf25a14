package state

import (
	"database/sql"
	"fmt"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// RecordAccess appends one entry to the access audit trail.
func (s *SQLiteStore) RecordAccess(entry *core.AccessEntry) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if entry.ID == "" {
		entry.ID = generateID()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.clock.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO access_audit (id, connection_type, user_identifier, operation, table_name, success, error_message, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ConnectionType, entry.User, entry.Operation,
		nullable(entry.TableName), boolToInt(entry.Success), nullable(entry.Error), entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record access entry: %w", err)
	}
	return nil
}

// ListAccess retrieves the most recent audit entries, newest first.
func (s *SQLiteStore) ListAccess(limit int) ([]*core.AccessEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, connection_type, user_identifier, operation, table_name, success, error_message, occurred_at
		 FROM access_audit ORDER BY occurred_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query access audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*core.AccessEntry
	for rows.Next() {
		entry := &core.AccessEntry{}
		var table, errMsg sql.NullString
		var success int
		if err := rows.Scan(&entry.ID, &entry.ConnectionType, &entry.User, &entry.Operation,
			&table, &success, &errMsg, &entry.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan access entry: %w", err)
		}
		entry.TableName = table.String
		entry.Error = errMsg.String
		entry.Success = success != 0
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
