// Package warehouse provides database adapter interfaces and implementations
// for the analytical store holding the raw, staging and marts layers.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Config holds the configuration for connecting to a warehouse.
type Config struct {
	// Type specifies the warehouse type (e.g., "duckdb", "postgres")
	Type string

	// Path is the file path for file-based warehouses (DuckDB).
	// Use ":memory:" for an in-memory database.
	Path string

	// Host is the hostname for network-based warehouses
	Host string

	// Port is the port number for network-based warehouses
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// Adapter is the interface all warehouse adapters implement. Exec and Query
// accept positional arguments so callers can use parameterized statements.
// Begin opens a transaction; each transformation stage commits in full or
// rolls back, so partial layer states are never visible to readers.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// Begin starts a transaction.
	Begin(ctx context.Context) (*sql.Tx, error)

	// DialectName returns the SQL dialect name for this adapter.
	DialectName() string
}

// Rebind rewrites ? placeholders into the numbered $1..$N form for dialects
// that require it. DuckDB accepts ? directly, so its queries pass through
// unchanged. The rewrite does not parse string literals; queries must keep
// literal question marks out of quoted text.
func Rebind(dialect, query string) string {
	if dialect != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// Count returns the row count of a table. The table name must come from the
// fixed pipeline topology, never from user input.
func Count(ctx context.Context, db Adapter, table string) (int64, error) {
	rows, err := db.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan count for %s: %w", table, err)
		}
	}
	return count, rows.Err()
}
