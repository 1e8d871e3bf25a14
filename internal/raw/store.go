// Package raw implements the raw layer of the warehouse: source-fidelity GL
// record storage keyed by natural business identifiers, plus the per-table
// ingestion watermark.
package raw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dakota-labs/glpipe/internal/audit"
	"github.com/dakota-labs/glpipe/internal/warehouse"
	"github.com/dakota-labs/glpipe/pkg/core"
)

// GLRecordsTable is the raw GL record destination.
const GLRecordsTable = "raw.gl_records"

// watermarkTable holds one row per raw table, overwritten on success.
const watermarkTable = "raw.ingest_watermark"

// ErrWatermarkNotFound is returned when a raw table has never been ingested.
var ErrWatermarkNotFound = errors.New("ingestion watermark not found")

// Store provides append/upsert access to the raw layer.
type Store struct {
	db      warehouse.Adapter
	auditor *audit.Recorder
	logger  *slog.Logger
}

// NewStore creates a raw store on the given warehouse connection.
// If logger is nil, a discard logger is used.
func NewStore(db warehouse.Adapter, auditor *audit.Recorder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, auditor: auditor, logger: logger}
}

// bind rewrites placeholders for the adapter's dialect. Statements in this
// package are written with ? and rebound for warehouses that need $N.
func (s *Store) bind(query string) string {
	return warehouse.Rebind(s.db.DialectName(), query)
}

// EnsureSchema creates the raw schema and its tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS raw`,
		`CREATE TABLE IF NOT EXISTS raw.gl_records (
			gl_entry_id       BIGINT NOT NULL,
			journal_batch     VARCHAR,
			journal_entry     VARCHAR,
			transaction_date  VARCHAR,
			posting_date      VARCHAR,
			account_code      VARCHAR,
			account_name      VARCHAR,
			account_type      VARCHAR,
			debit_amount      DOUBLE,
			credit_amount     DOUBLE,
			net_amount        DOUBLE,
			well_id           VARCHAR,
			lease_name        VARCHAR,
			property_id       VARCHAR,
			afe_number        VARCHAR,
			jib_number        VARCHAR,
			cost_center       VARCHAR,
			journal_source    VARCHAR,
			transaction_type  VARCHAR,
			description       VARCHAR,
			fiscal_period     VARCHAR,
			fiscal_year       INTEGER,
			fiscal_month      INTEGER,
			state             VARCHAR,
			county            VARCHAR,
			basin             VARCHAR,
			created_timestamp VARCHAR,
			created_by        VARCHAR,
			last_modified     VARCHAR,
			ingested_at       TIMESTAMP,
			source            VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS raw.ingest_watermark (
			table_name       VARCHAR NOT NULL,
			last_ingested_at TIMESTAMP,
			rows_processed   BIGINT,
			status           VARCHAR,
			updated_at       TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if err := s.db.Exec(ctx, stmt); err != nil {
			s.auditor.Record(core.AccessOpAdmin, GLRecordsTable, false, err)
			return fmt.Errorf("failed to create raw schema: %w", err)
		}
	}
	s.auditor.Record(core.AccessOpAdmin, GLRecordsTable, true, nil)
	return nil
}

// Upsert writes a batch of GL records keyed by gl_entry_id: existing rows
// with the same id are replaced, so re-ingesting a batch is safe. Records
// without a natural key are rejected, never fatal. Returns the accepted and
// rejected counts.
func (s *Store) Upsert(ctx context.Context, records []*core.GLRecord, sourceTag string) (accepted, rejected int64, err error) {
	var valid []*core.GLRecord
	for _, r := range records {
		if r.GLEntryID <= 0 {
			rejected++
			continue
		}
		valid = append(valid, r)
	}

	if len(valid) == 0 {
		return 0, rejected, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.auditor.Record(core.AccessOpWrite, GLRecordsTable, false, err)
		return 0, rejected, fmt.Errorf("failed to begin upsert: %w", err)
	}

	if err := s.upsertTx(ctx, tx, valid, sourceTag); err != nil {
		_ = tx.Rollback()
		s.auditor.Record(core.AccessOpWrite, GLRecordsTable, false, err)
		return 0, rejected, err
	}

	if err := tx.Commit(); err != nil {
		s.auditor.Record(core.AccessOpWrite, GLRecordsTable, false, err)
		return 0, rejected, fmt.Errorf("failed to commit upsert: %w", err)
	}

	accepted = int64(len(valid))
	s.auditor.Record(core.AccessOpWrite, GLRecordsTable, true, nil)
	s.logger.Debug("upserted raw records",
		slog.Int64("accepted", accepted), slog.Int64("rejected", rejected), slog.String("source", sourceTag))
	return accepted, rejected, nil
}

func (s *Store) upsertTx(ctx context.Context, tx *sql.Tx, records []*core.GLRecord, sourceTag string) error {
	// Delete-then-insert keyed by gl_entry_id so replayed batches replace
	// rather than duplicate.
	ids := make([]string, len(records))
	args := make([]any, len(records))
	for i, r := range records {
		ids[i] = "?"
		args[i] = r.GLEntryID
	}
	deleteSQL := s.bind(fmt.Sprintf("DELETE FROM %s WHERE gl_entry_id IN (%s)", GLRecordsTable, strings.Join(ids, ", ")))
	if _, err := tx.ExecContext(ctx, deleteSQL, args...); err != nil {
		return fmt.Errorf("failed to delete existing records: %w", err)
	}

	insertSQL := s.bind(fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, GLRecordsTable,
		strings.TrimSuffix(strings.Repeat("?, ", 31), ", ")))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		source := r.Source
		if source == "" {
			source = sourceTag
		}
		if _, err := stmt.ExecContext(ctx,
			r.GLEntryID, r.JournalBatch, r.JournalEntry,
			r.TransactionDate, r.PostingDate,
			r.AccountCode, r.AccountName, r.AccountType,
			r.DebitAmount, r.CreditAmount, r.NetAmount,
			r.WellID, r.LeaseName, r.PropertyID, r.AFENumber, r.JIBNumber, r.CostCenter,
			r.JournalSource, r.TransactionType, r.Description,
			r.FiscalPeriod, r.FiscalYear, r.FiscalMonth,
			r.State, r.County, r.Basin,
			r.CreatedTimestamp, r.CreatedBy, r.LastModified,
			r.IngestedAt, source,
		); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", r.GLEntryID, err)
		}
	}
	return nil
}

// Watermark reads the ingestion watermark for a raw table. Returns
// ErrWatermarkNotFound when the table has never been ingested.
func (s *Store) Watermark(ctx context.Context, table string) (*core.Watermark, error) {
	rows, err := s.db.Query(ctx,
		s.bind(fmt.Sprintf("SELECT table_name, last_ingested_at, rows_processed, status, updated_at FROM %s WHERE table_name = ?", watermarkTable)),
		table)
	if err != nil {
		s.auditor.Record(core.AccessOpRead, watermarkTable, false, err)
		return nil, fmt.Errorf("failed to query watermark: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrWatermarkNotFound, table)
	}

	wm := &core.Watermark{}
	if err := rows.Scan(&wm.TableName, &wm.LastIngestedAt, &wm.RowsProcessed, &wm.Status, &wm.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan watermark: %w", err)
	}
	s.auditor.Record(core.AccessOpRead, watermarkTable, true, nil)
	return wm, nil
}

// SetWatermark overwrites the watermark row for wm.TableName.
func (s *Store) SetWatermark(ctx context.Context, wm *core.Watermark) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.auditor.Record(core.AccessOpWrite, watermarkTable, false, err)
		return fmt.Errorf("failed to begin watermark update: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		s.bind(fmt.Sprintf("DELETE FROM %s WHERE table_name = ?", watermarkTable)), wm.TableName); err != nil {
		_ = tx.Rollback()
		s.auditor.Record(core.AccessOpWrite, watermarkTable, false, err)
		return fmt.Errorf("failed to clear watermark: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.bind(fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?, ?)", watermarkTable)),
		wm.TableName, wm.LastIngestedAt, wm.RowsProcessed, wm.Status, wm.UpdatedAt); err != nil {
		_ = tx.Rollback()
		s.auditor.Record(core.AccessOpWrite, watermarkTable, false, err)
		return fmt.Errorf("failed to write watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.auditor.Record(core.AccessOpWrite, watermarkTable, false, err)
		return fmt.Errorf("failed to commit watermark: %w", err)
	}

	s.auditor.Record(core.AccessOpWrite, watermarkTable, true, nil)
	return nil
}

// Count returns the number of rows currently in raw.gl_records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := warehouse.Count(ctx, s.db, GLRecordsTable)
	s.auditor.Record(core.AccessOpRead, GLRecordsTable, err == nil, err)
	return n, err
}
