package engine

import (
	"fmt"
	"time"

	"github.com/dakota-labs/glpipe/internal/quality"
	"github.com/dakota-labs/glpipe/internal/raw"
	"github.com/dakota-labs/glpipe/pkg/core"
)

// Warehouse table names per layer.
const (
	StagingTable        = "staging.gl_transactions"
	FactTable           = "marts.fact_gl_transactions"
	WellDimTable        = "marts.dim_wells"
	MonthlySummaryTable = "marts.monthly_summary"
)

// step is one node of the transformation graph: a full-replace rebuild of
// its target table from its source table.
type step struct {
	name   string
	stage  core.Stage
	source string
	target string
	kind   core.TransformKind
	logic  string
	// buildSQL renders the SELECT the target is rebuilt from. asOf anchors
	// time-relative derivations (well status).
	buildSQL func(asOf time.Time) string
	checks   []quality.Check
}

// steps returns the full transformation graph definition in declaration
// order. Dependencies are wired by target name in buildGraph.
func steps() []step {
	return []step{
		{
			name:     StagingTable,
			stage:    core.StageRawToStaging,
			source:   raw.GLRecordsTable,
			target:   StagingTable,
			kind:     core.TransformFilter,
			logic:    "cast types, drop rows with null transaction_date or account_code",
			buildSQL: stagingSQL,
			checks:   quality.StagingChecks(),
		},
		{
			name:     FactTable,
			stage:    core.StageStagingToFact,
			source:   StagingTable,
			target:   FactTable,
			kind:     core.TransformDirect,
			logic:    "derive transaction_side, absolute_amount, calendar fields and classification flags",
			buildSQL: factSQL,
			checks:   quality.FactChecks(),
		},
		{
			name:     WellDimTable,
			stage:    core.StageFactToMarts,
			source:   FactTable,
			target:   WellDimTable,
			kind:     core.TransformAggregation,
			logic:    "aggregate fact rows per well/lease/property/geography tuple with activity status",
			buildSQL: wellDimSQL,
			checks:   quality.MartChecks(),
		},
		{
			name:     MonthlySummaryTable,
			stage:    core.StageFactToMarts,
			source:   FactTable,
			target:   MonthlySummaryTable,
			kind:     core.TransformAggregation,
			logic:    "aggregate fact rows per fiscal/calendar month, state, basin and account type",
			buildSQL: monthlySummarySQL,
			checks:   quality.MartChecks(),
		},
	}
}

// stagingSQL casts raw text dates to typed columns, rounds amounts to two
// decimals and drops staging-ineligible rows. Reported, not repaired: the
// rejected count is rows_in minus rows_out.
func stagingSQL(time.Time) string {
	return fmt.Sprintf(`SELECT
	gl_entry_id,
	journal_batch,
	journal_entry,
	CAST(transaction_date AS DATE) AS transaction_date,
	CAST(posting_date AS DATE) AS posting_date,
	account_code,
	account_name,
	account_type,
	CAST(ROUND(debit_amount, 2) AS DECIMAL(18,2)) AS debit_amount,
	CAST(ROUND(credit_amount, 2) AS DECIMAL(18,2)) AS credit_amount,
	CAST(ROUND(net_amount, 2) AS DECIMAL(18,2)) AS net_amount,
	well_id,
	lease_name,
	property_id,
	afe_number,
	jib_number,
	cost_center,
	journal_source,
	transaction_type,
	description,
	fiscal_period,
	fiscal_year,
	fiscal_month,
	state,
	county,
	basin,
	CAST(created_timestamp AS TIMESTAMP) AS created_timestamp,
	created_by,
	CAST(last_modified AS TIMESTAMP) AS last_modified,
	ingested_at,
	source
FROM %s
WHERE transaction_date IS NOT NULL
  AND transaction_date <> ''
  AND account_code IS NOT NULL
  AND account_code <> ''`, raw.GLRecordsTable)
}

// factSQL is a pure per-row derivation over staging. Deterministic given
// the staged row, so re-running on the same snapshot is byte-identical.
func factSQL(time.Time) string {
	return fmt.Sprintf(`SELECT
	s.*,
	CASE
		WHEN s.debit_amount > 0 THEN 'DEBIT'
		WHEN s.credit_amount > 0 THEN 'CREDIT'
		ELSE 'ZERO'
	END AS transaction_side,
	ABS(s.net_amount) AS absolute_amount,
	EXTRACT(year FROM s.transaction_date) AS transaction_year,
	EXTRACT(month FROM s.transaction_date) AS transaction_month,
	EXTRACT(quarter FROM s.transaction_date) AS transaction_quarter,
	EXTRACT(dow FROM s.transaction_date) AS transaction_day_of_week,
	(s.account_type = '%s') AS is_revenue,
	(s.account_type = '%s') AS is_expense,
	(s.account_type = '%s') AS is_capex
FROM %s s`,
		core.AccountTypeRevenue, core.AccountTypeExpense, core.AccountTypeCapex, StagingTable)
}

// wellDimSQL aggregates fact rows per well tuple. Revenue is summed
// credit-normal (credit minus debit); expense and capex as absolute values.
// Activity status anchors on asOf, not wall clock, so backfills can pass a
// historical evaluation time.
func wellDimSQL(asOf time.Time) string {
	activeCutoff := asOf.AddDate(0, 0, -30).Format("2006-01-02")
	inactiveCutoff := asOf.AddDate(0, 0, -90).Format("2006-01-02")
	return fmt.Sprintf(`SELECT
	well_id,
	lease_name,
	property_id,
	state,
	county,
	basin,
	COUNT(*) AS total_transactions,
	SUM(CASE WHEN is_revenue THEN credit_amount - debit_amount ELSE 0 END) AS total_revenue,
	SUM(CASE WHEN is_expense THEN ABS(net_amount) ELSE 0 END) AS total_expenses,
	SUM(CASE WHEN is_capex THEN ABS(net_amount) ELSE 0 END) AS total_capex,
	MIN(transaction_date) AS first_transaction_date,
	MAX(transaction_date) AS last_transaction_date,
	CASE
		WHEN MAX(transaction_date) >= DATE '%s' THEN 'ACTIVE'
		WHEN MAX(transaction_date) >= DATE '%s' THEN 'INACTIVE'
		ELSE 'DORMANT'
	END AS well_status
FROM %s
WHERE well_id IS NOT NULL AND well_id <> ''
GROUP BY well_id, lease_name, property_id, state, county, basin`,
		activeCutoff, inactiveCutoff, FactTable)
}

// monthlySummarySQL aggregates fact rows per fiscal and calendar month,
// state, basin and account type.
func monthlySummarySQL(time.Time) string {
	return fmt.Sprintf(`SELECT
	fiscal_year,
	fiscal_month,
	transaction_year AS calendar_year,
	transaction_month AS calendar_month,
	state,
	basin,
	account_type,
	COUNT(*) AS transaction_count,
	SUM(debit_amount) AS total_debits,
	SUM(credit_amount) AS total_credits,
	SUM(net_amount) AS total_net,
	AVG(absolute_amount) AS avg_absolute_amount,
	SUM(CASE WHEN is_revenue THEN credit_amount - debit_amount ELSE 0 END) AS total_revenue,
	SUM(CASE WHEN is_expense THEN ABS(net_amount) ELSE 0 END) AS total_expenses,
	SUM(CASE WHEN is_capex THEN ABS(net_amount) ELSE 0 END) AS total_capex,
	COUNT(DISTINCT well_id) AS distinct_wells,
	COUNT(DISTINCT lease_name) AS distinct_leases,
	MIN(transaction_date) AS earliest_transaction,
	MAX(transaction_date) AS latest_transaction
FROM %s
GROUP BY fiscal_year, fiscal_month, transaction_year, transaction_month, state, basin, account_type`,
		FactTable)
}
