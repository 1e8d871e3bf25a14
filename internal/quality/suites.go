package quality

import "github.com/dakota-labs/glpipe/pkg/core"

// Default check suites per layer. Net-amount consistency is a warning
// because the source system does not hard-enforce it; low row count is a
// warning because an empty upstream is a monitoring signal, not corruption.

// StagingChecks are evaluated after the raw-to-staging stage.
func StagingChecks() []Check {
	return []Check{
		{Name: "gl_entry_id_not_null", Type: core.CheckNotNull, Column: "gl_entry_id"},
		{Name: "gl_entry_id_unique", Type: core.CheckUnique, Column: "gl_entry_id"},
		{Name: "transaction_date_not_null", Type: core.CheckNotNull, Column: "transaction_date"},
		{Name: "account_code_not_null", Type: core.CheckNotNull, Column: "account_code"},
		{
			Name:       "net_amount_consistency",
			Type:       core.CheckCustom,
			Column:     "net_amount",
			Expression: "SELECT COUNT(*) FROM {table} WHERE ABS(net_amount - (debit_amount - credit_amount)) > 0.01",
			Severity:   SeverityWarning,
		},
		{
			Name:       "minimum_row_count",
			Type:       core.CheckCustom,
			Expression: "SELECT CASE WHEN COUNT(*) > 0 THEN 0 ELSE 1 END FROM {table}",
			Severity:   SeverityWarning,
		},
	}
}

// FactChecks are evaluated after the staging-to-fact stage.
func FactChecks() []Check {
	return []Check{
		{Name: "gl_entry_id_not_null", Type: core.CheckNotNull, Column: "gl_entry_id"},
		{Name: "gl_entry_id_unique", Type: core.CheckUnique, Column: "gl_entry_id"},
		{Name: "transaction_side_not_null", Type: core.CheckNotNull, Column: "transaction_side"},
		{Name: "absolute_amount_non_negative", Type: core.CheckRange, Column: "absolute_amount", Min: f64(0), Severity: SeverityWarning},
	}
}

// MartChecks are evaluated against each mart table after fact-to-marts.
func MartChecks() []Check {
	return []Check{
		{
			Name:       "minimum_row_count",
			Type:       core.CheckCustom,
			Expression: "SELECT CASE WHEN COUNT(*) > 0 THEN 0 ELSE 1 END FROM {table}",
			Severity:   SeverityWarning,
		},
	}
}

func f64(v float64) *float64 { return &v }
