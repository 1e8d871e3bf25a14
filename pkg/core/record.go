package core

import "time"

// GLRecord is a raw general-ledger entry as produced by the source system.
// Field types mirror the wire format: dates and audit timestamps arrive as
// ISO-8601 strings and are only cast to typed columns at the staging layer.
// TransactionDate and AccountCode are pointers because the source may emit
// them as null; such rows are rejected at the staging boundary.
type GLRecord struct {
	GLEntryID       int64   `json:"gl_entry_id"`
	JournalBatch    string  `json:"journal_batch"`
	JournalEntry    string  `json:"journal_entry"`
	TransactionDate *string `json:"transaction_date"`
	PostingDate     *string `json:"posting_date"`
	AccountCode     *string `json:"account_code"`
	AccountName     string  `json:"account_name"`
	AccountType     string  `json:"account_type"`
	DebitAmount     float64 `json:"debit_amount"`
	CreditAmount    float64 `json:"credit_amount"`
	NetAmount       float64 `json:"net_amount"`

	// Oil & gas identifiers (opaque strings).
	WellID     string  `json:"well_id"`
	LeaseName  string  `json:"lease_name"`
	PropertyID string  `json:"property_id"`
	AFENumber  *string `json:"afe_number"`
	JIBNumber  *string `json:"jib_number"`
	CostCenter string  `json:"cost_center"`

	JournalSource   string `json:"journal_source"`
	TransactionType string `json:"transaction_type"`
	Description     string `json:"description"`

	FiscalPeriod string `json:"fiscal_period"`
	FiscalYear   int    `json:"fiscal_year"`
	FiscalMonth  int    `json:"fiscal_month"`

	State  string `json:"state"`
	County string `json:"county"`
	Basin  string `json:"basin"`

	CreatedTimestamp string    `json:"created_timestamp"`
	CreatedBy        string    `json:"created_by"`
	LastModified     string    `json:"last_modified"`
	IngestedAt       time.Time `json:"ingested_at,omitempty"`
	Source           string    `json:"source,omitempty"`
}

// Account type domain values. Classification flags on the fact table derive
// solely from AccountType.
const (
	AccountTypeRevenue = "REVENUE"
	AccountTypeExpense = "EXPENSE"
	AccountTypeCapex   = "CAPEX"
	AccountTypeAdmin   = "ADMIN"
)

// Eligible reports whether the record can be staged. Records missing a
// transaction date or account code are dropped at the staging boundary,
// not repaired.
func (r *GLRecord) Eligible() bool {
	return r.TransactionDate != nil && *r.TransactionDate != "" &&
		r.AccountCode != nil && *r.AccountCode != ""
}
