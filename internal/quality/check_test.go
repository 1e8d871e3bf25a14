package quality

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dakota-labs/glpipe/pkg/core"
)

func TestBlockingDefault(t *testing.T) {
	if !(Check{Name: "x", Type: core.CheckNotNull, Column: "c"}).Blocking() {
		t.Error("unset severity should be blocking")
	}
	if !(Check{Severity: SeverityBlocking}).Blocking() {
		t.Error("blocking severity should be blocking")
	}
	if (Check{Severity: SeverityWarning}).Blocking() {
		t.Error("warning severity should not be blocking")
	}
}

func TestViolationSQL(t *testing.T) {
	min, max := 0.0, 100.0

	tests := []struct {
		name  string
		check Check
		want  []string
	}{
		{
			"not null",
			Check{Name: "nn", Type: core.CheckNotNull, Column: "account_code"},
			[]string{"FROM staging.gl_transactions", "account_code IS NULL"},
		},
		{
			"unique",
			Check{Name: "uq", Type: core.CheckUnique, Column: "gl_entry_id"},
			[]string{"GROUP BY gl_entry_id", "HAVING COUNT(*) > 1"},
		},
		{
			"range both bounds",
			Check{Name: "rg", Type: core.CheckRange, Column: "net_amount", Min: &min, Max: &max},
			[]string{"net_amount < 0", "net_amount > 100"},
		},
		{
			"range min only",
			Check{Name: "rg", Type: core.CheckRange, Column: "net_amount", Min: &min},
			[]string{"net_amount < 0"},
		},
		{
			"referential",
			Check{Name: "rf", Type: core.CheckReferential, Column: "well_id", RefTable: "marts.dim_wells", RefCol: "well_id"},
			[]string{"LEFT JOIN marts.dim_wells", "r.well_id IS NULL"},
		},
		{
			"custom with placeholder",
			Check{Name: "cu", Type: core.CheckCustom, Expression: "SELECT COUNT(*) FROM {table} WHERE x < 0"},
			[]string{"FROM staging.gl_transactions WHERE x < 0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := tt.check.violationSQL("staging.gl_transactions")
			if err != nil {
				t.Fatalf("violationSQL: %v", err)
			}
			for _, frag := range tt.want {
				if !strings.Contains(sql, frag) {
					t.Errorf("sql %q missing %q", sql, frag)
				}
			}
		})
	}
}

func TestViolationSQLValidation(t *testing.T) {
	bad := []Check{
		{Name: "a", Type: core.CheckNotNull},
		{Name: "b", Type: core.CheckUnique},
		{Name: "c", Type: core.CheckRange, Column: "x"},
		{Name: "d", Type: core.CheckReferential, Column: "x"},
		{Name: "e", Type: core.CheckCustom},
		{Name: "f", Type: "BOGUS"},
	}
	for _, c := range bad {
		if _, err := c.violationSQL("t"); err == nil {
			t.Errorf("check %q: expected error", c.Name)
		}
	}
}

func TestLoadSuiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.yaml")
	content := `suites:
  staging.gl_transactions:
    - name: gl_entry_id_not_null
      type: NOT_NULL
      column: gl_entry_id
    - name: net_amount_in_range
      type: RANGE
      column: net_amount
      min: -1000000
      max: 1000000
      severity: warning
  marts.fact_gl_transactions:
    - name: gl_entry_id_unique
      type: UNIQUE
      column: gl_entry_id
      severity: blocking
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	suite, err := LoadSuiteFile(path)
	if err != nil {
		t.Fatalf("LoadSuiteFile: %v", err)
	}
	staging := suite["staging.gl_transactions"]
	if len(staging) != 2 {
		t.Fatalf("got %d staging checks, want 2", len(staging))
	}
	if staging[0].Type != core.CheckNotNull || !staging[0].Blocking() {
		t.Errorf("first check = %+v, want blocking NOT_NULL", staging[0])
	}
	rng := staging[1]
	if rng.Min == nil || *rng.Min != -1000000 || rng.Max == nil || *rng.Max != 1000000 {
		t.Errorf("range bounds = %v/%v", rng.Min, rng.Max)
	}
	if rng.Blocking() {
		t.Error("warning check reported blocking")
	}
	if len(suite["marts.fact_gl_transactions"]) != 1 {
		t.Error("fact checks missing")
	}
}

func TestLoadSuiteFileErrors(t *testing.T) {
	if _, err := LoadSuiteFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("suites: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuiteFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestBuiltinSuitesWellFormed(t *testing.T) {
	suites := map[string][]Check{
		"staging": StagingChecks(),
		"fact":    FactChecks(),
		"marts":   MartChecks(),
	}
	for layer, checks := range suites {
		if len(checks) == 0 {
			t.Errorf("%s suite is empty", layer)
		}
		for _, c := range checks {
			if _, err := c.violationSQL("some.table"); err != nil {
				t.Errorf("%s check %q: %v", layer, c.Name, err)
			}
		}
	}
}
