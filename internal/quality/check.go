// Package quality evaluates declarative data-quality checks against
// warehouse tables and persists one result per check per run.
package quality

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// Severity decides whether a failing check blocks the run.
type Severity string

// Check severities. A failing blocking check fails the run; a failing
// warning check is recorded as WARNING and the run proceeds.
const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Check is one declarative quality rule against a table.
type Check struct {
	Name     string         `yaml:"name"`
	Type     core.CheckType `yaml:"type"`
	Column   string         `yaml:"column,omitempty"`
	Min      *float64       `yaml:"min,omitempty"`
	Max      *float64       `yaml:"max,omitempty"`
	RefTable string         `yaml:"ref_table,omitempty"`
	RefCol   string         `yaml:"ref_column,omitempty"`
	// Expression is a full SELECT returning a single violation count.
	// Only meaningful for CUSTOM checks.
	Expression string   `yaml:"expression,omitempty"`
	Severity   Severity `yaml:"severity,omitempty"`
}

// Blocking reports whether a FAIL on this check should fail the run.
// Checks default to blocking unless marked warning.
func (c Check) Blocking() bool {
	return c.Severity != SeverityWarning
}

// violationSQL builds the query that counts rows violating the check.
// Zero violations means PASS.
func (c Check) violationSQL(table string) (string, error) {
	switch c.Type {
	case core.CheckNotNull:
		if c.Column == "" {
			return "", fmt.Errorf("check %q: NOT_NULL requires a column", c.Name)
		}
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", table, c.Column), nil
	case core.CheckUnique:
		if c.Column == "" {
			return "", fmt.Errorf("check %q: UNIQUE requires a column", c.Name)
		}
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM (SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1) dup",
			c.Column, table, c.Column), nil
	case core.CheckRange:
		if c.Column == "" || (c.Min == nil && c.Max == nil) {
			return "", fmt.Errorf("check %q: RANGE requires a column and at least one bound", c.Name)
		}
		var conds []string
		if c.Min != nil {
			conds = append(conds, fmt.Sprintf("%s < %v", c.Column, *c.Min))
		}
		if c.Max != nil {
			conds = append(conds, fmt.Sprintf("%s > %v", c.Column, *c.Max))
		}
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, strings.Join(conds, " OR ")), nil
	case core.CheckReferential:
		if c.Column == "" || c.RefTable == "" || c.RefCol == "" {
			return "", fmt.Errorf("check %q: REFERENTIAL requires column, ref_table and ref_column", c.Name)
		}
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM %s t LEFT JOIN %s r ON t.%s = r.%s WHERE t.%s IS NOT NULL AND r.%s IS NULL",
			table, c.RefTable, c.Column, c.RefCol, c.Column, c.RefCol), nil
	case core.CheckCustom:
		if c.Expression == "" {
			return "", fmt.Errorf("check %q: CUSTOM requires an expression", c.Name)
		}
		return strings.ReplaceAll(c.Expression, "{table}", table), nil
	default:
		return "", fmt.Errorf("check %q: unknown check type %q", c.Name, c.Type)
	}
}

// describe renders the check as a short expression for the persisted result.
func (c Check) describe() string {
	switch c.Type {
	case core.CheckRange:
		min, max := "-inf", "+inf"
		if c.Min != nil {
			min = fmt.Sprintf("%v", *c.Min)
		}
		if c.Max != nil {
			max = fmt.Sprintf("%v", *c.Max)
		}
		return fmt.Sprintf("%s in [%s, %s]", c.Column, min, max)
	case core.CheckReferential:
		return fmt.Sprintf("%s references %s.%s", c.Column, c.RefTable, c.RefCol)
	case core.CheckCustom:
		return c.Expression
	default:
		return fmt.Sprintf("%s %s", c.Type, c.Column)
	}
}

// Suite maps table names to the checks evaluated against them.
type Suite map[string][]Check

type suiteFile struct {
	Suites Suite `yaml:"suites"`
}

// LoadSuiteFile reads a check suite from a YAML file. The file layout is
//
//	suites:
//	  staging.gl_transactions:
//	    - name: gl_entry_id_not_null
//	      type: NOT_NULL
//	      column: gl_entry_id
//	      severity: blocking
func LoadSuiteFile(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read check suite: %w", err)
	}
	var f suiteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse check suite %s: %w", path, err)
	}
	return f.Suites, nil
}
