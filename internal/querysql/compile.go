package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/gqlbridge/internal/ir"
)

// SQLCompiler compiles row sets into parameterized SQLite statements for
// the derived-table engine.
//
// Values are never interpolated: every statement uses ? placeholders and
// Param converts each value. Compound values become canonical text
// surrogates that Restore maps back.
type SQLCompiler struct {
	surrogates map[string]ir.Value
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{surrogates: make(map[string]ir.Value)}
}

// CreateTable returns DDL for a table with the given columns. Columns carry
// no declared type so each value keeps its own storage class.
func (c *SQLCompiler) CreateTable(table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdent(col)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(quoted, ", ")), nil
}

// Insert returns a single-row INSERT with one placeholder per column.
func (c *SQLCompiler) Insert(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdent(col)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// Param converts a value to an SQLite parameter.
//
// Null, Int, Double and String map to native SQLite values and Bool to 0 or
// 1. Every other type is stored as its canonical text, which groups and
// orders by string form.
func (c *SQLCompiler) Param(v ir.Value) any {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil
	case ir.Int:
		return int64(val)
	case ir.Double:
		return float64(val)
	case ir.String:
		return string(val)
	case ir.Bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		text := ir.Canonical(v)
		c.surrogates[text] = v
		return text
	}
}

// Params converts a row.
func (c *SQLCompiler) Params(row []ir.Value) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = c.Param(v)
	}
	return out
}

// Restore converts a scanned SQLite value back to a Value. Text that
// matches a surrogate produced by Param becomes the original value; hint
// restores booleans stored as integers.
func (c *SQLCompiler) Restore(raw any, hint ir.Type) ir.Value {
	switch val := raw.(type) {
	case nil:
		return ir.Null{}
	case int64:
		if hint == ir.TypeBool && (val == 0 || val == 1) {
			return ir.Bool(val == 1)
		}
		return ir.Int(val)
	case float64:
		return ir.Double(val)
	case bool:
		return ir.Bool(val)
	case []byte:
		return c.restoreText(string(val))
	case string:
		return c.restoreText(val)
	default:
		return ir.String(fmt.Sprint(val))
	}
}

func (c *SQLCompiler) restoreText(s string) ir.Value {
	if v, ok := c.surrogates[s]; ok {
		return v
	}
	return ir.String(s)
}

// QuoteIdent double-quotes an SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
