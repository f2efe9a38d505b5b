package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/gqlbridge/internal/ir"
)

// checkExpect compares a step's trace with its expectation and returns one
// message per mismatch.
func checkExpect(exp *Expect, trace StepTrace) []string {
	var msgs []string
	if exp.Error != "" || trace.Error != "" {
		if trace.Error != exp.Error {
			msgs = append(msgs, fmt.Sprintf("expected error %q, got %q", exp.Error, trace.Error))
		}
		return msgs
	}

	if exp.Columns != nil && !slices.Equal(exp.Columns, trace.Columns) {
		msgs = append(msgs, fmt.Sprintf("expected columns %v, got %v", exp.Columns, trace.Columns))
	}
	if exp.Rows != nil {
		msgs = append(msgs, compareRows(exp.Rows, trace.Rows)...)
	}
	if exp.RowCount != nil && *exp.RowCount != trace.RowCount {
		msgs = append(msgs, fmt.Sprintf("expected row_count %d, got %d", *exp.RowCount, trace.RowCount))
	}
	if exp.LastRowID != nil && *exp.LastRowID != trace.LastRowID {
		msgs = append(msgs, fmt.Sprintf("expected last_row_id %d, got %d", *exp.LastRowID, trace.LastRowID))
	}
	if exp.Warnings != nil && *exp.Warnings != (len(trace.Warnings) > 0) {
		if *exp.Warnings {
			msgs = append(msgs, "expected a warning, got none")
		} else {
			msgs = append(msgs, fmt.Sprintf("expected no warnings, got %q", trace.Warnings))
		}
	}
	return msgs
}

func compareRows(want [][]any, got [][]string) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("expected %d rows, got %d: %v", len(want), len(got), got)}
	}
	var msgs []string
	for i := range want {
		if len(want[i]) != len(got[i]) {
			msgs = append(msgs, fmt.Sprintf("row %d: expected %d cells, got %d", i, len(want[i]), len(got[i])))
			continue
		}
		for j, cell := range want[i] {
			if !cellMatches(cell, got[i][j]) {
				msgs = append(msgs, fmt.Sprintf("row %d cell %d: expected %v, got %s", i, j, cell, got[i][j]))
			}
		}
	}
	return msgs
}

// cellMatches reports whether an expected YAML value matches a rendered
// cell. A string also matches a cell equal to it verbatim, which is how
// keys and other literals are written in scenarios.
func cellMatches(want any, got string) bool {
	if s, ok := want.(string); ok && s == got {
		return true
	}
	v, err := ir.FromNative(want)
	if err != nil {
		return false
	}
	return ir.Format(v) == got
}

// checkAssertion evaluates one assertion and returns a failure message, or
// "" when it holds.
func (h *Harness) checkAssertion(a Assertion) string {
	switch a.Type {
	case AssertRemoteCalls:
		n := 0
		for _, c := range h.fake.Calls() {
			if c.Method == a.Method {
				n++
			}
		}
		if n != *a.Count {
			return fmt.Sprintf("expected %d %s calls, got %d", *a.Count, a.Method, n)
		}

	case AssertEntity:
		key := ir.Key{{Kind: a.Kind, ID: a.ID, Name: a.Name}}
		props, ok := h.fake.Get(key)
		if a.Absent {
			if ok {
				return fmt.Sprintf("expected %s to be absent", key)
			}
			return ""
		}
		if !ok {
			return fmt.Sprintf("expected %s to exist", key)
		}
		for name, raw := range a.Expect {
			want, err := ir.FromNative(raw)
			if err != nil {
				return fmt.Sprintf("%s.%s: %v", key, name, err)
			}
			got, present := props[name]
			if !present {
				got = ir.Null{}
			}
			if !ir.Equal(want, got) {
				return fmt.Sprintf("%s.%s: expected %s, got %s", key, name, ir.Format(want), ir.Format(got))
			}
		}
	}
	return ""
}
