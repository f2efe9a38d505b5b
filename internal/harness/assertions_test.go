package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func int64p(v int64) *int64 { return &v }
func boolp(v bool) *bool    { return &v }

func TestCellMatches(t *testing.T) {
	tests := []struct {
		want any
		got  string
		ok   bool
	}{
		{"A", "'A'", true},
		{"KEY(users, 1)", "KEY(users, 1)", true},
		{16, "16", true},
		{16, "16.0", false},
		{2.0, "2.0", true},
		{true, "true", true},
		{nil, "NULL", true},
		{"B", "'A'", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, cellMatches(tt.want, tt.got), "%v vs %s", tt.want, tt.got)
	}
}

func TestCheckExpect(t *testing.T) {
	trace := StepTrace{
		Columns:  []string{"name"},
		Rows:     [][]string{{"'A'"}},
		RowCount: 1,
	}

	assert.Empty(t, checkExpect(&Expect{
		Columns:  []string{"name"},
		Rows:     [][]any{{"A"}},
		RowCount: int64p(1),
		Warnings: boolp(false),
	}, trace))

	msgs := checkExpect(&Expect{Columns: []string{"age"}, RowCount: int64p(2)}, trace)
	assert.Len(t, msgs, 2)

	msgs = checkExpect(&Expect{Rows: [][]any{{"A"}, {"B"}}}, trace)
	assert.Equal(t, []string{`expected 2 rows, got 1: [['A']]`}, msgs)
}

func TestCheckExpect_Errors(t *testing.T) {
	assert.Empty(t, checkExpect(&Expect{Error: "DATA_ERROR"}, StepTrace{Error: "DATA_ERROR"}))
	assert.Equal(t,
		[]string{`expected error "DATA_ERROR", got ""`},
		checkExpect(&Expect{Error: "DATA_ERROR"}, StepTrace{}))
	assert.Equal(t,
		[]string{`expected error "", got "OPERATIONAL_ERROR"`},
		checkExpect(&Expect{}, StepTrace{Error: "OPERATIONAL_ERROR"}))
}
