package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_InsertThenSelect(t *testing.T) {
	scenario := &Scenario{
		Name: "insert_then_select",
		Fixtures: []Fixture{
			{Kind: "users", ID: 1, Properties: map[string]any{"name": "A", "age": 16}},
			{Kind: "users", ID: 2, Properties: map[string]any{"name": "B", "age": 14}},
		},
		Steps: []Step{
			{SQL: "SELECT name FROM users ORDER BY age DESC"},
			{SQL: "INSERT INTO users (name, age) VALUES ('C', 28)"},
		},
	}

	// To regenerate:
	//   go test ./internal/harness -run TestRunWithGolden_InsertThenSelect -update
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, StepTrace{
		Statement: "SELECT * FROM users",
		Columns:   []string{"key"},
		Rows:      [][]string{{"KEY(users, 1)"}},
		RowCount:  1,
		Calls:     []string{"runQuery: SELECT * FROM users"},
	})

	first, err := MarshalSnapshot("x", result)
	require.NoError(t, err)
	second, err := MarshalSnapshot("x", result)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"scenario_name": "x"`)
	assert.Equal(t, byte('\n'), first[len(first)-1])
}
