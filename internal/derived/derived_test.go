package derived

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/statement"
)

func testExecutor() *Executor {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func k(id int64) ir.Key { return ir.Key{{Kind: "tasks", ID: id}} }

func tasks() *materialize.Result {
	rows := []materialize.Row{
		{k(1), ir.Int(3), ir.Bool(false), ir.String("house"), ir.Key{{Kind: "owner", Name: "ann"}}},
		{k(2), ir.Int(5), ir.Bool(true), ir.String("house"), ir.Key{{Kind: "owner", Name: "bob"}}},
		{k(3), ir.Int(8), ir.Bool(false), ir.String("work"), ir.Key{{Kind: "owner", Name: "ann"}}},
		{k(4), ir.Int(8), ir.Bool(true), ir.String("work"), ir.Null{}},
	}
	names := []string{"key", "effort", "done", "tag", "owner"}
	return &materialize.Result{Fields: materialize.Describe(names, rows), Rows: rows}
}

func TestExecute_GroupByCountOrderLimit(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT tag, COUNT(*) AS n, SUM(effort) AS total FROM derived_rows AS t GROUP BY tag ORDER BY total DESC LIMIT 1",
		tasks())
	require.NoError(t, err)

	assert.Equal(t, []string{"tag", "n", "total"}, res.Names())
	require.Len(t, res.Rows, 1)
	assert.Equal(t, materialize.Row{ir.String("work"), ir.Int(2), ir.Int(16)}, res.Rows[0])
}

func TestExecute_CountDistinct(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT COUNT(DISTINCT effort) AS efforts FROM derived_rows", tasks())
	require.NoError(t, err)
	assert.Equal(t, materialize.Row{ir.Int(3)}, res.Rows[0])
}

func TestExecute_CompoundGroupKeyRestored(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT owner, COUNT(*) AS n FROM derived_rows WHERE owner IS NOT NULL GROUP BY owner ORDER BY owner",
		tasks())
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, ir.Key{{Kind: "owner", Name: "ann"}}, res.Rows[0][0])
	assert.Equal(t, ir.Int(2), res.Rows[0][1])
	assert.Equal(t, ir.TypeKey, res.Fields[0].Type)
}

func TestExecute_KeyColumnSpellings(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT id, done FROM derived_rows WHERE __key__ IS NOT NULL ORDER BY effort DESC, id LIMIT 2", tasks())
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, materialize.Row{k(3), ir.Bool(false)}, res.Rows[0])
	assert.Equal(t, materialize.Row{k(4), ir.Bool(true)}, res.Rows[1])
}

func TestExecute_ComputedColumns(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT tag, effort * 2 AS doubled, no_such_fn(effort) AS broken FROM derived_rows ORDER BY doubled LIMIT 1",
		tasks())
	require.NoError(t, err)
	assert.Equal(t, []string{"tag", "doubled"}, res.Names())
	assert.Equal(t, materialize.Row{ir.String("house"), ir.Int(6)}, res.Rows[0])
}

func TestExecute_AggregateWithoutGroupBy(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT AVG(effort) AS mean, MAX(effort) AS top FROM derived_rows", tasks())
	require.NoError(t, err)
	assert.Equal(t, materialize.Row{ir.Double(6), ir.Int(8)}, res.Rows[0])
}

func TestExecute_EmptyInner(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT COUNT(*) AS n FROM derived_rows", &materialize.Result{})
	require.NoError(t, err)
	assert.Equal(t, materialize.Row{ir.Int(0)}, res.Rows[0])
}

func TestExecute_SyntaxError(t *testing.T) {
	_, err := testExecutor().Execute(context.Background(), "SELECT FROM WHERE", tasks())
	require.Error(t, err)
	var serr *statement.Error
	assert.ErrorAs(t, err, &serr)
}

func TestExecute_BareKeyColumn(t *testing.T) {
	res, err := testExecutor().Execute(context.Background(),
		"SELECT key, COUNT(*) AS n FROM derived_rows WHERE key IS NOT NULL GROUP BY key ORDER BY key LIMIT 1", tasks())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"key", "n"}, res.Names())
	assert.Equal(t, ir.TypeKey, res.Fields[0].Type)
	assert.Equal(t, ir.Int(1), res.Rows[0][1])
}

func TestQuoteKeyIdents(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT key FROM derived_rows", "SELECT `key` FROM derived_rows"},
		{"SELECT Key, n FROM t GROUP BY key", "SELECT `key`, n FROM t GROUP BY `key`"},
		{"SELECT `key` FROM t WHERE name = 'key'", "SELECT `key` FROM t WHERE name = 'key'"},
		{"SELECT id FROM t", "SELECT id FROM t"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteKeyIdents(tt.in), tt.in)
	}
}
