package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/queryir"
)

func mustSelect(t *testing.T, text string) *queryir.Select {
	t.Helper()
	stmt, err := Classify(text)
	require.NoError(t, err)
	sel, ok := stmt.(*queryir.Select)
	require.True(t, ok, "expected *queryir.Select, got %T", stmt)
	return sel
}

func TestClassify_Select(t *testing.T) {
	sel := mustSelect(t, "SELECT name, u.age AS years FROM users u WHERE age > 15 ORDER BY age DESC, name LIMIT 10 OFFSET 5")

	assert.Equal(t, "users", sel.Kind)
	assert.Equal(t, "u", sel.Alias)
	require.Len(t, sel.Columns, 2)
	assert.Equal(t, "name", sel.Columns[0].Name)
	assert.Equal(t, "age", sel.Columns[1].Name)
	assert.Equal(t, "years", sel.Columns[1].OutputName())
	assert.Equal(t, "age > 15", sel.WhereText)
	assert.Equal(t, []queryir.Order{{Field: "age", Descending: true}, {Field: "name"}}, sel.OrderBy)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, int64(10), *sel.Limit)
	assert.Equal(t, int64(5), sel.Offset)
}

func TestClassify_SelectStar(t *testing.T) {
	sel := mustSelect(t, "SELECT * FROM users")
	assert.True(t, sel.Star)
	assert.False(t, sel.HasWhere())
	assert.Nil(t, sel.ProjectedNames())
	assert.Nil(t, sel.Limit)
}

func TestClassify_Distinct(t *testing.T) {
	sel := mustSelect(t, "SELECT DISTINCT ON (name, age) name, age FROM users")
	assert.True(t, sel.Distinct)
	assert.Equal(t, []string{"name", "age"}, sel.DistinctOn)

	sel = mustSelect(t, "SELECT DISTINCT name FROM users")
	assert.True(t, sel.Distinct)
	assert.Empty(t, sel.DistinctOn)
}

func TestClassify_LimitForms(t *testing.T) {
	tests := []struct {
		text   string
		limit  int64
		offset int64
	}{
		{"SELECT * FROM users LIMIT FIRST(5, 10)", 10, 5},
		{"SELECT * FROM users LIMIT 5, 10", 10, 5},
		{"SELECT * FROM users LIMIT 10 OFFSET 5", 10, 5},
	}
	for _, tt := range tests {
		sel := mustSelect(t, tt.text)
		require.NotNil(t, sel.Limit, tt.text)
		assert.Equal(t, tt.limit, *sel.Limit, tt.text)
		assert.Equal(t, tt.offset, sel.Offset, tt.text)
	}

	sel := mustSelect(t, "SELECT * FROM users OFFSET 3")
	assert.Nil(t, sel.Limit)
	assert.Equal(t, int64(3), sel.Offset)
}

func TestClassify_WindowColumnIsComputed(t *testing.T) {
	sel := mustSelect(t, "SELECT name, ROW_NUMBER() OVER (PARTITION BY name ORDER BY age) AS _rn FROM users")
	require.Len(t, sel.Columns, 2)
	assert.Equal(t, "", sel.Columns[1].Name)
	assert.Equal(t, "_rn", sel.Columns[1].Alias)
	assert.Empty(t, sel.OrderBy)
}

func TestClassify_Aggregate(t *testing.T) {
	stmt, err := Classify("SELECT COUNT(*) AS total, SUM(age), AVG(age) FROM users WHERE age > 1")
	require.NoError(t, err)
	agg, ok := stmt.(*queryir.Aggregate)
	require.True(t, ok)

	require.Len(t, agg.Calls, 3)
	assert.Equal(t, queryir.AggregateCall{Func: "COUNT", Arg: "*", Alias: "total"}, agg.Calls[0])
	assert.Equal(t, "SUM", agg.Calls[1].Name())
	assert.Equal(t, "age", agg.Calls[2].Arg)

	require.NotNil(t, agg.Inner)
	assert.True(t, agg.Inner.Star)
	assert.Equal(t, "users", agg.Inner.Kind)
	assert.Equal(t, "age > 1", agg.Inner.WhereText)
}

func TestClassify_AggregateOver(t *testing.T) {
	stmt, err := Classify("AGGREGATE COUNT_UP_TO(5) OVER (SELECT * FROM users WHERE active = true)")
	require.NoError(t, err)
	agg, ok := stmt.(*queryir.Aggregate)
	require.True(t, ok)
	require.Len(t, agg.Calls, 1)
	assert.Equal(t, int64(5), agg.Calls[0].UpTo)
	assert.Equal(t, "SELECT * FROM users WHERE active = true", agg.Inner.Text)
}

func TestClassify_KindlessAggregate(t *testing.T) {
	stmt, err := Classify("SELECT COUNT(*)")
	require.NoError(t, err)
	agg, ok := stmt.(*queryir.Aggregate)
	require.True(t, ok)
	assert.Nil(t, agg.Inner)
}

func TestClassify_Derived(t *testing.T) {
	stmt, err := Classify("SELECT t.name, COUNT(*) AS n FROM (SELECT name, age FROM users WHERE age > 1) AS t GROUP BY t.name")
	require.NoError(t, err)
	d, ok := stmt.(*queryir.Derived)
	require.True(t, ok)

	assert.Equal(t, "t", d.Alias)
	assert.Equal(t, DerivedTable, d.Table)
	assert.Equal(t, "users", d.Inner.Kind)
	assert.Equal(t, "SELECT name, age FROM users WHERE age > 1", d.Inner.Text)
	assert.Equal(t, "SELECT t.name, COUNT(*) AS n FROM derived_rows AS t GROUP BY t.name", d.Outer)
}

func TestClassify_Errors(t *testing.T) {
	for _, text := range []string{
		"",
		"EXPLAIN SELECT 1",
		"SELECT name",
		"SELECT FROM users",
		"SELECT * FROM users GROUP BY name",
		"SELECT name, COUNT(*) FROM users",
		"SELECT * FROM users LIMIT",
		"SELECT * FROM users LIMIT -1",
		"SELECT * FROM users WHERE",
		"SELECT * FROM users extra tokens",
		"SELECT * FROM (SELECT * FROM (SELECT * FROM users) a) b",
		"AGGREGATE COUNT(*) OVER (SELECT * FROM users) trailing",
	} {
		_, err := Classify(text)
		assert.Error(t, err, text)
	}
}

func TestParseSelectTokens_Synthetic(t *testing.T) {
	toks := []queryir.Token{Keyword("SELECT"), Punct("*"), Keyword("FROM"), Ident("users"), Keyword("WHERE"), Ident("a"), Op("="), Number("1")}
	sel, err := ParseSelectTokens(toks)
	require.NoError(t, err)
	assert.Equal(t, "a = 1", sel.WhereText)
}
