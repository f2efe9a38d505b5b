package querygql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
)

var translationCases = []string{
	"SELECT * FROM users",
	"SELECT name, age FROM users WHERE age <> 10",
	"SELECT * FROM users WHERE NOT name IN ('Alice', 'Bob')",
	"SELECT id FROM users WHERE id = 5",
	"SELECT * FROM users WHERE name = 'a' OR name = 'b'",
	"SELECT * FROM users WHERE data = BLOB('xyz')",
	"SELECT * FROM users LIMIT FIRST(5, 10)",
	"SELECT * FROM users WHERE NULL",
	"SELECT DISTINCT ON (name) name, ROW_NUMBER() OVER (PARTITION BY name ORDER BY age) AS _row_number FROM users WHERE _row_number = 1",
	"SELECT users.name AS n FROM users ORDER BY users.age DESC",
	"SELECT   *\n  FROM users\n WHERE tags IN [1, 2]  AND  score >= 1.5",
	"SELECT * FROM users WHERE users.id = 'alice'",
}

func translate(t *testing.T, text string) *Translation {
	t.Helper()
	sel, err := statement.ParseSelect(text)
	require.NoError(t, err, text)
	tr, err := NewTranslator().Translate(sel)
	require.NoError(t, err, text)
	return tr
}

func TestTranslate_Golden(t *testing.T) {
	var b strings.Builder
	for _, text := range translationCases {
		tr := translate(t, text)
		fmt.Fprintf(&b, "sql: %s\n", strings.Join(strings.Fields(text), " "))
		fmt.Fprintf(&b, "gql: %s\n", tr.GQL)
		fmt.Fprintf(&b, "fallback: %t degraded: %t\n\n", tr.NeedsFallback, tr.Degraded)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "translations", []byte(b.String()))
}

func TestTranslate_Idempotent(t *testing.T) {
	for _, text := range translationCases {
		first := translate(t, text)
		second := translate(t, first.GQL)
		assert.Equal(t, first.GQL, second.GQL, text)
	}
}

func TestTranslate_NeedsFallbackOnOr(t *testing.T) {
	tr := translate(t, "SELECT * FROM users WHERE (a = 1 OR b = 2) AND c = 3")
	assert.True(t, tr.NeedsFallback)
	assert.Equal(t, "SELECT * FROM users", tr.BaseQuery)
	require.NotEmpty(t, tr.Warnings)
	assert.Contains(t, tr.Warnings[0], "OR")
	_, ok := tr.Spec.Predicate.(queryir.And)
	assert.True(t, ok)
}

func TestTranslate_PredicateUsesOriginalText(t *testing.T) {
	tr := translate(t, "SELECT * FROM users WHERE data = BLOB('a''b') OR id = 3")
	or, ok := tr.Spec.Predicate.(queryir.Or)
	require.True(t, ok)
	cmp, ok := or.Predicates[1].(queryir.Compare)
	require.True(t, ok)
	assert.Equal(t, "id", cmp.Field)
}

func TestTranslate_RowNumberFilterDroppedFromPredicate(t *testing.T) {
	tr := translate(t, "SELECT name, ROW_NUMBER() OVER (PARTITION BY name) AS rn FROM users WHERE age > 1 AND rn = 1")
	assert.Equal(t, queryir.Compare{Field: "age", Op: queryir.OpGt, Value: ir.Int(1)}, tr.Spec.Predicate)
	assert.Equal(t, []string{"name"}, tr.Output)
	assert.True(t, tr.Degraded)
}

func TestTranslate_WhereNullHasNoPredicate(t *testing.T) {
	tr := translate(t, "SELECT * FROM users WHERE NULL")
	assert.Nil(t, tr.Spec.Predicate)
	assert.Empty(t, tr.Spec.Filter)
}

func TestTranslate_KeyOnlyProjectionNotDegraded(t *testing.T) {
	tr := translate(t, "SELECT id, __key__ FROM users WHERE age > 3")
	assert.False(t, tr.Degraded)
	assert.Equal(t, []string{KeyProperty}, tr.Spec.Projection)
}

func TestTranslate_DegradedDistinctFallsBack(t *testing.T) {
	tr := translate(t, "SELECT DISTINCT name FROM users WHERE age > 3")
	assert.True(t, tr.Degraded)
	assert.True(t, tr.NeedsFallback)
}

func TestTranslate_ComputedColumnRejected(t *testing.T) {
	sel, err := statement.ParseSelect("SELECT age + 1 FROM users")
	require.NoError(t, err)
	_, err = NewTranslator().Translate(sel)
	assert.Error(t, err)
}

func TestTranslate_QuotedKind(t *testing.T) {
	tr := translate(t, "SELECT * FROM `my kind` WHERE id = 1")
	assert.Equal(t, "SELECT * FROM `my kind` WHERE __key__ = KEY('my kind', 1)", tr.GQL)
}

func TestRender_OrderAndPaging(t *testing.T) {
	limit := int64(3)
	got := Render(queryir.Spec{
		Kind:    "tasks",
		OrderBy: []queryir.Order{{Field: "due", Descending: true}, {Field: "title"}},
		Limit:   &limit,
		Offset:  2,
	})
	assert.Equal(t, "SELECT * FROM tasks ORDER BY due DESC, title LIMIT 3 OFFSET 2", got)
}
