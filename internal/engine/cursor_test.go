package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/testutil"
)

func TestCursor_Fetch(t *testing.T) {
	f := setupEngine(t, testutil.FakeOptions{})
	seedUsers(f)
	ctx := context.Background()

	cur := f.engine.Cursor()
	assert.NotEmpty(t, cur.ID)
	assert.Equal(t, int64(-1), cur.RowCount())
	assert.Nil(t, cur.Description())

	_, err := cur.FetchOne()
	assert.True(t, IsInterfaceError(err))

	require.NoError(t, cur.Execute(ctx, "SELECT name, age FROM users ORDER BY age", nil))
	assert.Equal(t, int64(3), cur.RowCount())
	require.Len(t, cur.Description(), 2)
	assert.Equal(t, "name", cur.Description()[0].Name)
	assert.Equal(t, ir.TypeInt, cur.Description()[1].Type)

	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, ir.String("B"), row[0])

	// FetchMany with no size uses ArraySize, 1 when unset.
	rows, err := cur.FetchMany(0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.String("A"), rows[0][0])

	rows, err = cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.String("C"), rows[0][0])

	row, err = cur.FetchOne()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCursor_AppendingToFetchedRowsKeepsUnread(t *testing.T) {
	f := setupEngine(t, testutil.FakeOptions{})
	seedUsers(f)

	cur := f.engine.Cursor()
	require.NoError(t, cur.Execute(context.Background(), "SELECT name FROM users ORDER BY age", nil))

	rows, err := cur.FetchMany(1)
	require.NoError(t, err)
	grown := append(rows, materialize.Row{ir.String("Z")})
	require.Len(t, grown, 2)

	rest, err := cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ir.String("A"), rest[0][0])
	assert.Equal(t, ir.String("C"), rest[1][0])
}

func TestCursor_ArraySize(t *testing.T) {
	f := setupEngine(t, testutil.FakeOptions{})
	seedUsers(f)

	cur := f.engine.Cursor()
	cur.ArraySize = 2
	require.NoError(t, cur.Execute(context.Background(), "SELECT * FROM users", nil))

	rows, err := cur.FetchMany(0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	rows, err = cur.FetchMany(0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCursor_WarningsAccumulate(t *testing.T) {
	f := setupEngine(t, testutil.FakeOptions{RejectOr: true})
	seedUsers(f)
	ctx := context.Background()

	cur := f.engine.Cursor()
	require.NoError(t, cur.Execute(ctx, "SELECT * FROM users WHERE age = 14 OR age = 16", nil))
	first := len(cur.Warnings())
	require.Positive(t, first)

	require.NoError(t, cur.Execute(ctx, "SELECT * FROM users WHERE name = 'A' OR name = 'C'", nil))
	assert.Greater(t, len(cur.Warnings()), first)
}

func TestCursor_Writes(t *testing.T) {
	f := setupEngine(t, testutil.FakeOptions{})
	ctx := context.Background()

	cur := f.engine.Cursor()
	require.NoError(t, cur.Execute(ctx, "INSERT INTO users (id, name) VALUES (7, 'G')", nil))
	assert.Equal(t, int64(1), cur.RowCount())
	assert.Equal(t, int64(7), cur.LastRowID())
	assert.Nil(t, cur.Description())
	_, err := cur.FetchAll()
	assert.True(t, IsInterfaceError(err))

	err = cur.ExecuteMany(ctx, "INSERT INTO users (name) VALUES (:name)", []map[string]any{
		{"name": "H"},
		{"name": "I"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur.RowCount())
	assert.Equal(t, int64(testutil.DefaultIDBase+2), cur.LastRowID())
	assert.Equal(t, 3, f.fake.Count("users"))

	err = cur.ExecuteMany(ctx, "SELECT * FROM users WHERE name = :name", []map[string]any{{"name": "H"}})
	assert.True(t, IsNotSupported(err))
}

func TestCursor_Closed(t *testing.T) {
	f := setupEngine(t, testutil.FakeOptions{})
	seedUsers(f)
	ctx := context.Background()

	cur := f.engine.Cursor()
	require.NoError(t, cur.Execute(ctx, "SELECT * FROM users", nil))
	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())

	_, err := cur.FetchOne()
	assert.True(t, IsInterfaceError(err))
	assert.EqualError(t, err, "INTERFACE_ERROR: cursor is closed")

	err = cur.Execute(ctx, "SELECT * FROM users", nil)
	assert.True(t, IsInterfaceError(err))
	err = cur.ExecuteGQL(ctx, "SELECT * FROM users")
	assert.True(t, IsInterfaceError(err))
}
