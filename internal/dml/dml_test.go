package dml

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
	"github.com/roach88/gqlbridge/internal/store"
	"github.com/roach88/gqlbridge/internal/testutil"
	"github.com/roach88/gqlbridge/internal/wire"
)

func setup(t *testing.T) (*testutil.FakeStore, *Executor) {
	t.Helper()
	fake := testutil.NewFakeStore(testutil.FakeOptions{})
	t.Cleanup(fake.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fake, New(store.NewClient(fake.Config()), wire.NewDecoder(), logger)
}

func classify[T queryir.Statement](t *testing.T, text string) T {
	t.Helper()
	st, err := statement.Classify(text)
	require.NoError(t, err)
	out, ok := st.(T)
	require.True(t, ok, "got %T", st)
	return out
}

func TestInsert_StoreAssignsID(t *testing.T) {
	fake, exec := setup(t)

	ins := classify[*queryir.Insert](t, "INSERT INTO tasks (task, reward) VALUES ('Write tests', 42.5)")
	res, err := exec.Insert(context.Background(), ins)
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, int64(testutil.DefaultIDBase+1), res.LastRowID)

	props, ok := fake.Get(res.LastKey)
	require.True(t, ok)
	assert.Equal(t, ir.String("Write tests"), props["task"])
	assert.Equal(t, ir.Double(42.5), props["reward"])
}

func TestInsert_ExplicitKeys(t *testing.T) {
	fake, exec := setup(t)

	ins := classify[*queryir.Insert](t, "INSERT INTO users (id, name) VALUES (7, 'x'), ('alice', 'y')")
	res, err := exec.Insert(context.Background(), ins)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, ir.Key{{Kind: "users", Name: "alice"}}, res.LastKey)
	assert.Zero(t, res.LastRowID)

	props, ok := fake.Get(ir.Key{{Kind: "users", ID: 7}})
	require.True(t, ok)
	assert.NotContains(t, props, "id")
}

func TestInsert_InvalidKey(t *testing.T) {
	_, exec := setup(t)

	ins := classify[*queryir.Insert](t, "INSERT INTO users (id, name) VALUES (1.5, 'x')")
	_, err := exec.Insert(context.Background(), ins)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestUpdate_PreservesUntouchedProperties(t *testing.T) {
	fake, exec := setup(t)
	key := ir.Key{{Kind: "users", ID: 3}}
	fake.Put(key, ir.Entity{"name": ir.String("C"), "age": ir.Int(20)})

	up := classify[*queryir.Update](t, "UPDATE users SET age = 25 WHERE id = 3")
	res, err := exec.Update(context.Background(), up)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowCount)

	props, _ := fake.Get(key)
	assert.Equal(t, ir.Entity{"name": ir.String("C"), "age": ir.Int(25)}, props)
}

func TestUpdate_MissingEntity(t *testing.T) {
	fake, exec := setup(t)

	up := classify[*queryir.Update](t, "UPDATE users SET age = 25 WHERE id = 404")
	res, err := exec.Update(context.Background(), up)
	require.NoError(t, err)
	assert.Zero(t, res.RowCount)
	assert.Zero(t, fake.Count("users"))
}

func TestDelete(t *testing.T) {
	fake, exec := setup(t)
	fake.Put(ir.Key{{Kind: "users", Name: "bob"}}, ir.Entity{"age": ir.Int(1)})

	del := classify[*queryir.Delete](t, "DELETE FROM users WHERE id = 'bob'")
	res, err := exec.Delete(context.Background(), del)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Zero(t, fake.Count("users"))

	res, err = exec.Delete(context.Background(), del)
	require.NoError(t, err)
	assert.Zero(t, res.RowCount)
}

func TestWrite_RemoteFailure(t *testing.T) {
	fake, exec := setup(t)
	fake.FailNext(store.MethodCommit, 503, "UNAVAILABLE", "down")

	ins := classify[*queryir.Insert](t, "INSERT INTO users (name) VALUES ('x')")
	_, err := exec.Insert(context.Background(), ins)
	require.Error(t, err)
	_, ok := store.IsFailure(err)
	assert.True(t, ok)
}
