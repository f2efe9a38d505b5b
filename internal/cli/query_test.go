package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/testutil"
)

// useFakeStore points configuration at a fresh in-memory store through the
// environment.
func useFakeStore(t *testing.T, opts testutil.FakeOptions) *testutil.FakeStore {
	t.Helper()
	fake := testutil.NewFakeStore(opts)
	t.Cleanup(fake.Close)

	cfg := fake.Config()
	t.Setenv("GQLBRIDGE_STORE_BASE_URL", cfg.BaseURL)
	t.Setenv("GQLBRIDGE_STORE_PROJECT_ID", cfg.ProjectID)
	t.Setenv("GQLBRIDGE_LOG_LEVEL", "ERROR")

	fake.Put(ir.Key{{Kind: "users", ID: 1}}, ir.Entity{"name": ir.String("A"), "age": ir.Int(16)})
	fake.Put(ir.Key{{Kind: "users", ID: 2}}, ir.Entity{"name": ir.String("B"), "age": ir.Int(14)})
	return fake
}

func TestQuery_Rows(t *testing.T) {
	useFakeStore(t, testutil.FakeOptions{})

	out, _, err := runRoot(t, "query", "SELECT name FROM users ORDER BY age")
	require.NoError(t, err)
	assert.Equal(t, "name\n'B'\n'A'\n(2 rows)\n", out)
}

func TestQuery_FallbackWarning(t *testing.T) {
	useFakeStore(t, testutil.FakeOptions{RejectOr: true})

	out, errOut, err := runRoot(t, "query", "SELECT name FROM users WHERE age = 14 OR name = 'A' ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, "name\n'A'\n'B'\n(2 rows)\n", out)
	assert.Contains(t, errOut, "warning: ")
}

func TestQuery_JSON(t *testing.T) {
	useFakeStore(t, testutil.FakeOptions{})

	out, _, err := runRoot(t, "--format", "json", "query", "SELECT age FROM users WHERE name = :name", "-p", "name='A'")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Rows     [][]any `json:"rows"`
			RowCount int64   `json:"row_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, [][]any{{16.0}}, resp.Data.Rows)
	assert.Equal(t, int64(1), resp.Data.RowCount)
}

func TestQuery_GQL(t *testing.T) {
	fake := useFakeStore(t, testutil.FakeOptions{})

	out, _, err := runRoot(t, "query", "--gql", "SELECT * FROM users WHERE age = 14")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY(users, 2)")
	assert.Contains(t, out, "(1 row)")

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "SELECT * FROM users WHERE age = 14", calls[0].GQL)
}

func TestQuery_StatementError(t *testing.T) {
	useFakeStore(t, testutil.FakeOptions{})

	out, _, err := runRoot(t, "query", "DROP TABLE users")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [PROGRAMMING_ERROR]")
}

func TestQuery_ConfigError(t *testing.T) {
	t.Setenv("GQLBRIDGE_STORE_PROJECT_ID", "")

	_, _, err := runRoot(t, "query", "SELECT * FROM users")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestExec_Insert(t *testing.T) {
	fake := useFakeStore(t, testutil.FakeOptions{})

	out, _, err := runRoot(t, "exec", "INSERT INTO users (name, age) VALUES ('C', 28)")
	require.NoError(t, err)
	assert.Equal(t, "1 row affected, last id 5001\n", out)
	assert.Equal(t, 3, fake.Count("users"))
}

func TestExec_Batch(t *testing.T) {
	fake := useFakeStore(t, testutil.FakeOptions{})

	batch := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("- {name: C}\n- {name: D}\n- {name: E}\n"), 0644))

	out, _, err := runRoot(t, "exec", "INSERT INTO users (name) VALUES (:name)", "--batch", batch)
	require.NoError(t, err)
	assert.Equal(t, "3 rows affected, last id 5003\n", out)
	assert.Equal(t, 5, fake.Count("users"))
}

func TestExec_BatchRejectsQueries(t *testing.T) {
	useFakeStore(t, testutil.FakeOptions{})

	batch := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("- {age: 1}\n"), 0644))

	out, _, err := runRoot(t, "exec", "SELECT * FROM users WHERE age = :age", "--batch", batch)
	require.Error(t, err)
	assert.Contains(t, out, "Error [NOT_SUPPORTED]")
}

func TestLoadBatch_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0644))

	_, err := loadBatch(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parameter sets")
}
