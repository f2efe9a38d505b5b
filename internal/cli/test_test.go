package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: passing
fixtures:
  - kind: users
    id: 1
    properties: {name: A, age: 16}
steps:
  - sql: SELECT name FROM users
    expect:
      rows: [[A]]
`

const failingScenario = `
name: failing
steps:
  - sql: SELECT name FROM users
    expect:
      row_count: 3
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := runRoot(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := runRoot(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := runRoot(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandPassAndFail(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a_passing.yaml", passingScenario)
	writeScenario(t, dir, "b_failing.yaml", failingScenario)
	writeScenario(t, dir, "c_broken.yaml", "name: broken\nsteps: []\n")

	out, _, err := runRoot(t, "test", dir, "--workers", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ passing")
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "expected row_count 3, got 0")
	assert.Contains(t, out, "✗ c_broken.yaml")
	assert.Contains(t, out, "Test Summary: 1 passed, 2 failed, 3 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "passing.yaml", passingScenario)
	writeScenario(t, dir, "failing.yaml", failingScenario)

	out, _, err := runRoot(t, "--format", "json", "test", dir, "--filter", "pass*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "passing", resp.Data.Scenarios[0].Name)
}

func TestTestCommandGoldenUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "passing.yaml", passingScenario)

	_, _, err := runRoot(t, "test", dir, "--update")
	require.NoError(t, err)
	golden := goldenFilePath(path)
	require.FileExists(t, golden)

	_, _, err = runRoot(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, _, err := runRoot(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "x.golden"), goldenFilePath(filepath.Join("s", "x.yaml")))
}
