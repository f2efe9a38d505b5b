package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "gqlbridge.yaml", `
store:
  base_url: https://datastore.googleapis.com
  project_id: demo
  timeout: 5s
  requests_per_second: 20
  burst: 5
log:
  level: debug
  format: JSON
workers: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://datastore.googleapis.com", cfg.Store.BaseURL)
	assert.Equal(t, "demo", cfg.Store.ProjectID)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.True(t, cfg.Store.AllowLiterals)
	assert.Equal(t, 100, cfg.Store.MaxPages)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Workers)

	client := cfg.ClientConfig()
	assert.Equal(t, 20.0, client.RequestsPerSecond)
	assert.Equal(t, 5, client.Burst)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GQLBRIDGE_STORE_PROJECT_ID", "from-env")
	t.Setenv("GQLBRIDGE_STORE_ALLOW_LITERALS", "false")
	t.Setenv("GQLBRIDGE_WORKERS", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Store.ProjectID)
	assert.False(t, cfg.Store.AllowLiterals)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "http://localhost:8081", cfg.Store.BaseURL)
}

func TestLoad_SchemaRejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing project", "store: {base_url: 'http://localhost:8081'}", "store.project_id"},
		{"bad url", "store: {project_id: p, base_url: 'ftp://x'}", "store.base_url"},
		{"bad level", "store: {project_id: p}\nlog: {level: loud}", "log.level"},
		{"too many workers", "store: {project_id: p}\nworkers: 1000", "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_FieldOmitsDefinition(t *testing.T) {
	cfg := Config{Workers: 4}
	cfg.Store.BaseURL = "http://localhost:8081"
	cfg.Store.MaxPages = 1
	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"
	err := Validate(&cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "store.project_id", verr.Field)
	assert.NotContains(t, err.Error(), "#Config")
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "log.level", fieldPath([]string{"#Config", "log", "level"}))
	assert.Equal(t, "workers", fieldPath([]string{"workers"}))
	assert.Equal(t, "", fieldPath(nil))
}
