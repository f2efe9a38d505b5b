package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "INFO", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("query evaluated locally", "kind", "users", "scanned", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "query evaluated locally", rec["msg"])
	assert.Equal(t, "users", rec["kind"])
	assert.Equal(t, 3.0, rec["scanned"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "DEBUG"}, &buf)

	logger.Debug("translated query", "gql", "SELECT * FROM users")
	assert.Contains(t, buf.String(), `msg="translated query"`)
	assert.Contains(t, buf.String(), `gql="SELECT * FROM users"`)
}
