package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/engine"
	"github.com/roach88/gqlbridge/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("DATA_ERROR", "bad key", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DATA_ERROR", resp.Error.Code)
	assert.Equal(t, "bad key", resp.Error.Message)
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("E_COMMAND", "failed", map[string]string{"file": "x.yaml"}))
	assert.Contains(t, buf.String(), "Error [E_COMMAND]: failed")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: errBuf, Verbose: tt.verbose}

			formatter.VerboseLog("executing %d parameter sets", 3)

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "executing 3 parameter sets")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestWriteStatement_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, ErrWriter: errBuf}

	out := &StatementOutput{
		Columns:  []string{"name", "age"},
		Rows:     [][]ir.Value{{ir.String("A"), ir.Int(16)}, {ir.String("Bo"), ir.Null{}}},
		RowCount: 2,
		Warnings: []string{"scanned 3 entities"},
	}
	require.NoError(t, formatter.WriteStatement(out))

	assert.Equal(t, "name  age\n'A'   16\n'Bo'  NULL\n(2 rows)\n", buf.String())
	assert.Equal(t, "warning: scanned 3 entities\n", errBuf.String())
}

func TestWriteStatement_Write(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.WriteStatement(&StatementOutput{RowCount: 1, LastRowID: 5001}))
	assert.Equal(t, "1 row affected, last id 5001\n", buf.String())
}

func TestWriteStatement_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	out := &StatementOutput{
		Columns:  []string{"key", "age"},
		Rows:     [][]ir.Value{{ir.Key{{Kind: "users", ID: 1}}, ir.Double(2)}},
		RowCount: 1,
	}
	require.NoError(t, formatter.WriteStatement(out))

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Columns  []string `json:"columns"`
			Rows     [][]any  `json:"rows"`
			RowCount int64    `json:"row_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"key", "age"}, resp.Data.Columns)
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, 2.0, resp.Data.Rows[0][1])
	assert.Equal(t, int64(1), resp.Data.RowCount)
}

func TestStatementError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := &engine.Error{Code: engine.ErrCodeProgramming, Message: "read statement", Err: errors.New("unexpected FROM")}
	err := formatter.StatementError(fmt.Errorf("wrapped: %w", cause))

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Error [PROGRAMMING_ERROR]: read statement: unexpected FROM\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
