package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/gqlbridge/internal/engine"
	"github.com/roach88/gqlbridge/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Statement or scenario failure
	ExitCommandError = 2 // Command error (bad config, unreadable file, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for diagnostics (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // engine error code or E_COMMAND
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// StatementOutput is the printable outcome of one statement.
type StatementOutput struct {
	Columns   []string     `json:"columns,omitempty"`
	Rows      [][]ir.Value `json:"-"`
	RowCount  int64        `json:"row_count"`
	LastRowID int64        `json:"last_row_id,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// MarshalJSON renders rows as plain JSON values.
func (o StatementOutput) MarshalJSON() ([]byte, error) {
	type plain StatementOutput
	rows := make([][]any, len(o.Rows))
	for i, row := range o.Rows {
		rows[i] = make([]any, len(row))
		for j, v := range row {
			rows[i][j] = ir.Native(v)
		}
	}
	return json.Marshal(struct {
		plain
		Rows [][]any `json:"rows,omitempty"`
	}{plain(o), rows})
}

// collect drains the cursor's current result set into an output.
// warnFrom is the number of cursor warnings that predate the statement.
func collect(cur *engine.Cursor, warnFrom int) (*StatementOutput, error) {
	out := &StatementOutput{
		RowCount:  cur.RowCount(),
		LastRowID: cur.LastRowID(),
	}
	if all := cur.Warnings(); len(all) > warnFrom {
		out.Warnings = all[warnFrom:]
	}
	fields := cur.Description()
	if fields == nil {
		return out, nil
	}
	for _, f := range fields {
		out.Columns = append(out.Columns, f.Name)
	}
	rows, err := cur.FetchAll()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out.Rows = append(out.Rows, []ir.Value(row))
	}
	return out, nil
}

// WriteStatement prints a statement outcome: a table for queries and an
// affected-row summary for writes. Warnings follow on separate lines.
func (f *OutputFormatter) WriteStatement(out *StatementOutput) error {
	if f.Format == "json" {
		return f.Success(out)
	}

	if out.Columns != nil {
		tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(out.Columns, "\t"))
		for _, row := range out.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = ir.Format(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "(%d %s)\n", out.RowCount, plural(out.RowCount, "row"))
	} else {
		fmt.Fprintf(f.Writer, "%d %s affected", out.RowCount, plural(out.RowCount, "row"))
		if out.LastRowID != 0 {
			fmt.Fprintf(f.Writer, ", last id %d", out.LastRowID)
		}
		fmt.Fprintln(f.Writer)
	}
	for _, w := range out.Warnings {
		fmt.Fprintf(f.GetErrWriter(), "warning: %s\n", w)
	}
	return nil
}

// StatementError reports an engine failure and returns the matching exit
// error.
func (f *OutputFormatter) StatementError(err error) error {
	code := "E_COMMAND"
	message := err.Error()
	var ee *engine.Error
	if errors.As(err, &ee) {
		code = string(ee.Code)
		message = ee.Message
		if ee.Err != nil {
			message += ": " + ee.Err.Error()
		}
	}
	if werr := f.Error(code, message, nil); werr != nil {
		return werr
	}
	return WrapExitError(ExitFailure, "statement failed", err)
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
