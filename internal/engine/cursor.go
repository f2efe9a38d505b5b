package engine

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
)

// Cursor is a per-statement row iterator in the DB-API style.
//
// Rows are consumed forward-only. Warnings accumulate across every statement
// the cursor executes. A Cursor is not safe for concurrent use.
type Cursor struct {
	// ID identifies the cursor in logs.
	ID string

	// ArraySize is the default batch size of FetchMany. Zero means 1.
	ArraySize int

	engine      *Engine
	rows        *materialize.Result
	pos         int
	rowCount    int64
	lastRowID   int64
	fingerprint string
	warnings    []string
	closed      bool
}

// Cursor opens a new cursor.
func (e *Engine) Cursor() *Cursor {
	c := &Cursor{
		ID:       uuid.NewString(),
		engine:   e,
		rowCount: -1,
	}
	e.logger.Debug("cursor opened", "cursor", c.ID)
	return c
}

// Execute runs one statement. Any unread rows of the previous statement are
// discarded.
func (c *Cursor) Execute(ctx context.Context, text string, params map[string]any) error {
	if c.closed {
		return errCursorClosed
	}
	c.reset()
	res, err := c.engine.Execute(ctx, text, params)
	if err != nil {
		return err
	}
	c.load(res)
	return nil
}

// ExecuteMany runs a write once per parameter set. RowCount is the total
// number of affected entities and LastRowID comes from the last insert.
// Queries are not accepted.
func (c *Cursor) ExecuteMany(ctx context.Context, text string, seq []map[string]any) error {
	if c.closed {
		return errCursorClosed
	}
	c.reset()

	var total int64
	for _, params := range seq {
		bound, err := statement.Bind(text, params)
		if err != nil {
			return classify(err, "bind parameters")
		}
		stmt, err := statement.Classify(bound)
		if err != nil {
			return classify(err, "read statement")
		}
		switch stmt.(type) {
		case *queryir.Insert, *queryir.Update, *queryir.Delete:
		default:
			return newError(ErrCodeNotSupported, nil, "ExecuteMany accepts only INSERT, UPDATE and DELETE")
		}

		res, err := c.engine.Execute(ctx, bound, nil)
		if err != nil {
			return err
		}
		total += res.RowCount
		if res.LastRowID != 0 {
			c.lastRowID = res.LastRowID
		}
		c.fingerprint = res.Fingerprint
		c.warnings = append(c.warnings, res.Warnings...)
	}
	c.rowCount = total
	return nil
}

// ExecuteGQL runs native GQL text without translation.
func (c *Cursor) ExecuteGQL(ctx context.Context, gql string) error {
	if c.closed {
		return errCursorClosed
	}
	c.reset()
	res, err := c.engine.ExecuteGQL(ctx, gql)
	if err != nil {
		return err
	}
	c.load(res)
	return nil
}

func (c *Cursor) reset() {
	c.rows = nil
	c.pos = 0
	c.rowCount = -1
	c.lastRowID = 0
	c.fingerprint = ""
}

func (c *Cursor) load(res *Result) {
	c.rows = res.Rows
	c.rowCount = res.RowCount
	c.lastRowID = res.LastRowID
	c.fingerprint = res.Fingerprint
	c.warnings = append(c.warnings, res.Warnings...)
	c.engine.logger.Debug("cursor loaded",
		"cursor", c.ID,
		"fingerprint", c.fingerprint,
		"row_count", c.rowCount,
	)
}

func (c *Cursor) resultSet() (*materialize.Result, error) {
	if c.closed {
		return nil, errCursorClosed
	}
	if c.rows == nil {
		return nil, &Error{Code: ErrCodeInterface, Message: "no result set to fetch from"}
	}
	return c.rows, nil
}

// FetchOne returns the next row, or nil when the rows are exhausted.
func (c *Cursor) FetchOne() (materialize.Row, error) {
	rows, err := c.resultSet()
	if err != nil {
		return nil, err
	}
	if c.pos >= len(rows.Rows) {
		return nil, nil
	}
	row := rows.Rows[c.pos]
	c.pos++
	return row, nil
}

// FetchMany returns up to n rows. n <= 0 uses ArraySize.
func (c *Cursor) FetchMany(n int) ([]materialize.Row, error) {
	rows, err := c.resultSet()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = max(c.ArraySize, 1)
	}
	end := min(c.pos+n, len(rows.Rows))
	out := slices.Clip(rows.Rows[c.pos:end])
	c.pos = end
	return out, nil
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll() ([]materialize.Row, error) {
	rows, err := c.resultSet()
	if err != nil {
		return nil, err
	}
	out := slices.Clip(rows.Rows[c.pos:])
	c.pos = len(rows.Rows)
	return out, nil
}

// Description returns the columns of the current result set, or nil when
// the last statement was a write or nothing has run.
func (c *Cursor) Description() []materialize.Field {
	if c.rows == nil {
		return nil
	}
	return c.rows.Fields
}

// RowCount is the number of rows the last statement returned or affected,
// or -1 before any statement has run.
func (c *Cursor) RowCount() int64 {
	return c.rowCount
}

// LastRowID is the integer id of the last inserted entity, or 0.
func (c *Cursor) LastRowID() int64 {
	return c.lastRowID
}

// Fingerprint identifies the last executed statement text.
func (c *Cursor) Fingerprint() string {
	return c.fingerprint
}

// Warnings returns every warning accumulated on the cursor.
func (c *Cursor) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// Close releases the result set. Every later call except Close fails with
// an interface error.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.rows = nil
	c.engine.logger.Debug("cursor closed", "cursor", c.ID)
	return nil
}
