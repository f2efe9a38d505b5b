package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/gqlbridge/internal/derived"
	"github.com/roach88/gqlbridge/internal/dml"
	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/metrics"
	"github.com/roach88/gqlbridge/internal/querygql"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
	"github.com/roach88/gqlbridge/internal/store"
	"github.com/roach88/gqlbridge/internal/wire"
)

// Store is the remote surface the engine executes against.
// *store.Client implements it.
type Store interface {
	RunQuery(ctx context.Context, gql string) (*store.QueryResult, error)
	RunAggregationQuery(ctx context.Context, gql string) ([]wire.AggregationResult, error)
	dml.Store
}

// Statement kinds used as metric labels.
const (
	kindSelect    = "select"
	kindAggregate = "aggregate"
	kindDerived   = "derived"
	kindInsert    = "insert"
	kindUpdate    = "update"
	kindDelete    = "delete"
	kindGQL       = "gql"
)

// Engine executes relational statements against a remote document store.
//
// Each statement is classified once, translated to native GQL and run
// remotely. Rejected queries are retried exactly once as a full-kind scan
// evaluated locally, and the cost of doing so is reported as a warning on
// the result.
//
// Thread-safety model:
//   - Engine holds only immutable collaborators and is safe to share
//   - every Execute owns its query and rows exclusively
//   - Cursor is not safe for concurrent use
type Engine struct {
	store       Store
	translator  *querygql.Translator
	decoder     *wire.Decoder
	materialize *materialize.Materializer
	derived     *derived.Executor
	dml         *dml.Executor
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the collectors the engine reports to.
// Default: collectors on a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDecoder sets the wire value decoder. Default: wire.NewDecoder().
func WithDecoder(dec *wire.Decoder) Option {
	return func(e *Engine) {
		e.decoder = dec
	}
}

// New creates an Engine over s.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		translator: querygql.NewTranslator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.decoder == nil {
		e.decoder = wire.NewDecoder()
	}
	if e.metrics == nil {
		e.metrics = metrics.New(prometheus.NewRegistry())
	}
	e.materialize = materialize.New(e.decoder)
	e.derived = derived.New(e.logger)
	e.dml = dml.New(s, e.decoder, e.logger)
	return e
}

// Result is the outcome of one statement.
//
// Rows is nil for writes. RowCount is the number of rows returned by a
// query, or the number of entities a write affected. LastRowID is the
// integer id of the last inserted entity.
type Result struct {
	Rows        *materialize.Result
	RowCount    int64
	LastRowID   int64
	LastKey     ir.Key
	Warnings    []string
	Fingerprint string
}

// Execute binds params into text, classifies the statement and runs it.
func (e *Engine) Execute(ctx context.Context, text string, params map[string]any) (*Result, error) {
	bound, err := statement.Bind(text, params)
	if err != nil {
		return nil, classify(err, "bind parameters")
	}
	fp := ir.Fingerprint(bound)
	logger := e.logger.With("fingerprint", fp)

	stmt, err := statement.Classify(bound)
	if err != nil {
		return nil, classify(err, "read statement")
	}

	var (
		res  *Result
		kind string
	)
	switch s := stmt.(type) {
	case *queryir.Select:
		kind = kindSelect
		res, err = e.execSelect(ctx, logger, s)
	case *queryir.Aggregate:
		kind = kindAggregate
		res, err = e.execAggregate(ctx, logger, s)
	case *queryir.Derived:
		kind = kindDerived
		res, err = e.execDerived(ctx, logger, s)
	case *queryir.Insert:
		kind = kindInsert
		res, err = e.execInsert(ctx, s)
	case *queryir.Update:
		kind = kindUpdate
		res, err = e.execUpdate(ctx, s)
	case *queryir.Delete:
		kind = kindDelete
		res, err = e.execDelete(ctx, s)
	default:
		return nil, newError(ErrCodeNotSupported, nil, "statement type %T", stmt)
	}
	if err != nil {
		e.metrics.RecordStatement(kind, "error")
		logger.Debug("statement failed", "kind", kind, "error", err)
		return nil, err
	}

	res.Fingerprint = fp
	outcome := "ok"
	if len(res.Warnings) > 0 {
		outcome = "warning"
	}
	e.metrics.RecordStatement(kind, outcome)
	logger.Debug("statement executed", "kind", kind, "rows", res.RowCount)
	return res, nil
}

// ExecuteGQL runs native GQL text as-is, without translation or fallback.
// AGGREGATE text runs as an aggregation and yields one row whose columns
// are the result's property names, sorted.
func (e *Engine) ExecuteGQL(ctx context.Context, gql string) (*Result, error) {
	fp := ir.Fingerprint(gql)
	toks, err := statement.Lex(gql)
	if err != nil {
		return nil, classify(err, "read query")
	}
	if len(toks) == 0 {
		return nil, newError(ErrCodeProgramming, nil, "empty query")
	}

	var (
		rows     *materialize.Result
		warnings []string
	)
	if toks[0].Is("AGGREGATE") {
		rows, err = e.remoteAggregation(ctx, gql)
	} else {
		rows, warnings, err = e.remoteRows(ctx, gql)
	}
	if err != nil {
		e.metrics.RecordStatement(kindGQL, "error")
		return nil, err
	}
	e.metrics.RecordStatement(kindGQL, "ok")
	e.logger.Debug("gql executed", "fingerprint", fp, "rows", len(rows.Rows))
	return &Result{Rows: rows, RowCount: int64(len(rows.Rows)), Warnings: warnings, Fingerprint: fp}, nil
}

// remoteRows runs gql and materializes every returned entity.
func (e *Engine) remoteRows(ctx context.Context, gql string) (*materialize.Result, []string, error) {
	qr, err := e.store.RunQuery(ctx, gql)
	if err != nil {
		return nil, nil, classify(err, "run query")
	}
	rows, err := e.materialize.Parse(qr.Entities, nil)
	if err != nil {
		return nil, nil, newError(ErrCodeData, err, "materialize results")
	}
	var warnings []string
	if qr.Truncated {
		warnings = append(warnings, fmt.Sprintf("query stopped after %d pages; results are partial", qr.Pages))
	}
	return rows, warnings, nil
}

func (e *Engine) remoteAggregation(ctx context.Context, gql string) (*materialize.Result, error) {
	results, err := e.store.RunAggregationQuery(ctx, gql)
	if err != nil {
		return nil, classify(err, "run aggregation")
	}
	row := materialize.Row{}
	var names []string
	if len(results) > 0 {
		props, err := e.decoder.Properties(results[0].AggregateProperties)
		if err != nil {
			return nil, newError(ErrCodeData, err, "decode aggregation")
		}
		names = props.SortedKeys()
		for _, name := range names {
			row = append(row, props[name])
		}
	}
	rows := []materialize.Row{row}
	return &materialize.Result{Fields: materialize.Describe(names, rows), Rows: rows}, nil
}

func rowsResult(rows *materialize.Result, warnings []string) *Result {
	return &Result{Rows: rows, RowCount: int64(len(rows.Rows)), Warnings: warnings}
}

func (e *Engine) execInsert(ctx context.Context, ins *queryir.Insert) (*Result, error) {
	out, err := e.dml.Insert(ctx, ins)
	if err != nil {
		return nil, classify(err, "insert into %s", ins.Kind)
	}
	return &Result{RowCount: out.RowCount, LastRowID: out.LastRowID, LastKey: out.LastKey}, nil
}

func (e *Engine) execUpdate(ctx context.Context, up *queryir.Update) (*Result, error) {
	out, err := e.dml.Update(ctx, up)
	if err != nil {
		return nil, classify(err, "update %s", up.Kind)
	}
	return &Result{RowCount: out.RowCount}, nil
}

func (e *Engine) execDelete(ctx context.Context, del *queryir.Delete) (*Result, error) {
	out, err := e.dml.Delete(ctx, del)
	if err != nil {
		return nil, classify(err, "delete from %s", del.Kind)
	}
	return &Result{RowCount: out.RowCount}, nil
}

func (e *Engine) execDerived(ctx context.Context, logger *slog.Logger, d *queryir.Derived) (*Result, error) {
	inner, err := e.selectRows(ctx, logger, d.Inner)
	if err != nil {
		return nil, err
	}
	rows, err := e.derived.Execute(ctx, d.Outer, inner.rows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(ErrCodeOperational, err, "derived query")
		}
		return nil, newError(ErrCodeProgramming, err, "derived query")
	}
	return rowsResult(rows, inner.warnings), nil
}
