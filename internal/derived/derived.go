package derived

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xwb1989/sqlparser"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/querysql"
	"github.com/roach88/gqlbridge/internal/statement"
)

// Executor runs the outer part of a derived-table query over the rows the
// inner query produced, using an in-memory SQLite database per statement.
type Executor struct {
	logger *slog.Logger
}

// New creates an Executor. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute loads inner into a temporary table named statement.DerivedTable
// and runs outer against it.
//
// outer is an ordinary SELECT over that table: grouping, aggregates
// (COUNT(DISTINCT col) included), ordering and LIMIT run in the tabular
// engine. Computed select-list expressions that fail to evaluate are
// dropped with a log line. The key column may be referenced as key, id or
// __key__.
func (e *Executor) Execute(ctx context.Context, outer string, inner *materialize.Result) (*materialize.Result, error) {
	stmt, err := parseOuter(outer)
	if err != nil {
		return nil, err
	}

	db, err := openMemory(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	compiler := querysql.NewSQLCompiler()
	if err := load(ctx, db, compiler, inner); err != nil {
		return nil, err
	}

	e.dropUnevaluable(ctx, db, stmt)
	query := sqlparser.String(stmt)
	e.logger.Debug("derived query", "sql", query, "rows", len(inner.Rows))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("derived query: %w", err)
	}
	defer rows.Close()

	return scan(rows, compiler, typeHints(inner))
}

// openMemory opens a private in-memory database. A single connection keeps
// the database alive for the statement's lifetime.
func openMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open tabular engine: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to tabular engine: %w", err)
	}
	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA temp_store = MEMORY",
		"PRAGMA case_sensitive_like = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// load creates the temporary table and inserts every row in one transaction.
func load(ctx context.Context, db *sql.DB, compiler *querysql.SQLCompiler, inner *materialize.Result) error {
	columns := inner.Names()
	if len(columns) == 0 {
		columns = []string{materialize.KeyColumn}
	}
	ddl, err := compiler.CreateTable(statement.DerivedTable, columns)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create derived table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, compiler.Insert(statement.DerivedTable, columns))
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}
	defer insert.Close()

	for i, row := range inner.Rows {
		if _, err := insert.ExecContext(ctx, compiler.Params(row)...); err != nil {
			return fmt.Errorf("load row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// parseOuter parses the outer statement and maps key column spellings.
func parseOuter(outer string) (*sqlparser.Select, error) {
	parsed, err := sqlparser.Parse(quoteKeyIdents(outer))
	if err != nil {
		return nil, &statement.Error{Pos: -1, Message: fmt.Sprintf("derived query: %v", err)}
	}
	sel, ok := parsed.(*sqlparser.Select)
	if !ok {
		return nil, &statement.Error{Pos: -1, Message: "derived query must be a SELECT"}
	}
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.ColName:
			if materialize.IsKeyName(n.Name.Lowered()) {
				n.Name = sqlparser.NewColIdent(materialize.KeyColumn)
			}
		case *sqlparser.Subquery:
			return false, nil
		}
		return true, nil
	}, sel)
	return sel, nil
}

// quoteKeyIdents backquotes bare key column references, which sqlparser
// otherwise reads as the KEY keyword. Text that does not lex is returned
// unchanged for the parser to report.
func quoteKeyIdents(outer string) string {
	toks, err := statement.Lex(outer)
	if err != nil {
		return outer
	}
	var b strings.Builder
	last := 0
	for i, tok := range toks {
		if tok.Kind != queryir.TokenIdent || tok.Quote != 0 || !strings.EqualFold(tok.Text, materialize.KeyColumn) {
			continue
		}
		if i+1 < len(toks) && toks[i+1].Is("(") {
			continue
		}
		if i > 0 && toks[i-1].Is(".") {
			continue
		}
		b.WriteString(outer[last:tok.Pos])
		b.WriteString("`" + materialize.KeyColumn + "`")
		last = tok.End
	}
	if last == 0 {
		return outer
	}
	b.WriteString(outer[last:])
	return b.String()
}

// dropUnevaluable probes each computed select expression on its own and
// removes those SQLite rejects.
func (e *Executor) dropUnevaluable(ctx context.Context, db *sql.DB, sel *sqlparser.Select) {
	kept := sel.SelectExprs[:0:0]
	for _, expr := range sel.SelectExprs {
		aliased, ok := expr.(*sqlparser.AliasedExpr)
		if !ok || isPlain(aliased.Expr) {
			kept = append(kept, expr)
			continue
		}
		probe := &sqlparser.Select{
			SelectExprs: sqlparser.SelectExprs{aliased},
			From:        sel.From,
			Limit:       &sqlparser.Limit{Rowcount: sqlparser.NewIntVal([]byte("1"))},
		}
		rows, err := db.QueryContext(ctx, sqlparser.String(probe))
		if err != nil {
			e.logger.Warn("skipping unevaluable column",
				"expr", sqlparser.String(aliased.Expr),
				"error", err,
			)
			continue
		}
		rows.Close()
		kept = append(kept, expr)
	}
	if len(kept) == 0 {
		kept = sqlparser.SelectExprs{&sqlparser.StarExpr{}}
	}
	sel.SelectExprs = kept
}

func isPlain(expr sqlparser.Expr) bool {
	switch expr.(type) {
	case *sqlparser.ColName, *sqlparser.SQLVal:
		return true
	}
	return false
}

// typeHints maps inner column names to their types so booleans can be
// restored from SQLite integers.
func typeHints(inner *materialize.Result) map[string]ir.Type {
	hints := make(map[string]ir.Type, len(inner.Fields))
	for _, f := range inner.Fields {
		hints[strings.ToLower(f.Name)] = f.Type
	}
	return hints
}

func scan(rows *sql.Rows, compiler *querysql.SQLCompiler, hints map[string]ir.Type) (*materialize.Result, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("derived columns: %w", err)
	}

	var out []materialize.Row
	for rows.Next() {
		raw := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan derived row: %w", err)
		}
		row := make(materialize.Row, len(names))
		for i, v := range raw {
			row[i] = compiler.Restore(v, hints[strings.ToLower(names[i])])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate derived rows: %w", err)
	}
	return &materialize.Result{Fields: materialize.Describe(names, out), Rows: out}, nil
}
