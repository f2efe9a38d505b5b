package queryir

import "github.com/roach88/gqlbridge/internal/ir"

// Statement is a classified relational statement.
//
// This is a sealed interface - only types in this package implement it.
// A statement is classified exactly once, when its text is read; every later
// stage switches over the concrete variant instead of re-inspecting text.
//
// Statement types:
//   - Select: a plain query against one kind
//   - Aggregate: COUNT/COUNT_UP_TO/SUM/AVG over a query, in either the
//     SELECT <agg> FROM form or the AGGREGATE ... OVER (...) form
//   - Derived: an outer query over a single subquery in FROM
//   - Insert, Update, Delete: single-entity writes
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenIdent    TokenKind = iota // column, kind or function name
	TokenKeyword                   // reserved word, stored upper-cased
	TokenString                    // quoted string literal, Text is unescaped
	TokenNumber                    // integer or decimal literal
	TokenParam                     // :name placeholder, Text excludes the colon
	TokenOperator                  // = != <> < <= > >=
	TokenPunct                     // ( ) [ ] , . *
)

// Token is one lexical unit of statement text.
//
// Pos and End are byte offsets into the source text. Tokens created by rewrites
// have Pos == End == -1.
type Token struct {
	Kind  TokenKind
	Text  string
	Quote byte // quote character for strings and quoted identifiers, 0 otherwise
	Pos   int
	End   int
}

// Is reports whether the token is the given keyword or punctuation.
// Keywords are compared upper-cased.
func (t Token) Is(text string) bool {
	switch t.Kind {
	case TokenKeyword, TokenPunct, TokenOperator:
		return t.Text == text
	}
	return false
}

// Column is one entry of a SELECT list.
//
// Name is the referenced property when the entry is a plain (optionally
// qualified) column reference, and empty for computed expressions.
type Column struct {
	Expr  []Token
	Name  string
	Alias string
}

// OutputName returns the alias if present, otherwise the column name.
func (c Column) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// Order is one ORDER BY key.
type Order struct {
	Field      string
	Descending bool
}

// Select is the narrow view of a parsed SELECT statement.
//
// Semantics:
//
//	SELECT [DISTINCT [ON (<distinct_on>)]] <columns>|*
//	FROM <kind> [AS <alias>]
//	[WHERE <where>]
//	[ORDER BY <order_by>]
//	[LIMIT <limit>] [OFFSET <offset>]
//
// Tokens holds the whole statement so that rewrites can work on the same
// stream the parser read. WhereText is the original, unrewritten predicate
// text; local evaluation always uses it.
//
// Example:
//
//	SELECT name, age FROM users WHERE age > 15 ORDER BY age DESC LIMIT 1
//
// parses to:
//
//	Select{
//	  Kind:    "users",
//	  Columns: []Column{{Name: "name"}, {Name: "age"}},
//	  Where:   <tokens "age > 15">,
//	  OrderBy: []Order{{Field: "age", Descending: true}},
//	  Limit:   ptr(1),
//	}
type Select struct {
	Text       string
	Tokens     []Token
	Kind       string // empty for kindless statements
	Alias      string
	Distinct   bool
	DistinctOn []string
	Star       bool
	Columns    []Column
	Where      []Token // nil when there is no WHERE clause
	WhereText  string
	OrderBy    []Order
	Limit      *int64
	Offset     int64
}

func (Select) statementNode() {}

// HasWhere reports whether the statement carries a WHERE clause.
func (s *Select) HasWhere() bool {
	return len(s.Where) > 0
}

// ProjectedNames returns the output names of an explicit SELECT list,
// or nil for SELECT *.
func (s *Select) ProjectedNames() []string {
	if s.Star || len(s.Columns) == 0 {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// AggregateCall is one aggregate function application.
//
// Func is upper-cased: COUNT, COUNT_UP_TO, SUM or AVG. Arg is "*" for
// COUNT(*) and the column name otherwise. UpTo is the bound of COUNT_UP_TO.
type AggregateCall struct {
	Func  string
	Arg   string
	UpTo  int64
	Alias string
}

// Aggregate function names.
const (
	FuncCount     = "COUNT"
	FuncCountUpTo = "COUNT_UP_TO"
	FuncSum       = "SUM"
	FuncAvg       = "AVG"
)

// Name returns the output column name: the alias, or the function name.
func (c AggregateCall) Name() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Func
}

// Aggregate applies aggregate functions over the rows of Inner.
//
// Inner is nil for a kindless aggregate (SELECT COUNT(*) with no FROM),
// which always evaluates to zero.
type Aggregate struct {
	Text  string
	Calls []AggregateCall
	Inner *Select
}

func (Aggregate) statementNode() {}

// Derived is an outer query over exactly one subquery in FROM.
//
// Outer is the outer statement text with the subquery replaced by Table,
// ready for the embedded tabular engine.
type Derived struct {
	Text  string
	Inner *Select
	Outer string
	Table string
	Alias string
}

func (Derived) statementNode() {}

// Insert writes one entity per row of Rows.
//
// Columns are aligned with each row. The primary-key column, when present,
// supplies the entity's id or name.
type Insert struct {
	Text    string
	Kind    string
	Columns []string
	Rows    [][]ir.Value
}

func (Insert) statementNode() {}

// Assignment is one SET entry of an UPDATE.
type Assignment struct {
	Column string
	Value  ir.Value
}

// Update replaces properties of the single entity identified by KeyValue.
// KeyValue is an ir.Int id or an ir.String name.
type Update struct {
	Text     string
	Kind     string
	Set      []Assignment
	KeyValue ir.Value
}

func (Update) statementNode() {}

// Delete removes the single entity identified by KeyValue.
type Delete struct {
	Text     string
	Kind     string
	KeyValue ir.Value
}

func (Delete) statementNode() {}

// Spec is the normalized query form rendered to native GQL text.
//
// Filter holds the rewritten WHERE tokens; Predicate holds the parsed
// original WHERE used for local evaluation. Projection is nil for a
// full-entity query.
type Spec struct {
	Kind       string
	Filter     []Token
	Predicate  Predicate
	OrderBy    []Order
	Limit      *int64
	Offset     int64
	Projection []string
	Distinct   bool
	DistinctOn []string
}
