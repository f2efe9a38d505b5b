package statement

import (
	"strconv"
	"strings"

	"github.com/roach88/gqlbridge/internal/queryir"
)

// DerivedTable is the name the inner rows of a derived-table statement are
// loaded under for the outer query.
const DerivedTable = "derived_rows"

// aggregateFuncs are the functions that turn a SELECT into an aggregation.
var aggregateFuncs = map[string]bool{
	queryir.FuncCount:     true,
	queryir.FuncCountUpTo: true,
	queryir.FuncSum:       true,
	queryir.FuncAvg:       true,
}

// Classify reads statement text (parameters already bound) and resolves it
// to exactly one queryir.Statement variant:
//
//	SELECT ... FROM kind ...              → *queryir.Select
//	SELECT <aggregates> [FROM kind ...]   → *queryir.Aggregate
//	AGGREGATE ... OVER (SELECT ...)       → *queryir.Aggregate
//	SELECT ... FROM (SELECT ...) [AS] t   → *queryir.Derived
//	INSERT / UPDATE / DELETE              → *queryir.Insert / Update / Delete
func Classify(text string) (queryir.Statement, error) {
	toks, err := Lex(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errorf(-1, "empty statement")
	}

	first := toks[0]
	switch {
	case first.Is("SELECT"):
		return classifySelect(text, toks)
	case first.Is("AGGREGATE"):
		return parseAggregateOver(text, toks)
	case first.Is("INSERT"), first.Is("UPDATE"), first.Is("DELETE"):
		return parseDML(text)
	}
	return nil, errorf(first.Pos, "unsupported statement starting with %q", first.Text)
}

// ParseSelect reads a plain SELECT statement.
func ParseSelect(text string) (*queryir.Select, error) {
	toks, err := Lex(text)
	if err != nil {
		return nil, err
	}
	parts, err := parseSelectTokens(text, toks)
	if err != nil {
		return nil, err
	}
	if len(parts.calls) > 0 {
		return nil, errorf(-1, "aggregate functions are not allowed here")
	}
	return parts.sel, nil
}

// ParseSelectTokens reads a plain SELECT from an already lexed (and possibly
// rewritten) token stream. Synthetic tokens are allowed.
func ParseSelectTokens(toks []queryir.Token) (*queryir.Select, error) {
	parts, err := parseSelectTokens(Render(toks), toks)
	if err != nil {
		return nil, err
	}
	return parts.sel, nil
}

func classifySelect(text string, toks []queryir.Token) (queryir.Statement, error) {
	fromIdx := topLevelIndex(toks, 0, "FROM")
	if fromIdx >= 0 && fromIdx+1 < len(toks) && toks[fromIdx+1].Is("(") {
		return parseDerived(text, toks, fromIdx)
	}

	parts, err := parseSelectTokens(text, toks)
	if err != nil {
		return nil, err
	}
	if len(parts.calls) == 0 {
		if parts.sel.Kind == "" {
			return nil, errorf(-1, "SELECT without FROM is only supported for aggregates")
		}
		return parts.sel, nil
	}
	if len(parts.calls) != len(parts.sel.Columns) {
		return nil, errorf(-1, "cannot mix aggregate and plain columns without a derived table")
	}

	agg := &queryir.Aggregate{Text: text, Calls: parts.calls}
	if fromIdx < 0 {
		return agg, nil
	}
	innerToks := append([]queryir.Token{Keyword("SELECT"), Punct("*")}, toks[fromIdx:]...)
	inner, err := parseSelectTokens(text, innerToks)
	if err != nil {
		return nil, err
	}
	inner.sel.Text = Render(innerToks)
	agg.Inner = inner.sel
	return agg, nil
}

// parseAggregateOver reads AGGREGATE <calls> OVER (<select>).
func parseAggregateOver(text string, toks []queryir.Token) (queryir.Statement, error) {
	overIdx := topLevelIndex(toks, 1, "OVER")
	if overIdx < 0 {
		return nil, errorf(toks[0].Pos, "AGGREGATE requires OVER (SELECT ...)")
	}
	if overIdx+1 >= len(toks) || !toks[overIdx+1].Is("(") {
		return nil, errorf(toks[overIdx].Pos, "expected '(' after OVER")
	}
	closeIdx := matchParen(toks, overIdx+1)
	if closeIdx != len(toks)-1 {
		return nil, errorf(toks[overIdx].Pos, "unexpected tokens after OVER (...)")
	}

	var calls []queryir.AggregateCall
	for _, item := range splitTopLevel(toks[1:overIdx], ",") {
		expr, alias := splitAlias(item)
		call, ok, err := aggregateCall(expr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorf(itemPos(item), "AGGREGATE accepts COUNT, COUNT_UP_TO, SUM and AVG only")
		}
		call.Alias = alias
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return nil, errorf(toks[0].Pos, "AGGREGATE requires at least one function")
	}

	innerToks := toks[overIdx+2 : closeIdx]
	if len(innerToks) == 0 || !innerToks[0].Is("SELECT") {
		return nil, errorf(toks[overIdx].Pos, "OVER requires a SELECT")
	}
	inner, err := parseSelectTokens(text, innerToks)
	if err != nil {
		return nil, err
	}
	if len(inner.calls) > 0 {
		return nil, errorf(innerToks[0].Pos, "nested aggregates are not supported")
	}
	inner.sel.Text = sourceText(text, innerToks)
	return &queryir.Aggregate{Text: text, Calls: calls, Inner: inner.sel}, nil
}

// parseDerived reads SELECT ... FROM (<inner>) [AS] alias ...
func parseDerived(text string, toks []queryir.Token, fromIdx int) (queryir.Statement, error) {
	open := fromIdx + 1
	closeIdx := matchParen(toks, open)
	if closeIdx < 0 {
		return nil, errorf(toks[open].Pos, "unbalanced parenthesis in FROM")
	}
	innerToks := toks[open+1 : closeIdx]
	if len(innerToks) == 0 || !innerToks[0].Is("SELECT") {
		return nil, errorf(toks[open].Pos, "subquery in FROM must be a SELECT")
	}
	for j := 0; j+1 < len(innerToks); j++ {
		if innerToks[j].Is("FROM") && innerToks[j+1].Is("(") {
			return nil, errorf(innerToks[j].Pos, "only one level of subquery is supported")
		}
	}

	inner, err := parseSelectTokens(text, innerToks)
	if err != nil {
		return nil, err
	}
	if len(inner.calls) > 0 || inner.sel.Kind == "" {
		return nil, errorf(innerToks[0].Pos, "subquery in FROM must select from a kind")
	}
	inner.sel.Text = sourceText(text, innerToks)

	// Optional alias after the subquery.
	next := closeIdx + 1
	alias := ""
	if next < len(toks) && toks[next].Is("AS") {
		next++
	}
	if next < len(toks) && toks[next].Kind == queryir.TokenIdent {
		alias = toks[next].Text
		next++
	}

	var outer strings.Builder
	outer.WriteString(text[:toks[fromIdx].End])
	outer.WriteString(" " + DerivedTable)
	if alias != "" {
		outer.WriteString(" AS " + alias)
	}
	if next < len(toks) {
		outer.WriteString(" ")
		outer.WriteString(text[toks[next].Pos:])
	}

	return &queryir.Derived{
		Text:  text,
		Inner: inner.sel,
		Outer: outer.String(),
		Table: DerivedTable,
		Alias: alias,
	}, nil
}

type selectParts struct {
	sel   *queryir.Select
	calls []queryir.AggregateCall
}

// clauseStarts are the keywords that end a preceding clause.
var clauseStarts = []string{"FROM", "WHERE", "GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET"}

func parseSelectTokens(text string, toks []queryir.Token) (*selectParts, error) {
	if len(toks) == 0 || !toks[0].Is("SELECT") {
		return nil, errorf(-1, "expected SELECT")
	}
	sel := &queryir.Select{Text: text, Tokens: toks}
	parts := &selectParts{sel: sel}
	i := 1

	if i < len(toks) && toks[i].Is("DISTINCT") {
		sel.Distinct = true
		i++
		if i < len(toks) && toks[i].Is("ON") {
			if i+1 >= len(toks) || !toks[i+1].Is("(") {
				return nil, errorf(toks[i].Pos, "expected '(' after DISTINCT ON")
			}
			closeIdx := matchParen(toks, i+1)
			if closeIdx < 0 {
				return nil, errorf(toks[i].Pos, "unbalanced DISTINCT ON list")
			}
			for _, item := range splitTopLevel(toks[i+2:closeIdx], ",") {
				name, n, ok := fieldRef(item, 0)
				if !ok || n != len(item) {
					return nil, errorf(itemPos(item), "DISTINCT ON accepts column names only")
				}
				sel.DistinctOn = append(sel.DistinctOn, name)
			}
			i = closeIdx + 1
		}
	}

	// SELECT list
	end := nextClause(toks, i)
	if end == i {
		return nil, errorf(-1, "empty SELECT list")
	}
	for _, item := range splitTopLevel(toks[i:end], ",") {
		if len(item) == 0 {
			return nil, errorf(-1, "empty SELECT list entry")
		}
		if isStar(item) {
			sel.Star = true
			continue
		}
		expr, alias := splitAlias(item)
		call, isAgg, err := aggregateCall(expr)
		if err != nil {
			return nil, err
		}
		if isAgg {
			call.Alias = alias
			parts.calls = append(parts.calls, call)
		}
		col := queryir.Column{Expr: expr, Alias: alias}
		if name, n, ok := fieldRef(expr, 0); ok && n == len(expr) {
			col.Name = name
		}
		sel.Columns = append(sel.Columns, col)
	}
	i = end

	// FROM
	if i < len(toks) && toks[i].Is("FROM") {
		i++
		if i >= len(toks) || (toks[i].Kind != queryir.TokenIdent && toks[i].Kind != queryir.TokenString) {
			return nil, errorf(toks[i-1].Pos, "expected kind name after FROM")
		}
		sel.Kind = toks[i].Text
		i++
		if i < len(toks) && toks[i].Is("AS") {
			i++
			if i >= len(toks) || toks[i].Kind != queryir.TokenIdent {
				return nil, errorf(toks[i-1].Pos, "expected alias after AS")
			}
		}
		if i < len(toks) && toks[i].Kind == queryir.TokenIdent {
			sel.Alias = toks[i].Text
			i++
		}
	}

	// WHERE
	if i < len(toks) && toks[i].Is("WHERE") {
		end := nextClause(toks, i+1)
		if end == i+1 {
			return nil, errorf(toks[i].Pos, "empty WHERE clause")
		}
		sel.Where = toks[i+1 : end]
		sel.WhereText = sourceText(text, sel.Where)
		i = end
	}

	if i < len(toks) && (toks[i].Is("GROUP") || toks[i].Is("HAVING")) {
		return nil, errorf(toks[i].Pos, "%s is only supported on a derived table", toks[i].Text)
	}

	// ORDER BY
	if i < len(toks) && toks[i].Is("ORDER") {
		if i+1 >= len(toks) || !toks[i+1].Is("BY") {
			return nil, errorf(toks[i].Pos, "expected BY after ORDER")
		}
		end := nextClause(toks, i+2)
		for _, item := range splitTopLevel(toks[i+2:end], ",") {
			name, n, ok := fieldRef(item, 0)
			if !ok {
				return nil, errorf(itemPos(item), "ORDER BY accepts column names only")
			}
			ord := queryir.Order{Field: name}
			switch {
			case n == len(item):
			case n == len(item)-1 && item[n].Is("ASC"):
			case n == len(item)-1 && item[n].Is("DESC"):
				ord.Descending = true
			default:
				return nil, errorf(itemPos(item), "unexpected tokens in ORDER BY")
			}
			sel.OrderBy = append(sel.OrderBy, ord)
		}
		i = end
	}

	// LIMIT / OFFSET
	var err error
	if i, err = parseLimit(toks, i, sel); err != nil {
		return nil, err
	}

	if i < len(toks) {
		return nil, errorf(toks[i].Pos, "unexpected %q", toks[i].Text)
	}
	return parts, nil
}

// parseLimit reads LIMIT n, LIMIT FIRST(offset, count), LIMIT m, n and
// OFFSET n in any of their combinations.
func parseLimit(toks []queryir.Token, i int, sel *queryir.Select) (int, error) {
	if i < len(toks) && toks[i].Is("LIMIT") {
		i++
		switch {
		case i+1 < len(toks) && toks[i].Kind == queryir.TokenIdent && strings.EqualFold(toks[i].Text, "FIRST") && toks[i+1].Is("("):
			closeIdx := matchParen(toks, i+1)
			if closeIdx < 0 {
				return i, errorf(toks[i].Pos, "unbalanced FIRST(...)")
			}
			args := splitTopLevel(toks[i+2:closeIdx], ",")
			if len(args) != 2 {
				return i, errorf(toks[i].Pos, "FIRST takes (offset, count)")
			}
			off, err := intArg(args[0])
			if err != nil {
				return i, err
			}
			count, err := intArg(args[1])
			if err != nil {
				return i, err
			}
			sel.Offset = off
			sel.Limit = &count
			i = closeIdx + 1

		case i < len(toks) && toks[i].Kind == queryir.TokenNumber:
			n, err := intArg(toks[i : i+1])
			if err != nil {
				return i, err
			}
			i++
			if i+1 < len(toks) && toks[i].Is(",") {
				// MySQL form: LIMIT offset, count
				count, err := intArg(toks[i+1 : i+2])
				if err != nil {
					return i, err
				}
				sel.Offset = n
				sel.Limit = &count
				i += 2
			} else {
				sel.Limit = &n
			}

		default:
			return i, errorf(toks[i-1].Pos, "expected row count after LIMIT")
		}
	}

	if i < len(toks) && toks[i].Is("OFFSET") {
		if i+1 >= len(toks) {
			return i, errorf(toks[i].Pos, "expected row count after OFFSET")
		}
		n, err := intArg(toks[i+1 : i+2])
		if err != nil {
			return i, err
		}
		sel.Offset = n
		i += 2
	}
	return i, nil
}

func intArg(arg []queryir.Token) (int64, error) {
	if len(arg) != 1 || arg[0].Kind != queryir.TokenNumber {
		return 0, errorf(itemPos(arg), "expected a non-negative integer")
	}
	n, err := strconv.ParseInt(arg[0].Text, 10, 64)
	if err != nil || n < 0 {
		return 0, errorf(arg[0].Pos, "expected a non-negative integer, got %q", arg[0].Text)
	}
	return n, nil
}

// aggregateCall recognizes FUNC(arg) for the supported aggregate functions.
func aggregateCall(expr []queryir.Token) (queryir.AggregateCall, bool, error) {
	if len(expr) < 3 || expr[0].Kind != queryir.TokenIdent || !expr[1].Is("(") {
		return queryir.AggregateCall{}, false, nil
	}
	name := strings.ToUpper(expr[0].Text)
	if !aggregateFuncs[name] {
		return queryir.AggregateCall{}, false, nil
	}
	if matchParen(expr, 1) != len(expr)-1 {
		return queryir.AggregateCall{}, false, nil
	}
	args := expr[2 : len(expr)-1]
	call := queryir.AggregateCall{Func: name}

	switch name {
	case queryir.FuncCount:
		if isStar(args) {
			call.Arg = "*"
			return call, true, nil
		}
	case queryir.FuncCountUpTo:
		n, err := intArg(args)
		if err != nil {
			return call, false, err
		}
		call.Arg = "*"
		call.UpTo = n
		return call, true, nil
	}
	field, n, ok := fieldRef(args, 0)
	if !ok || n != len(args) {
		return call, false, errorf(expr[0].Pos, "%s takes a single column", name)
	}
	call.Arg = field
	return call, true, nil
}

// splitAlias separates a trailing "AS alias" or implicit alias from an expression.
func splitAlias(item []queryir.Token) ([]queryir.Token, string) {
	n := len(item)
	if n >= 3 && item[n-2].Is("AS") && item[n-1].Kind == queryir.TokenIdent {
		return item[:n-2], item[n-1].Text
	}
	if n >= 2 && item[n-1].Kind == queryir.TokenIdent && !item[n-2].Is(".") {
		prev := item[n-2]
		if prev.Is(")") || prev.Kind == queryir.TokenIdent || prev.Kind == queryir.TokenString || prev.Kind == queryir.TokenNumber {
			return item[:n-1], item[n-1].Text
		}
	}
	return item, ""
}

func isStar(item []queryir.Token) bool {
	switch len(item) {
	case 1:
		return item[0].Is("*")
	case 3:
		return item[0].Kind == queryir.TokenIdent && item[1].Is(".") && item[2].Is("*")
	}
	return false
}

// topLevelIndex returns the index of the first top-level keyword at or after from, or -1.
func topLevelIndex(toks []queryir.Token, from int, keyword string) int {
	depth := 0
	for j := from; j < len(toks); j++ {
		switch {
		case toks[j].Is("(") || toks[j].Is("["):
			depth++
		case toks[j].Is(")") || toks[j].Is("]"):
			depth--
		case depth == 0 && toks[j].Is(keyword):
			return j
		}
	}
	return -1
}

// nextClause returns the index of the next top-level clause keyword at or
// after from, or len(toks).
func nextClause(toks []queryir.Token, from int) int {
	depth := 0
	for j := from; j < len(toks); j++ {
		t := toks[j]
		switch {
		case t.Is("(") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("]"):
			depth--
		case depth == 0 && t.Kind == queryir.TokenKeyword:
			for _, kw := range clauseStarts {
				if t.Text == kw {
					return j
				}
			}
		}
	}
	return len(toks)
}

// sourceText returns the original text spanned by toks, or their rendering
// when any token is synthetic.
func sourceText(text string, toks []queryir.Token) string {
	if len(toks) == 0 {
		return ""
	}
	start, end := toks[0].Pos, toks[len(toks)-1].End
	if start < 0 || end < 0 || end > len(text) || start > end {
		return Render(toks)
	}
	for _, t := range toks {
		if t.Pos < 0 {
			return Render(toks)
		}
	}
	return text[start:end]
}

func itemPos(item []queryir.Token) int {
	if len(item) == 0 {
		return -1
	}
	return item[0].Pos
}
