package statement

import (
	"strings"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// ParsePredicate parses WHERE clause text into a predicate tree.
//
// Grammar (keywords case-insensitive):
//
//	or    := and (OR and)*
//	and   := unary (AND unary)*
//	unary := '(' or ')' | atom
//
// ParsePredicate never fails as a whole. Each atom that cannot be read
// becomes a queryir.Invalid node, which never matches. Empty text yields nil.
func ParsePredicate(text string) queryir.Predicate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	toks, err := Lex(text)
	if err != nil {
		return queryir.Invalid{Text: strings.TrimSpace(text), Reason: err.Error()}
	}
	p := &predicateParser{text: text, toks: toks}
	return p.parseOr(0, len(toks))
}

type predicateParser struct {
	text string
	toks []queryir.Token
}

func (p *predicateParser) source(lo, hi int) string {
	if lo >= hi {
		return ""
	}
	start, end := p.toks[lo].Pos, p.toks[hi-1].End
	if start < 0 || end < 0 || end > len(p.text) {
		return Render(p.toks[lo:hi])
	}
	return p.text[start:end]
}

func (p *predicateParser) invalid(lo, hi int, reason string) queryir.Predicate {
	return queryir.Invalid{Text: p.source(lo, hi), Reason: reason}
}

// split returns [lo,hi) sub-ranges separated by a top-level keyword.
func (p *predicateParser) split(lo, hi int, keyword string) [][2]int {
	var parts [][2]int
	depth := 0
	start := lo
	for j := lo; j < hi; j++ {
		t := p.toks[j]
		switch {
		case t.Is("(") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("]"):
			depth--
		case depth == 0 && t.Is(keyword):
			parts = append(parts, [2]int{start, j})
			start = j + 1
		}
	}
	return append(parts, [2]int{start, hi})
}

func (p *predicateParser) parseOr(lo, hi int) queryir.Predicate {
	parts := p.split(lo, hi, "OR")
	if len(parts) == 1 {
		return p.parseAnd(lo, hi)
	}
	or := queryir.Or{Predicates: make([]queryir.Predicate, 0, len(parts))}
	for _, r := range parts {
		or.Predicates = append(or.Predicates, p.parseAnd(r[0], r[1]))
	}
	return or
}

func (p *predicateParser) parseAnd(lo, hi int) queryir.Predicate {
	parts := p.split(lo, hi, "AND")
	if len(parts) == 1 {
		return p.parseUnary(lo, hi)
	}
	and := queryir.And{Predicates: make([]queryir.Predicate, 0, len(parts))}
	for _, r := range parts {
		and.Predicates = append(and.Predicates, p.parseUnary(r[0], r[1]))
	}
	return and
}

func (p *predicateParser) parseUnary(lo, hi int) queryir.Predicate {
	if lo >= hi {
		return queryir.Invalid{Text: "", Reason: "empty condition"}
	}
	if p.toks[lo].Is("(") && matchParen(p.toks[:hi], lo) == hi-1 {
		return p.parseOr(lo+1, hi-1)
	}
	pred, err := p.parseAtom(p.toks[lo:hi])
	if err != nil {
		return p.invalid(lo, hi, err.Error())
	}
	return pred
}

// parseAtom reads a single condition from exactly the given tokens.
func (p *predicateParser) parseAtom(a []queryir.Token) (queryir.Predicate, error) {
	if a[0].Is("NOT") {
		field, n, ok := fieldRef(a, 1)
		if !ok || n >= len(a) || !a[n].Is("IN") {
			return nil, errorf(a[0].Pos, "NOT is only supported as NOT <field> IN (...)")
		}
		values, err := parseList(a[n+1:])
		if err != nil {
			return nil, err
		}
		return queryir.In{Field: field, Values: values, Negate: true}, nil
	}

	field, n, ok := fieldRef(a, 0)
	if !ok {
		return parseReversedCompare(a)
	}
	if n >= len(a) {
		return nil, errorf(a[0].Pos, "condition on %q has no operator", field)
	}

	rest := a[n:]
	switch {
	case rest[0].Is("IS"):
		switch {
		case len(rest) == 2 && rest[1].Is("NULL"):
			return queryir.IsNull{Field: field}, nil
		case len(rest) == 3 && rest[1].Is("NOT") && rest[2].Is("NULL"):
			return queryir.IsNull{Field: field, Negate: true}, nil
		}
		return nil, errorf(rest[0].Pos, "expected IS [NOT] NULL")

	case rest[0].Is("IN"):
		values, err := parseList(rest[1:])
		if err != nil {
			return nil, err
		}
		return queryir.In{Field: field, Values: values}, nil

	case rest[0].Is("NOT") && len(rest) > 1 && rest[1].Is("IN"):
		values, err := parseList(rest[2:])
		if err != nil {
			return nil, err
		}
		return queryir.In{Field: field, Values: values, Negate: true}, nil

	case rest[0].Is("CONTAINS"):
		v, err := literalFromArg(rest[1:])
		if err != nil {
			return nil, err
		}
		return queryir.Contains{Field: field, Value: v}, nil

	case rest[0].Is("HAS") && len(rest) > 1 && rest[1].Is("ANCESTOR"):
		v, err := literalFromArg(rest[2:])
		if err != nil {
			return nil, err
		}
		key, ok := v.(ir.Key)
		if !ok {
			return nil, errorf(rest[1].Pos, "HAS ANCESTOR requires a KEY literal")
		}
		return queryir.HasAncestor{Field: field, Ancestor: key}, nil

	case rest[0].Kind == queryir.TokenOperator:
		op := opFromToken(rest[0])
		v, err := literalFromArg(rest[1:])
		if err != nil {
			return nil, err
		}
		return queryir.Compare{Field: field, Op: op, Value: v}, nil
	}
	return nil, errorf(rest[0].Pos, "unsupported condition near %q", rest[0].Text)
}

// parseReversedCompare handles "<literal> <op> <field>", e.g. "25 < age".
func parseReversedCompare(a []queryir.Token) (queryir.Predicate, error) {
	v, n, err := parseLiteral(a, 0)
	if err != nil {
		return nil, err
	}
	if n >= len(a) || a[n].Kind != queryir.TokenOperator {
		return nil, errorf(a[0].Pos, "expected comparison operator after literal")
	}
	op := opFromToken(a[n])
	field, end, ok := fieldRef(a, n+1)
	if !ok || end != len(a) {
		return nil, errorf(a[n].Pos, "expected field after operator")
	}
	return queryir.Compare{Field: field, Op: op.Flip(), Value: v}, nil
}

// parseList reads (v, ...), [v, ...] or ARRAY(v, ...) spanning all of toks.
func parseList(toks []queryir.Token) ([]ir.Value, error) {
	if len(toks) == 0 {
		return nil, errorf(-1, "expected value list")
	}
	start := 0
	if toks[0].Kind == queryir.TokenIdent && strings.EqualFold(toks[0].Text, "ARRAY") {
		start = 1
	}
	if start >= len(toks) || !(toks[start].Is("(") || toks[start].Is("[")) {
		return nil, errorf(toks[0].Pos, "expected value list")
	}
	closeIdx := matchParen(toks, start)
	if closeIdx != len(toks)-1 {
		return nil, errorf(toks[start].Pos, "malformed value list")
	}
	args := splitTopLevel(toks[start+1:closeIdx], ",")
	values := make([]ir.Value, 0, len(args))
	for _, arg := range args {
		v, err := literalFromArg(arg)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// fieldRef reads an optionally qualified column reference at toks[i] and
// returns the unqualified name and the next index. A qualifier such as
// "users." is dropped.
func fieldRef(toks []queryir.Token, i int) (string, int, bool) {
	if i >= len(toks) || toks[i].Kind != queryir.TokenIdent {
		return "", i, false
	}
	// An identifier followed by "(" is a literal constructor, not a field.
	if i+1 < len(toks) && toks[i+1].Is("(") && toks[i].Quote == 0 {
		return "", i, false
	}
	name := toks[i].Text
	j := i + 1
	for j+1 < len(toks) && toks[j].Is(".") && toks[j+1].Kind == queryir.TokenIdent {
		name = toks[j+1].Text
		j += 2
	}
	return name, j, true
}

func opFromToken(t queryir.Token) queryir.Op {
	switch t.Text {
	case "<>", "!=":
		return queryir.OpNe
	case "<":
		return queryir.OpLt
	case "<=":
		return queryir.OpLe
	case ">":
		return queryir.OpGt
	case ">=":
		return queryir.OpGe
	default:
		return queryir.OpEq
	}
}
