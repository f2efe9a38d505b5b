package fallback

import (
	"errors"
	"fmt"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// ErrInvalidCondition marks a condition that could not be parsed.
var ErrInvalidCondition = errors.New("invalid condition")

// Eval evaluates p against one row of res.
//
// Evaluation is fail-closed: an atom that cannot be evaluated (an unparsed
// condition, an ordering between incompatible types) is false for the row,
// and the failures are returned alongside the result. A nil predicate
// matches every row.
func Eval(p queryir.Predicate, res *materialize.Result, row materialize.Row) (bool, []error) {
	ev := &evaluator{res: res, row: row}
	return ev.eval(p), ev.errs
}

type evaluator struct {
	res  *materialize.Result
	row  materialize.Row
	errs []error
}

func (e *evaluator) eval(p queryir.Predicate) bool {
	switch p := p.(type) {
	case nil:
		return true
	case queryir.And:
		return e.and(p.Predicates)
	case *queryir.And:
		return e.and(p.Predicates)
	case queryir.Or:
		return e.or(p.Predicates)
	case *queryir.Or:
		return e.or(p.Predicates)
	case queryir.Compare:
		return e.compare(p)
	case *queryir.Compare:
		return e.compare(*p)
	case queryir.In:
		return e.in(p)
	case *queryir.In:
		return e.in(*p)
	case queryir.IsNull:
		return ir.IsNull(e.field(p.Field)) != p.Negate
	case *queryir.IsNull:
		return ir.IsNull(e.field(p.Field)) != p.Negate
	case queryir.Contains:
		return e.contains(p)
	case *queryir.Contains:
		return e.contains(*p)
	case queryir.HasAncestor:
		return e.hasAncestor(p)
	case *queryir.HasAncestor:
		return e.hasAncestor(*p)
	case queryir.Invalid:
		return e.fail(fmt.Errorf("%w %q: %s", ErrInvalidCondition, p.Text, p.Reason))
	case *queryir.Invalid:
		return e.fail(fmt.Errorf("%w %q: %s", ErrInvalidCondition, p.Text, p.Reason))
	default:
		return e.fail(fmt.Errorf("unsupported predicate %T", p))
	}
}

func (e *evaluator) fail(err error) bool {
	e.errs = append(e.errs, err)
	return false
}

// and evaluates every conjunct so that all failures are reported.
func (e *evaluator) and(preds []queryir.Predicate) bool {
	ok := true
	for _, p := range preds {
		if !e.eval(p) {
			ok = false
		}
	}
	return ok
}

func (e *evaluator) or(preds []queryir.Predicate) bool {
	ok := false
	for _, p := range preds {
		if e.eval(p) {
			ok = true
		}
	}
	return ok
}

// field returns the row value for name; a missing column reads as Null.
func (e *evaluator) field(name string) ir.Value {
	idx := e.res.Index(name)
	if idx < 0 || idx >= len(e.row) {
		return ir.Null{}
	}
	return e.row[idx]
}

func (e *evaluator) compare(c queryir.Compare) bool {
	got := e.field(c.Field)
	if ir.IsNull(c.Value) {
		switch c.Op {
		case queryir.OpEq:
			return ir.IsNull(got)
		case queryir.OpNe:
			return !ir.IsNull(got)
		}
		return false
	}
	if ir.IsNull(got) {
		return false
	}
	want := keyLiteral(got, c.Value)

	switch c.Op {
	case queryir.OpEq:
		return ir.Equal(got, want)
	case queryir.OpNe:
		return !ir.Equal(got, want)
	}
	cmp, err := ir.Compare(got, want)
	if err != nil {
		return e.fail(fmt.Errorf("%s %s %s: %w", c.Field, c.Op, ir.Format(c.Value), err))
	}
	switch c.Op {
	case queryir.OpLt:
		return cmp < 0
	case queryir.OpLe:
		return cmp <= 0
	case queryir.OpGt:
		return cmp > 0
	case queryir.OpGe:
		return cmp >= 0
	}
	return e.fail(fmt.Errorf("unknown operator %q", c.Op))
}

func (e *evaluator) in(in queryir.In) bool {
	got := e.field(in.Field)
	if ir.IsNull(got) {
		return false
	}
	for _, v := range in.Values {
		if ir.Equal(got, keyLiteral(got, v)) {
			return !in.Negate
		}
	}
	return in.Negate
}

func (e *evaluator) contains(c queryir.Contains) bool {
	got := e.field(c.Field)
	arr, ok := got.(ir.Array)
	if !ok {
		return !ir.IsNull(got) && ir.Equal(got, c.Value)
	}
	for _, elem := range arr {
		if ir.Equal(elem, c.Value) {
			return true
		}
	}
	return false
}

func (e *evaluator) hasAncestor(h queryir.HasAncestor) bool {
	key, ok := e.field(h.Field).(ir.Key)
	if !ok || len(key) <= len(h.Ancestor) {
		return false
	}
	return key[:len(h.Ancestor)].Equal(h.Ancestor)
}

// keyLiteral lets "id = 5" and "id = 'alice'" match a key column: an
// integer or string literal compared with a key becomes a key with the same
// parent path and the literal as its final id or name.
func keyLiteral(got, lit ir.Value) ir.Value {
	key, ok := got.(ir.Key)
	if !ok || len(key) == 0 {
		return lit
	}
	last := ir.PathElement{Kind: key.Kind()}
	switch v := lit.(type) {
	case ir.Int:
		last.ID = int64(v)
	case ir.String:
		last.Name = string(v)
	default:
		return lit
	}
	out := make(ir.Key, len(key))
	copy(out, key[:len(key)-1])
	out[len(key)-1] = last
	return out
}
