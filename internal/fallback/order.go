package fallback

import (
	"slices"
	"strings"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// typeRank orders values of different types relative to each other.
var typeRank = map[ir.Type]int{
	ir.TypeBool:      1,
	ir.TypeInt:       2,
	ir.TypeDouble:    2,
	ir.TypeTimestamp: 3,
	ir.TypeString:    4,
	ir.TypeBytes:     5,
	ir.TypeGeoPoint:  6,
	ir.TypeKey:       7,
	ir.TypeArray:     8,
	ir.TypeEntity:    9,
}

// Sort orders rows by the given keys. The sort is stable; nulls sort last
// under either direction.
func Sort(res *materialize.Result, order []queryir.Order) {
	if len(order) == 0 || len(res.Rows) < 2 {
		return
	}
	idx := make([]int, len(order))
	for i, o := range order {
		idx[i] = res.Index(o.Field)
	}
	slices.SortStableFunc(res.Rows, func(a, b materialize.Row) int {
		for i, o := range order {
			var av, bv ir.Value = ir.Null{}, ir.Null{}
			if k := idx[i]; k >= 0 {
				av, bv = a[k], b[k]
			}
			if c := compareNullsLast(av, bv, o.Descending); c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareNullsLast(a, b ir.Value, desc bool) int {
	an, bn := ir.IsNull(a), ir.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	c := SortCompare(a, b)
	if desc {
		return -c
	}
	return c
}

// SortCompare is a total order over non-null values. Values of one type
// compare naturally; integers and doubles compare numerically; other mixed
// types order by type and then by canonical text.
func SortCompare(a, b ir.Value) int {
	if c, err := ir.Compare(a, b); err == nil {
		return c
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return typeRankCmp(a, b)
		}
	}
	if c := typeRankCmp(a, b); c != 0 {
		return c
	}
	return strings.Compare(ir.Canonical(a), ir.Canonical(b))
}

func typeRankCmp(a, b ir.Value) int {
	ra, rb := typeRank[ir.TypeOf(a)], typeRank[ir.TypeOf(b)]
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(string(ir.TypeOf(a)), string(ir.TypeOf(b)))
}

func number(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Double:
		return float64(n), true
	}
	return 0, false
}
