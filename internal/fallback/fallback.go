package fallback

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// Outcome is the result of local evaluation.
type Outcome struct {
	Result *materialize.Result

	// Scanned is the number of rows fetched by the base query.
	Scanned int

	// PredicateErrors counts rows excluded because a condition could not be
	// evaluated for them.
	PredicateErrors int

	Warning string
}

// Apply evaluates spec over a full, unfiltered materialization of its kind.
//
// Steps, in order: filter by spec.Predicate, sort by spec.OrderBy, apply
// DISTINCT or DISTINCT ON, re-project to output when it is non-empty, skip
// spec.Offset rows and keep spec.Limit rows. res is not modified.
func Apply(res *materialize.Result, spec queryir.Spec, output []string) *Outcome {
	out := &Outcome{Scanned: len(res.Rows)}

	kept := &materialize.Result{Fields: res.Fields}
	for i, row := range res.Rows {
		ok, errs := Eval(spec.Predicate, res, row)
		if !ok && len(errs) > 0 {
			out.PredicateErrors++
			slog.Debug("predicate error excluded row",
				"kind", spec.Kind,
				"row", i,
				"error", errs[0],
			)
		}
		if ok {
			kept.Rows = append(kept.Rows, row)
		}
	}

	Sort(kept, spec.OrderBy)

	if len(spec.DistinctOn) > 0 {
		kept.Rows = distinct(kept, spec.DistinctOn)
	}
	if len(output) > 0 {
		kept = materialize.Project(kept, output)
	}
	if spec.Distinct && len(spec.DistinctOn) == 0 {
		kept.Rows = distinct(kept, nil)
	}

	kept.Rows = Paginate(kept.Rows, spec.Offset, spec.Limit)

	out.Result = kept
	out.Warning = fmt.Sprintf(
		"query on kind %q was evaluated locally: scanned %d entities, returned %d",
		spec.Kind, out.Scanned, len(kept.Rows))
	return out
}

// Paginate skips offset rows and then keeps at most limit rows.
func Paginate(rows []materialize.Row, offset int64, limit *int64) []materialize.Row {
	if offset > 0 {
		if offset >= int64(len(rows)) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit != nil && *limit < int64(len(rows)) {
		rows = rows[:max(*limit, 0)]
	}
	return rows
}

// distinct keeps the first row for each distinct tuple of the named
// columns, or of the whole row when names is empty.
func distinct(res *materialize.Result, names []string) []materialize.Row {
	var idx []int
	for _, n := range names {
		idx = append(idx, res.Index(n))
	}
	seen := map[string]bool{}
	var out []materialize.Row
	for _, row := range res.Rows {
		var b strings.Builder
		if len(idx) == 0 {
			for _, v := range row {
				b.WriteString(ir.Canonical(v))
				b.WriteByte(0)
			}
		} else {
			for _, k := range idx {
				var v ir.Value = ir.Null{}
				if k >= 0 {
					v = row[k]
				}
				b.WriteString(ir.Canonical(v))
				b.WriteByte(0)
			}
		}
		key := b.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}
