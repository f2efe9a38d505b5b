package aggregate

import (
	"fmt"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/wire"
)

// Compute evaluates calls over the rows of res and returns a single-row
// result with one column per call, named by Name().
//
// A nil res is an empty row set, which is how a kindless aggregate
// evaluates to zero.
func Compute(calls []queryir.AggregateCall, res *materialize.Result) (*materialize.Result, error) {
	if res == nil {
		res = &materialize.Result{}
	}
	row := make(materialize.Row, len(calls))
	for i, call := range calls {
		v, err := compute(call, res)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return single(calls, row), nil
}

func compute(call queryir.AggregateCall, res *materialize.Result) (ir.Value, error) {
	switch call.Func {
	case queryir.FuncCount:
		if call.Arg == "*" || call.Arg == "" {
			return ir.Int(len(res.Rows)), nil
		}
		var n int64
		for _, v := range values(res, call.Arg) {
			if !ir.IsNull(v) {
				n++
			}
		}
		return ir.Int(n), nil

	case queryir.FuncCountUpTo:
		if call.UpTo < 0 {
			return nil, fmt.Errorf("COUNT_UP_TO bound must be non-negative, got %d", call.UpTo)
		}
		return ir.Int(min(int64(len(res.Rows)), call.UpTo)), nil

	case queryir.FuncSum:
		return sum(values(res, call.Arg)), nil

	case queryir.FuncAvg:
		return avg(values(res, call.Arg)), nil
	}
	return nil, fmt.Errorf("unsupported aggregate %s", call.Func)
}

// values returns the column's values; an unknown column has none.
func values(res *materialize.Result, name string) []ir.Value {
	idx := res.Index(name)
	if idx < 0 {
		return nil
	}
	out := make([]ir.Value, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, row[idx])
	}
	return out
}

// sum stays integral until a double is seen. Non-numeric values are
// excluded; a sum over no numbers is Int(0).
func sum(vals []ir.Value) ir.Value {
	var (
		isum     int64
		fsum     float64
		inDouble bool
	)
	for _, v := range vals {
		switch n := v.(type) {
		case ir.Int:
			if inDouble {
				fsum += float64(n)
			} else {
				isum += int64(n)
			}
		case ir.Double:
			if !inDouble {
				fsum = float64(isum)
				inDouble = true
			}
			fsum += float64(n)
		}
	}
	if inDouble {
		return ir.Double(fsum)
	}
	return ir.Int(isum)
}

// avg is always a Double, or Null when there are no numbers.
func avg(vals []ir.Value) ir.Value {
	var (
		total float64
		n     int
	)
	for _, v := range vals {
		switch x := v.(type) {
		case ir.Int:
			total += float64(x)
			n++
		case ir.Double:
			total += float64(x)
			n++
		}
	}
	if n == 0 {
		return ir.Null{}
	}
	return ir.Double(total / float64(n))
}

// FromRemote decodes a remote aggregation response into a single-row result.
//
// Values are matched to calls by alias. A call without an alias takes the
// store's positional default name (property_1, property_2, ...).
func FromRemote(calls []queryir.AggregateCall, results []wire.AggregationResult, dec *wire.Decoder) (*materialize.Result, error) {
	if len(results) == 0 {
		return Compute(calls, nil)
	}
	props := results[0].AggregateProperties
	row := make(materialize.Row, len(calls))
	for i, call := range calls {
		raw, ok := props[call.Alias]
		if call.Alias == "" {
			raw, ok = props[fmt.Sprintf("property_%d", i+1)]
		}
		if !ok && len(calls) == 1 && len(props) == 1 {
			for _, only := range props {
				raw, ok = only, true
			}
		}
		if !ok {
			return nil, fmt.Errorf("aggregation result has no value for %s", call.Name())
		}
		v, err := dec.Value(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", call.Name(), err)
		}
		row[i] = v
	}
	return single(calls, row), nil
}

func single(calls []queryir.AggregateCall, row materialize.Row) *materialize.Result {
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name()
	}
	rows := []materialize.Row{row}
	return &materialize.Result{Fields: materialize.Describe(names, rows), Rows: rows}
}
