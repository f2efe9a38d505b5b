package querygql

import (
	"fmt"
	"strings"

	"github.com/roach88/gqlbridge/internal/queryir"
)

// AggregateTranslation is the native form of an aggregation.
//
// GQL is empty when the inner query needs local evaluation; the aggregate is
// then computed over the inner query's fallback rows.
type AggregateTranslation struct {
	GQL   string
	Inner *Translation
}

// TranslateAggregate converts an aggregation over a kind into the native
// AGGREGATE ... OVER (...) form.
func (t *Translator) TranslateAggregate(agg *queryir.Aggregate) (*AggregateTranslation, error) {
	if agg == nil || agg.Inner == nil {
		return nil, fmt.Errorf("aggregate has no inner query")
	}
	inner, err := t.Translate(agg.Inner)
	if err != nil {
		return nil, fmt.Errorf("translate inner query: %w", err)
	}
	out := &AggregateTranslation{Inner: inner}
	if inner.NeedsFallback {
		return out, nil
	}

	calls := make([]string, len(agg.Calls))
	for i, call := range agg.Calls {
		calls[i] = renderCall(call)
	}
	out.GQL = "AGGREGATE " + strings.Join(calls, ", ") + " OVER (" + inner.GQL + ")"
	return out, nil
}

func renderCall(call queryir.AggregateCall) string {
	var s string
	switch call.Func {
	case queryir.FuncCountUpTo:
		s = fmt.Sprintf("COUNT_UP_TO(%d)", call.UpTo)
	case queryir.FuncCount:
		s = "COUNT(*)"
		if call.Arg != "*" && call.Arg != "" {
			s = "COUNT(" + quoteIdent(keyName(call.Arg)) + ")"
		}
	default:
		s = call.Func + "(" + quoteIdent(call.Arg) + ")"
	}
	if call.Alias != "" {
		s += " AS " + quoteIdent(call.Alias)
	}
	return s
}
