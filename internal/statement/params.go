package statement

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// Bind substitutes :name placeholders with literal text.
//
// Placeholders inside quoted literals are left alone. Values render as:
// strings quoted with ' (embedded quotes doubled), numbers verbatim (a
// float always keeps a decimal point), nil as NULL, bools as true/false,
// time.Time as DATETIME('...'), []byte as BLOB('...'), slices as
// ARRAY(...), and anything else as a quoted fmt.Sprint string.
//
// A placeholder with no entry in params is an error.
func Bind(text string, params map[string]any) (string, error) {
	toks, err := Lex(text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	last := 0
	for _, t := range toks {
		if t.Kind != queryir.TokenParam {
			continue
		}
		val, ok := params[t.Text]
		if !ok {
			return "", errorf(t.Pos, "missing value for parameter :%s", t.Text)
		}
		b.WriteString(text[last:t.Pos])
		b.WriteString(RenderParam(val))
		last = t.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// RenderParam renders a Go value as statement literal text.
func RenderParam(v any) string {
	if v == nil {
		return "NULL"
	}
	if s, ok := v.(string); ok {
		return quote(s)
	}
	_, isBytes := v.([]byte)
	_, isValue := v.(ir.Value)
	if !isBytes && !isValue {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			parts := make([]string, rv.Len())
			for i := range parts {
				parts[i] = RenderParam(rv.Index(i).Interface())
			}
			return "ARRAY(" + strings.Join(parts, ", ") + ")"
		}
	}

	val, err := ir.FromNative(v)
	if err != nil {
		return quote(fmt.Sprint(v))
	}
	switch val := val.(type) {
	case ir.Array:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = ir.Format(elem)
		}
		return "ARRAY(" + strings.Join(parts, ", ") + ")"
	case ir.Entity, ir.GeoPoint:
		return quote(ir.Canonical(val))
	default:
		return ir.Format(val)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
