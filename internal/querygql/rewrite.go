package querygql

import (
	"strings"

	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
)

// whereRule is a single token rewrite over WHERE tokens. Every rule is
// idempotent and returns a new slice.
type whereRule func(toks []queryir.Token, kind string) []queryir.Token

// whereRules run in order over the WHERE clause.
var whereRules = []whereRule{
	stripQualifiers,
	notEqualSpelling,
	notInPlacement,
	arrayLists,
	keyColumn,
	keyLiterals,
}

func rewriteWhere(where []queryir.Token, kind string) []queryir.Token {
	if len(where) == 0 {
		return nil
	}
	out := append([]queryir.Token(nil), where...)
	for _, rule := range whereRules {
		out = rule(out, kind)
	}
	return out
}

// stripQualifiers turns "t.col" into "col".
func stripQualifiers(toks []queryir.Token, _ string) []queryir.Token {
	out := make([]queryir.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		if toks[i].Kind == queryir.TokenIdent && !isCall(toks, i) &&
			i+2 < len(toks) && toks[i+1].Is(".") && toks[i+2].Kind == queryir.TokenIdent {
			continue
		}
		if toks[i].Is(".") && i > 0 && toks[i-1].Kind == queryir.TokenIdent &&
			i+1 < len(toks) && toks[i+1].Kind == queryir.TokenIdent {
			continue
		}
		out = append(out, toks[i])
	}
	return out
}

// notEqualSpelling rewrites <> to !=.
func notEqualSpelling(toks []queryir.Token, _ string) []queryir.Token {
	out := make([]queryir.Token, len(toks))
	for i, t := range toks {
		if t.Kind == queryir.TokenOperator && t.Text == "<>" {
			t = statement.Op("!=")
		}
		out[i] = t
	}
	return out
}

// notInPlacement rewrites "NOT col IN (...)" to "col NOT IN (...)".
func notInPlacement(toks []queryir.Token, _ string) []queryir.Token {
	out := make([]queryir.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		if toks[i].Is("NOT") && i+2 < len(toks) && toks[i+1].Kind == queryir.TokenIdent && toks[i+2].Is("IN") {
			out = append(out, toks[i+1], toks[i], toks[i+2])
			i += 2
			continue
		}
		out = append(out, toks[i])
	}
	return out
}

// arrayLists rewrites "IN (...)" and "IN [...]" to "IN ARRAY(...)".
func arrayLists(toks []queryir.Token, _ string) []queryir.Token {
	out := make([]queryir.Token, 0, len(toks)+1)
	closeAt := map[int]bool{}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if closeAt[i] {
			out = append(out, statement.Punct(")"))
			continue
		}
		out = append(out, t)
		if !t.Is("IN") || i+1 >= len(toks) {
			continue
		}
		next := toks[i+1]
		if !next.Is("(") && !next.Is("[") {
			continue
		}
		closeIdx := matchBracket(toks, i+1)
		if closeIdx < 0 {
			continue
		}
		out = append(out, statement.Ident("ARRAY"), statement.Punct("("))
		closeAt[closeIdx] = true
		i++
	}
	return out
}

// keyColumn maps the synthetic primary-key column to __key__.
func keyColumn(toks []queryir.Token, _ string) []queryir.Token {
	out := make([]queryir.Token, len(toks))
	for i, t := range toks {
		if t.Kind == queryir.TokenIdent && t.Quote == 0 && t.Text == "id" && !isCall(toks, i) && isFieldPosition(toks, i) {
			t = statement.Ident(KeyProperty)
		}
		out[i] = t
	}
	return out
}

// keyLiterals rewrites "__key__ <op> <int|string>" to a KEY(kind, ...) literal.
func keyLiterals(toks []queryir.Token, kind string) []queryir.Token {
	out := make([]queryir.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		out = append(out, t)
		if t.Kind != queryir.TokenIdent || t.Text != KeyProperty || i+2 >= len(toks) {
			continue
		}
		op, lit := toks[i+1], toks[i+2]
		if op.Kind != queryir.TokenOperator {
			continue
		}
		if lit.Kind != queryir.TokenNumber && lit.Kind != queryir.TokenString {
			continue
		}
		if lit.Kind == queryir.TokenNumber && strings.ContainsAny(lit.Text, ".eE") {
			continue
		}
		out = append(out, op, statement.Ident("KEY"), statement.Punct("("), kindToken(kind), statement.Punct(","), lit, statement.Punct(")"))
		i += 2
	}
	return out
}

func kindToken(kind string) queryir.Token {
	if isPlainIdent(kind) {
		return statement.Ident(kind)
	}
	return statement.Str(kind)
}

// isCall reports whether toks[i] is a function or constructor name.
func isCall(toks []queryir.Token, i int) bool {
	return i+1 < len(toks) && toks[i+1].Is("(")
}

// isFieldPosition reports whether toks[i] sits where a column reference can
// appear: at the start of a condition or right after a comparison operator.
func isFieldPosition(toks []queryir.Token, i int) bool {
	if i == 0 {
		return true
	}
	prev := toks[i-1]
	switch {
	case prev.Is("AND"), prev.Is("OR"), prev.Is("NOT"), prev.Is("("):
		return true
	case prev.Kind == queryir.TokenOperator:
		return true
	}
	return false
}

func matchBracket(toks []queryir.Token, open int) int {
	openText, closeText := "(", ")"
	if toks[open].Is("[") {
		openText, closeText = "[", "]"
	}
	depth := 0
	for j := open; j < len(toks); j++ {
		switch {
		case toks[j].Is(openText):
			depth++
		case toks[j].Is(closeText):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func hasTopLevel(toks []queryir.Token, keyword string) bool {
	return len(splitTopLevel(toks, keyword)) > 1
}

func splitTopLevel(toks []queryir.Token, sep string) [][]queryir.Token {
	var parts [][]queryir.Token
	depth := 0
	start := 0
	for j, t := range toks {
		switch {
		case t.Is("(") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("]"):
			depth--
		case depth == 0 && t.Is(sep):
			parts = append(parts, toks[start:j])
			start = j + 1
		}
	}
	return append(parts, toks[start:])
}
