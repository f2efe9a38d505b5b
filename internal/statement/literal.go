package statement

import (
	"strconv"
	"strings"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// ParseLiteral reads a single literal value from text.
//
// Recognized forms: single or double quoted strings, TRUE/FALSE (any case),
// NULL, integers, decimals, DATETIME('...'), BLOB('...'), KEY(kind, id|'name'),
// ARRAY(v, ...). Any other bare word is returned as its identifier text.
func ParseLiteral(text string) (ir.Value, error) {
	toks, err := Lex(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errorf(0, "empty literal")
	}
	v, next, err := parseLiteral(toks, 0)
	if err != nil {
		return nil, err
	}
	if next != len(toks) {
		return nil, errorf(toks[next].Pos, "unexpected %q after literal", toks[next].Text)
	}
	return v, nil
}

// parseLiteral reads one literal starting at toks[i] and returns the value
// and the index of the first unconsumed token.
func parseLiteral(toks []queryir.Token, i int) (ir.Value, int, error) {
	if i >= len(toks) {
		return nil, i, errorf(-1, "expected literal, found end of input")
	}
	t := toks[i]
	switch t.Kind {
	case queryir.TokenString:
		return ir.String(t.Text), i + 1, nil

	case queryir.TokenNumber:
		v, err := parseNumber(t)
		return v, i + 1, err

	case queryir.TokenKeyword:
		switch t.Text {
		case "TRUE":
			return ir.Bool(true), i + 1, nil
		case "FALSE":
			return ir.Bool(false), i + 1, nil
		case "NULL":
			return ir.Null{}, i + 1, nil
		}
		return nil, i, errorf(t.Pos, "unexpected keyword %s", t.Text)

	case queryir.TokenIdent:
		if i+1 < len(toks) && toks[i+1].Is("(") && t.Quote == 0 {
			return parseConstructor(toks, i)
		}
		return ir.String(t.Text), i + 1, nil

	case queryir.TokenParam:
		return nil, i, errorf(t.Pos, "unbound parameter :%s", t.Text)
	}
	return nil, i, errorf(t.Pos, "unexpected %q", t.Text)
}

func parseNumber(t queryir.Token) (ir.Value, error) {
	if strings.ContainsAny(t.Text, ".eE") {
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, errorf(t.Pos, "invalid number %q", t.Text)
		}
		return ir.Double(f), nil
	}
	n, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil {
		return nil, errorf(t.Pos, "invalid integer %q", t.Text)
	}
	return ir.Int(n), nil
}

// parseConstructor reads NAME( args ) literal constructors.
func parseConstructor(toks []queryir.Token, i int) (ir.Value, int, error) {
	name := strings.ToUpper(toks[i].Text)
	pos := toks[i].Pos
	args, next, err := splitArgs(toks, i+1)
	if err != nil {
		return nil, i, err
	}

	switch name {
	case "DATETIME":
		s, err := singleString(args, pos, name)
		if err != nil {
			return nil, i, err
		}
		ts, err := ir.ParseTimestamp(s)
		if err != nil {
			return nil, i, errorf(pos, "%v", err)
		}
		return ts, next, nil

	case "BLOB":
		s, err := singleString(args, pos, name)
		if err != nil {
			return nil, i, err
		}
		return ir.Bytes(s), next, nil

	case "KEY":
		k, err := keyFromArgs(args, pos)
		if err != nil {
			return nil, i, err
		}
		return k, next, nil

	case "ARRAY":
		arr := make(ir.Array, 0, len(args))
		for _, arg := range args {
			v, err := literalFromArg(arg)
			if err != nil {
				return nil, i, err
			}
			arr = append(arr, v)
		}
		return arr, next, nil
	}
	return nil, i, errorf(pos, "unknown literal constructor %s", name)
}

// splitArgs reads a parenthesized, comma separated argument list starting
// at toks[open] == "(" and returns each argument's tokens.
func splitArgs(toks []queryir.Token, open int) ([][]queryir.Token, int, error) {
	if open >= len(toks) || !toks[open].Is("(") {
		return nil, open, errorf(-1, "expected '('")
	}
	closeIdx := matchParen(toks, open)
	if closeIdx < 0 {
		return nil, open, errorf(toks[open].Pos, "unbalanced parenthesis")
	}
	return splitTopLevel(toks[open+1:closeIdx], ","), closeIdx + 1, nil
}

// literalFromArg parses an argument that must be exactly one literal.
func literalFromArg(arg []queryir.Token) (ir.Value, error) {
	if len(arg) == 0 {
		return nil, errorf(-1, "empty argument")
	}
	v, next, err := parseLiteral(arg, 0)
	if err != nil {
		return nil, err
	}
	if next != len(arg) {
		return nil, errorf(arg[next].Pos, "unexpected %q in argument", arg[next].Text)
	}
	return v, nil
}

func singleString(args [][]queryir.Token, pos int, name string) (string, error) {
	if len(args) != 1 || len(args[0]) != 1 || args[0][0].Kind != queryir.TokenString {
		return "", errorf(pos, "%s takes one string argument", name)
	}
	return args[0][0].Text, nil
}

// keyFromArgs builds a key from KEY(kind, id, kind, id, ...) arguments.
// Kinds may be bare or quoted; ids are integers, names are strings.
func keyFromArgs(args [][]queryir.Token, pos int) (ir.Key, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, errorf(pos, "KEY takes kind/identifier pairs")
	}
	key := make(ir.Key, 0, len(args)/2)
	for j := 0; j < len(args); j += 2 {
		kindArg, idArg := args[j], args[j+1]
		if len(kindArg) != 1 || (kindArg[0].Kind != queryir.TokenIdent && kindArg[0].Kind != queryir.TokenString) {
			return nil, errorf(pos, "KEY kind must be a name")
		}
		elem := ir.PathElement{Kind: kindArg[0].Text}
		if len(idArg) != 1 {
			return nil, errorf(pos, "KEY identifier must be a single literal")
		}
		switch idArg[0].Kind {
		case queryir.TokenNumber:
			n, err := strconv.ParseInt(idArg[0].Text, 10, 64)
			if err != nil {
				return nil, errorf(idArg[0].Pos, "KEY id must be an integer")
			}
			elem.ID = n
		case queryir.TokenString:
			elem.Name = idArg[0].Text
		default:
			return nil, errorf(idArg[0].Pos, "KEY identifier must be an integer or string")
		}
		key = append(key, elem)
	}
	return key, nil
}

// matchParen returns the index of the bracket closing toks[open], or -1.
// Handles both () and [].
func matchParen(toks []queryir.Token, open int) int {
	openText := toks[open].Text
	closeText := ")"
	if openText == "[" {
		closeText = "]"
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

// splitTopLevel splits toks on a punctuation or keyword separator that is
// not nested inside brackets. An empty input yields no parts.
func splitTopLevel(toks []queryir.Token, sep string) [][]queryir.Token {
	if len(toks) == 0 {
		return nil
	}
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
