package statement

import (
	"fmt"
	"strings"

	"github.com/roach88/gqlbridge/internal/queryir"
)

// keywords are the reserved words the reader recognizes.
// Function-like names (KEY, ARRAY, BLOB, DATETIME, COUNT, FIRST, ...) are
// deliberately identifiers so that kinds and properties may share them.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "IS": true, "NULL": true, "ORDER": true,
	"BY": true, "ASC": true, "DESC": true, "LIMIT": true, "OFFSET": true,
	"DISTINCT": true, "ON": true, "AS": true, "OVER": true, "AGGREGATE": true,
	"CONTAINS": true, "HAS": true, "ANCESTOR": true, "DESCENDANT": true,
	"TRUE": true, "FALSE": true, "GROUP": true, "HAVING": true,
	"PARTITION": true, "INSERT": true, "INTO": true, "VALUES": true,
	"UPDATE": true, "SET": true, "DELETE": true,
}

// Error reports a statement that cannot be read.
type Error struct {
	Pos     int
	Message string
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
	}
	return "syntax error: " + e.Message
}

func errorf(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Lex splits statement text into tokens.
//
// Strings may be quoted with ' or " and escape their quote by doubling it.
// Identifiers may be quoted with backticks. A minus sign directly before a
// number is folded into the number when it cannot be a binary operator.
// A trailing semicolon is ignored.
func Lex(text string) ([]queryir.Token, error) {
	var toks []queryir.Token
	i := 0
	n := len(text)

	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && text[i+1] == '-':
			for i < n && text[i] != '\n' {
				i++
			}

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(text[i]) {
				i++
			}
			word := text[start:i]
			if upper := strings.ToUpper(word); keywords[upper] {
				toks = append(toks, queryir.Token{Kind: queryir.TokenKeyword, Text: upper, Pos: start, End: i})
			} else {
				toks = append(toks, queryir.Token{Kind: queryir.TokenIdent, Text: word, Pos: start, End: i})
			}

		case c == '\'' || c == '"' || c == '`':
			start := i
			body, next, ok := scanQuoted(text, i)
			if !ok {
				return nil, errorf(start, "unterminated quoted literal")
			}
			kind := queryir.TokenString
			if c == '`' {
				kind = queryir.TokenIdent
			}
			toks = append(toks, queryir.Token{Kind: kind, Text: body, Quote: c, Pos: start, End: next})
			i = next

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(text[i+1])):
			start := i
			i = scanNumber(text, i)
			toks = append(toks, queryir.Token{Kind: queryir.TokenNumber, Text: text[start:i], Pos: start, End: i})

		case c == '-' && i+1 < n && (isDigit(text[i+1]) || text[i+1] == '.') && minusIsSign(toks):
			start := i
			i = scanNumber(text, i+1)
			toks = append(toks, queryir.Token{Kind: queryir.TokenNumber, Text: text[start:i], Pos: start, End: i})

		case c == ':' && i+1 < n && isIdentStart(text[i+1]):
			start := i
			i++
			for i < n && isIdentPart(text[i]) {
				i++
			}
			toks = append(toks, queryir.Token{Kind: queryir.TokenParam, Text: text[start+1 : i], Pos: start, End: i})

		case c == '!' || c == '<' || c == '>' || c == '=':
			start := i
			src := opSource(text, start)
			if src == "!" {
				return nil, errorf(start, "unexpected '!'")
			}
			op := src
			if op == "==" {
				op = "="
			}
			i += len(src)
			toks = append(toks, queryir.Token{Kind: queryir.TokenOperator, Text: op, Pos: start, End: i})

		case strings.IndexByte("()[],.*+-/%", c) >= 0:
			toks = append(toks, queryir.Token{Kind: queryir.TokenPunct, Text: string(c), Pos: i, End: i + 1})
			i++

		case c == ';':
			rest := strings.TrimSpace(text[i+1:])
			if rest != "" {
				return nil, errorf(i, "multiple statements are not supported")
			}
			i = n

		default:
			return nil, errorf(i, "unexpected character %q", c)
		}
	}
	return toks, nil
}

// opSource returns the operator text as written at pos (one or two bytes).
func opSource(text string, pos int) string {
	if pos+1 < len(text) {
		switch text[pos : pos+2] {
		case "!=", "<>", "<=", ">=", "==":
			return text[pos : pos+2]
		}
	}
	return text[pos : pos+1]
}

// scanQuoted reads a quoted run starting at text[start] and returns the
// unescaped body and the offset just past the closing quote.
func scanQuoted(text string, start int) (string, int, bool) {
	q := text[start]
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		if text[i] == q {
			if i+1 < len(text) && text[i+1] == q {
				b.WriteByte(q)
				i += 2
				continue
			}
			return b.String(), i + 1, true
		}
		b.WriteByte(text[i])
		i++
	}
	return "", i, false
}

func scanNumber(text string, i int) int {
	n := len(text)
	for i < n && isDigit(text[i]) {
		i++
	}
	if i < n && text[i] == '.' {
		i++
		for i < n && isDigit(text[i]) {
			i++
		}
	}
	if i < n && (text[i] == 'e' || text[i] == 'E') {
		j := i + 1
		if j < n && (text[j] == '+' || text[j] == '-') {
			j++
		}
		if j < n && isDigit(text[j]) {
			i = j
			for i < n && isDigit(text[i]) {
				i++
			}
		}
	}
	return i
}

// minusIsSign reports whether a '-' following toks starts a negative number.
func minusIsSign(toks []queryir.Token) bool {
	if len(toks) == 0 {
		return true
	}
	prev := toks[len(toks)-1]
	switch prev.Kind {
	case queryir.TokenOperator, queryir.TokenKeyword:
		return true
	case queryir.TokenPunct:
		return prev.Text == "(" || prev.Text == "[" || prev.Text == ","
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Render joins tokens into normalized single-spaced text.
//
// No space is written inside brackets, before commas, around dots, or
// between a function name and its opening parenthesis. Lex(Render(t))
// yields tokens equal to t apart from positions.
func Render(toks []queryir.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && needsSpace(toks[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(tokenText(t))
	}
	return b.String()
}

func needsSpace(prev, cur queryir.Token) bool {
	if prev.Kind == queryir.TokenPunct && (prev.Text == "(" || prev.Text == "[" || prev.Text == ".") {
		return false
	}
	if cur.Kind == queryir.TokenPunct {
		switch cur.Text {
		case ")", "]", ",", ".":
			return false
		case "(":
			return prev.Kind != queryir.TokenIdent
		}
	}
	return true
}

func tokenText(t queryir.Token) string {
	switch t.Kind {
	case queryir.TokenString:
		q := string(t.Quote)
		if t.Quote == 0 {
			q = "'"
		}
		return q + strings.ReplaceAll(t.Text, q, q+q) + q
	case queryir.TokenIdent:
		if t.Quote == '`' {
			return "`" + strings.ReplaceAll(t.Text, "`", "``") + "`"
		}
		return t.Text
	case queryir.TokenParam:
		return ":" + t.Text
	default:
		return t.Text
	}
}

// synthetic creates a token that does not originate from source text.
func synthetic(kind queryir.TokenKind, text string) queryir.Token {
	return queryir.Token{Kind: kind, Text: text, Pos: -1, End: -1}
}

// Synthetic token constructors used by rewrites.
func Keyword(text string) queryir.Token { return synthetic(queryir.TokenKeyword, strings.ToUpper(text)) }
func Ident(text string) queryir.Token   { return synthetic(queryir.TokenIdent, text) }
func Punct(text string) queryir.Token   { return synthetic(queryir.TokenPunct, text) }
func Number(text string) queryir.Token  { return synthetic(queryir.TokenNumber, text) }
func Op(text string) queryir.Token      { return synthetic(queryir.TokenOperator, text) }
func Str(text string) queryir.Token {
	t := synthetic(queryir.TokenString, text)
	t.Quote = '\''
	return t
}
