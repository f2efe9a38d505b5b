package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlbridge/internal/queryir"
)

func TestLex_Kinds(t *testing.T) {
	toks, err := Lex("select name FROM users WHERE age >= -5 AND tag = 'it''s' AND id = :id;")
	require.NoError(t, err)

	kinds := make([]queryir.TokenKind, len(toks))
	texts := make([]string, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
		texts[i] = tok.Text
	}
	assert.Equal(t, []string{
		"SELECT", "name", "FROM", "users", "WHERE", "age", ">=", "-5",
		"AND", "tag", "=", "it's", "AND", "id", "=", "id",
	}, texts)
	assert.Equal(t, queryir.TokenKeyword, kinds[0])
	assert.Equal(t, queryir.TokenNumber, kinds[7])
	assert.Equal(t, queryir.TokenString, kinds[11])
	assert.Equal(t, queryir.TokenParam, kinds[15])
}

func TestLex_MinusAfterIdentIsOperator(t *testing.T) {
	toks, err := Lex("a -1")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, queryir.TokenPunct, toks[1].Kind)
	assert.Equal(t, "1", toks[2].Text)
}

func TestLex_Operators(t *testing.T) {
	toks, err := Lex("a == 1 AND b <> 2 AND c != 3")
	require.NoError(t, err)
	assert.Equal(t, "=", toks[1].Text)
	assert.Equal(t, "<>", toks[5].Text)
	assert.Equal(t, "!=", toks[9].Text)
}

func TestLex_Positions(t *testing.T) {
	text := "SELECT * FROM users"
	toks, err := Lex(text)
	require.NoError(t, err)
	for _, tok := range toks {
		assert.Equal(t, tokenText(tok), text[tok.Pos:tok.End])
	}
}

func TestLex_Errors(t *testing.T) {
	for _, in := range []string{
		"SELECT 'unterminated",
		"SELECT a ! b",
		"SELECT 1; SELECT 2",
		"SELECT a # b",
	} {
		_, err := Lex(in)
		var synErr *Error
		assert.ErrorAs(t, err, &synErr, in)
	}
}

func TestLex_Comments(t *testing.T) {
	toks, err := Lex("SELECT * -- everything\nFROM users")
	require.NoError(t, err)
	assert.Len(t, toks, 4)
}

func TestRender_RoundTrip(t *testing.T) {
	inputs := []string{
		"SELECT name, age FROM users WHERE age > 15 ORDER BY age DESC LIMIT 1",
		"SELECT COUNT(*) FROM users WHERE tags IN ARRAY('a', 'b')",
		"SELECT * FROM `my kind` WHERE __key__ = KEY(users, 'alice')",
		"SELECT * FROM users WHERE name = 'O''Brien'",
	}
	for _, in := range inputs {
		toks, err := Lex(in)
		require.NoError(t, err)
		rendered := Render(toks)
		again, err := Lex(rendered)
		require.NoError(t, err)
		require.Len(t, again, len(toks))
		for i := range toks {
			assert.Equal(t, toks[i].Kind, again[i].Kind)
			assert.Equal(t, toks[i].Text, again[i].Text)
		}
	}
}

func TestRender_Spacing(t *testing.T) {
	toks, err := Lex("SELECT  COUNT ( * )  FROM users WHERE a IN ( 1 , 2 )")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM users WHERE a IN (1, 2)", Render(toks))
}
