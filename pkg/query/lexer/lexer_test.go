package lexer_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/query/lexer"
	"github.com/solidb/solidb/pkg/query/token"
	"github.com/stretchr/testify/require"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	var out []token.Kind
	for _, tok := range toks {
		out = append(out, tok.Kind)
	}
	return out
}

func TestTokenizeForFilterReturn(t *testing.T) {
	got := kinds(t, `FOR u IN users FILTER u.age >= 18 RETURN u`)
	require.Equal(t, []token.Kind{
		token.FOR, token.IDENT, token.IN_KW, token.IDENT,
		token.FILTER, token.IDENT, token.DOT, token.IDENT, token.GTE, token.INT,
		token.RETURN, token.IDENT, token.EOF,
	}, got)
}

func TestTokenizeBindVarAndOperators(t *testing.T) {
	got := kinds(t, `@name == "x" AND 1 ?? 2`)
	require.Contains(t, got, token.BINDVAR)
	require.Contains(t, got, token.EQ)
	require.Contains(t, got, token.STRING)
	require.Contains(t, got, token.AND)
	require.Contains(t, got, token.COALESCE)
}

func TestTokenizeCommentIsSkipped(t *testing.T) {
	got := kinds(t, "RETURN 1 -- trailing comment\n")
	require.Equal(t, []token.Kind{token.RETURN, token.INT, token.EOF}, got)
}

func TestTokenizeBacktickIdentifier(t *testing.T) {
	got := kinds(t, "FOR `my-coll` IN `my-coll` RETURN 1")
	require.Equal(t, token.IDENT, got[1])
}

func TestUnterminatedStringErrors(t *testing.T) {
	_, err := lexer.Tokenize(`RETURN "unterminated`)
	require.Error(t, err)
}
