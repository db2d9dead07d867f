package lurk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFormats(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "number", input: "42", expected: "42"},
		{name: "hex number", input: "0x2a", expected: "42"},
		{name: "u64 literal", input: "42u64", expected: "42u64"},
		{name: "symbol", input: "foo-bar", expected: "foo-bar"},
		{name: "nil", input: "nil", expected: "nil"},
		{name: "t", input: "t", expected: "t"},
		{name: "keyword", input: ":answer", expected: ":answer"},
		{name: "string", input: `"hello world"`, expected: `"hello world"`},
		{name: "string with escapes", input: `"a\nb"`, expected: `"a\nb"`},
		{name: "char", input: `#\a`, expected: `#\a`},
		{name: "named char", input: `#\space`, expected: `#\space`},
		{name: "empty list", input: "()", expected: "nil"},
		{name: "flat list", input: "(+ 1 2)", expected: "(+ 1 2)"},
		{name: "nested list", input: "(a (b c) d)", expected: "(a (b c) d)"},
		{name: "dotted pair", input: "(a . b)", expected: "(a . b)"},
		{name: "dotted tail", input: "(a b . c)", expected: "(a b . c)"},
		{name: "quote sugar", input: "'foo", expected: "(quote foo)"},
		{name: "quoted list", input: "'(1 2)", expected: "(quote (1 2))"},
		{name: "comment skipped", input: "; intro\n 5", expected: "5"},
		{name: "whitespace", input: "  \n\t (a\nb) ", expected: "(a b)"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewStore()
			p, err := s.Read(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, s.Fmt(p))
		})
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "only comment", input: ";; nothing"},
		{name: "unterminated list", input: "(a b"},
		{name: "stray close paren", input: ")"},
		{name: "unterminated string", input: `"abc`},
		{name: "bad escape", input: `"\q"`},
		{name: "dotted pair without head", input: "(. b)"},
		{name: "bad char name", input: `#\bogus`},
		{name: "empty keyword", input: ":"},
		{name: "bad u64", input: "99999999999999999999999999u64"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewStore()
			_, err := s.Read(test.input)
			require.Error(t, err)
			var parseErr ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.NotEmpty(t, parseErr.Message)
		})
	}
}

func TestReadErrorPosition(t *testing.T) {
	s := NewStore()
	_, err := s.Read("(a\n   \"oops")
	var parseErr ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.Position.Line)
}

func TestReadInterning(t *testing.T) {
	s := NewStore()
	a, err := s.Read("(+ x 1)")
	require.NoError(t, err)
	b, err := s.Read("(+ x 1)")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadMany(t *testing.T) {
	s := NewStore()
	exprs, err := s.ReadMany("1 (2 3) :four")
	require.NoError(t, err)
	require.Len(t, exprs, 3)
	assert.Equal(t, "1", s.Fmt(exprs[0]))
	assert.Equal(t, "(2 3)", s.Fmt(exprs[1]))
	assert.Equal(t, ":four", s.Fmt(exprs[2]))

	exprs, err = s.ReadMany("   ")
	require.NoError(t, err)
	assert.Empty(t, exprs)
}

func TestNegativeNumberPrinting(t *testing.T) {
	s := NewStore()
	p, err := s.Read("(- 0 5)")
	require.NoError(t, err)
	res, err := EvalExpr(p, s.Nil(), s, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, "-5", s.Fmt(res.Output.Expr))
}
