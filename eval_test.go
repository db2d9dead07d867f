package lurk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalStr(t *testing.T, s *Store, src string, limit int) *EvalResult {
	t.Helper()
	res, err := EvalSource(src, s, limit, nil)
	require.NoError(t, err)
	return res
}

func TestEvalScenarios(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expected   string
		iterations int
		limit      int
	}{
		{name: "addition", input: "(+ 1 2)", expected: "3", iterations: 3},
		{name: "if consequent", input: "(if t 5 6)", expected: "5", iterations: 3},
		{name: "if alternative", input: "(if nil 5 6)", expected: "6", iterations: 3},
		{name: "numeric equality", input: "(= 5 5)", expected: "t", iterations: 3},
		{name: "numeric inequality", input: "(= 5 6)", expected: "nil", iterations: 3},
		{
			name:       "let with three bindings",
			input:      "(let ((a 5) (b 1) (c 2)) (/ (+ a b) c))",
			expected:   "3",
			iterations: 18,
		},
		{
			name: "letrec exponentiation",
			input: `(letrec ((exp (lambda (b)
                             (lambda (e)
                               (if (= 0 e)
                                   1
                                   (* b ((exp b) (- e 1))))))))
                  ((exp 5) 3))`,
			expected:   "125",
			iterations: 91,
			limit:      256,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			limit := test.limit
			if limit == 0 {
				limit = 100
			}
			s := NewStore()
			res := evalStr(t, s, test.input, limit)
			assert.False(t, res.Output.Errored())
			assert.Equal(t, test.expected, s.Fmt(res.Output.Expr))
			assert.Equal(t, test.iterations, res.Iterations)
		})
	}
}

const fibProgram = `
(let ((fib (lambda (target)
              (letrec ((next (lambda (a b target)
                               (if (= 0 target)
                                     a
                                     (next b
                                           (+ a b)
                                           (- target 1))))))
                (next 0 1 target)))))
  (fib %d))
`

func TestEvalFibonacci(t *testing.T) {
	s := NewStore()
	res := evalStr(t, s, fmt.Sprintf(fibProgram, 100), 100_000)
	// fib(100), well within the field.
	var want F
	_, err := want.SetString("354224848179261915075")
	require.NoError(t, err)
	assert.Equal(t, s.Num(want), res.Output.Expr)

	// Small sanity anchors for the same program.
	for i, expected := range []string{"0", "1", "1", "2", "3", "5", "8"} {
		s := NewStore()
		res := evalStr(t, s, fmt.Sprintf(fibProgram, i), 100_000)
		assert.Equal(t, expected, s.Fmt(res.Output.Expr), "fib(%d)", i)
	}
}

func TestEvalDeterminism(t *testing.T) {
	run := func() ([]Frame, *Store) {
		s := NewStore()
		expr, err := s.Read(fmt.Sprintf(fibProgram, 30))
		require.NoError(t, err)
		frames, err := NewEvaluator(expr, s.InitialEmptyEnv(), s, 100_000, nil).Eval()
		require.NoError(t, err)
		return frames, s
	}
	f1, s1 := run()
	f2, s2 := run()

	require.Equal(t, len(f1), len(f2))
	for i := range f1 {
		assert.Equal(t, s1.IOToScalarVector(f1[i].Input), s2.IOToScalarVector(f2[i].Input), "frame %d input", i)
		assert.Equal(t, s1.IOToScalarVector(f1[i].Output), s2.IOToScalarVector(f2[i].Output), "frame %d output", i)
		assert.Equal(t, len(f1[i].Emitted), len(f2[i].Emitted), "frame %d emitted", i)
	}
}

func TestEvalBasics(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "self-evaluating number", input: "99", expected: "99"},
		{name: "self-evaluating string", input: `"hi"`, expected: `"hi"`},
		{name: "self-evaluating char", input: `#\q`, expected: `#\q`},
		{name: "self-evaluating keyword", input: ":k", expected: ":k"},
		{name: "quote", input: "'(1 2 3)", expected: "(1 2 3)"},
		{name: "cons", input: "(cons 1 2)", expected: "(1 . 2)"},
		{name: "car", input: "(car '(1 2))", expected: "1"},
		{name: "cdr", input: "(cdr '(1 2))", expected: "(2)"},
		{name: "car of nil", input: "(car nil)", expected: "nil"},
		{name: "car of string", input: `(car "abc")`, expected: `#\a`},
		{name: "cdr of string", input: `(cdr "abc")`, expected: `"bc"`},
		{name: "cdr of empty string", input: `(cdr "")`, expected: `""`},
		{name: "atom on atom", input: "(atom 5)", expected: "t"},
		{name: "atom on list", input: "(atom '(1))", expected: "nil"},
		{name: "eq on equal trees", input: "(eq '(1 2) '(1 2))", expected: "t"},
		{name: "eq on different trees", input: "(eq '(1 2) '(1 3))", expected: "nil"},
		{name: "subtraction", input: "(- 9 4)", expected: "5"},
		{name: "multiplication", input: "(* 6 7)", expected: "42"},
		{name: "field division", input: "(/ 10 5)", expected: "2"},
		{name: "comparison lt", input: "(< 1 2)", expected: "t"},
		{name: "comparison gt", input: "(> 1 2)", expected: "nil"},
		{name: "comparison le", input: "(<= 2 2)", expected: "t"},
		{name: "comparison ge", input: "(>= 1 2)", expected: "nil"},
		{name: "negative compares below zero", input: "(< (- 0 1) 0)", expected: "t"},
		{name: "begin empty", input: "(begin)", expected: "nil"},
		{name: "begin sequences", input: "(begin 1 2 3)", expected: "3"},
		{name: "lambda identity", input: "((lambda (x) x) 7)", expected: "7"},
		{name: "lambda two args", input: "((lambda (a b) (+ a b)) 3 4)", expected: "7"},
		{name: "lambda zero args", input: "((lambda () 42))", expected: "42"},
		{name: "higher order", input: "(((lambda (a) (lambda (b) (+ a b))) 2) 3)", expected: "5"},
		{name: "let shadowing", input: "(let ((a 1) (a 2)) a)", expected: "2"},
		{name: "let nested body", input: "(let ((a 2)) (let ((b 3)) (* a b)))", expected: "6"},
		{name: "current-env empty", input: "(current-env)", expected: "nil"},
		{name: "eval quoted form", input: "(eval '(+ 1 2))", expected: "3"},
		{name: "eval with env", input: "(eval 'a (let ((a 42)) (current-env)))", expected: "42"},
		{name: "apply", input: "(apply (lambda (x) (+ x 1)) '(41))", expected: "42"},
		{name: "num of char", input: `(num #\a)`, expected: "97"},
		{name: "char of num", input: "(char 97)", expected: `#\a`},
		{name: "u64 of num", input: "(u64 300)", expected: "300u64"},
		{name: "num of u64", input: "(num 300u64)", expected: "300"},
		{name: "u64 addition", input: "(+ 3u64 4u64)", expected: "7u64"},
		{name: "u64 wraps", input: "(+ 18446744073709551615u64 1u64)", expected: "0u64"},
		{name: "u64 division truncates", input: "(/ 7u64 2u64)", expected: "3u64"},
		{name: "mixed u64 and num", input: "(+ 1u64 2)", expected: "3"},
		{name: "string equality via eq", input: `(eq "abc" "abc")`, expected: "t"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewStore()
			res := evalStr(t, s, test.input, 1000)
			require.False(t, res.Output.Errored(), "unexpected error outcome")
			assert.Equal(t, test.expected, s.Fmt(res.Output.Expr))
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unbound variable", input: "missing"},
		{name: "unbound in env", input: "(let ((a 1)) b)"},
		{name: "division by zero", input: "(/ 1 0)"},
		{name: "u64 division by zero", input: "(/ 1u64 0u64)"},
		{name: "apply non-function", input: "(1 2)"},
		{name: "too many args", input: "((lambda (x) x) 1 2)"},
		{name: "zero-arg call of unary fun", input: "((lambda (x) x))"},
		{name: "arith on string", input: `(+ 1 "two")`},
		{name: "car of number", input: "(car 5)"},
		{name: "open of number without commitment", input: "(open 5)"},
		{name: "missing binop operand", input: "(+ 1)"},
		{name: "extra binop operand", input: "(+ 1 2 3)"},
		{name: "hide with non-numeric secret", input: `(hide "s" 5)`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewStore()
			res, err := EvalSource(test.input, s, 1000, nil)
			require.NoError(t, err)
			assert.True(t, res.Output.Errored(), "expected error outcome, got %s", s.Fmt(res.Output.Expr))
		})
	}
}

func TestEvalEmit(t *testing.T) {
	s := NewStore()
	res := evalStr(t, s, "(begin (emit 1) (emit (+ 1 1)) 3)", 1000)
	require.Len(t, res.Emitted, 2)
	assert.Equal(t, "1", s.Fmt(res.Emitted[0]))
	assert.Equal(t, "2", s.Fmt(res.Emitted[1]))
	assert.Equal(t, "3", s.Fmt(res.Output.Expr))
}

func TestEvalCommitments(t *testing.T) {
	t.Run("commit and open", func(t *testing.T) {
		s := NewStore()
		res := evalStr(t, s, "(open (commit 5))", 1000)
		assert.Equal(t, "5", s.Fmt(res.Output.Expr))
	})
	t.Run("hide and open", func(t *testing.T) {
		s := NewStore()
		res := evalStr(t, s, "(open (hide 123 'payload))", 1000)
		assert.Equal(t, "payload", s.Fmt(res.Output.Expr))
	})
	t.Run("open by numeric address", func(t *testing.T) {
		s := NewStore()
		res := evalStr(t, s, "(open (num (commit 7)))", 1000)
		assert.Equal(t, "7", s.Fmt(res.Output.Expr))
	})
	t.Run("hide secrets distinguish commitments", func(t *testing.T) {
		s := NewStore()
		res := evalStr(t, s, "(eq (hide 1 5) (hide 2 5))", 1000)
		assert.Equal(t, "nil", s.Fmt(res.Output.Expr))
	})
	t.Run("same secret same payload", func(t *testing.T) {
		s := NewStore()
		res := evalStr(t, s, "(eq (hide 1 5) (hide 1 5))", 1000)
		assert.Equal(t, "t", s.Fmt(res.Output.Expr))
	})
}

func TestEvalLimit(t *testing.T) {
	s := NewStore()
	// An unbounded loop exhausts any limit.
	src := "(letrec ((loop (lambda (x) (loop x)))) (loop 1))"
	_, err := EvalSource(src, s, 50, nil)
	var limitErr LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 50, limitErr.Limit)
}

func TestEvalTailRecursionKeepsEnvSmall(t *testing.T) {
	// The tail-recursive loop must terminate well under a quadratic budget;
	// a machine that nested tail continuations would blow through it.
	s := NewStore()
	res := evalStr(t, s, fmt.Sprintf(fibProgram, 200), 25_000)
	assert.False(t, res.Output.Errored())
}

func TestSignificantFrameCount(t *testing.T) {
	s := NewStore()
	expr, err := s.Read("(+ 1 2)")
	require.NoError(t, err)
	frames, err := NewEvaluator(expr, s.Nil(), s, 100, nil).Eval()
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, 3, SignificantFrameCount(frames))

	// Padding after the terminal state does not count.
	last := frames[len(frames)-1]
	padded := append(frames,
		Frame{Input: last.Output, Output: last.Output},
		Frame{Input: last.Output, Output: last.Output, Blank: true})
	assert.Equal(t, 3, SignificantFrameCount(padded))
}

func TestFrameChaining(t *testing.T) {
	s := NewStore()
	expr, err := s.Read("(let ((a 5) (b 1) (c 2)) (/ (+ a b) c))")
	require.NoError(t, err)
	frames, err := NewEvaluator(expr, s.Nil(), s, 100, nil).Eval()
	require.NoError(t, err)
	for i := 1; i < len(frames); i++ {
		assert.Equal(t, frames[i-1].Output, frames[i].Input, "frame %d", i)
	}
}

func TestCoprocessorDispatch(t *testing.T) {
	lang := NewLang()
	require.NoError(t, lang.AddCoprocessor("double-sum", DumbCoprocessor{}))

	s := NewStore()
	res, err := EvalSource("(double-sum 3 4)", s, 1000, lang)
	require.NoError(t, err)
	assert.Equal(t, "14", s.Fmt(res.Output.Expr))

	// Without the lang the symbol is just unbound.
	s2 := NewStore()
	res, err = EvalSource("(double-sum 3 4)", s2, 1000, nil)
	require.NoError(t, err)
	assert.True(t, res.Output.Errored())
}
