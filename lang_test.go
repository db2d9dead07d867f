package lurk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unaryCproc struct{}

func (unaryCproc) EvalArity() int { return 1 }

func (unaryCproc) SimpleEvaluate(store *Store, args []Ptr) (Ptr, error) {
	v, err := store.fetchNum(args[0])
	if err != nil {
		return Ptr{}, err
	}
	var out F
	out.Square(&v)
	return store.Num(out), nil
}

func (unaryCproc) HasCircuit() bool { return false }

func (unaryCproc) Synthesize(ConstraintSystem, *GlobalAllocator, *Store, []AllocatedPtr, AllocatedPtr, AllocatedPtr) (AllocatedPtr, AllocatedPtr, AllocatedPtr, error) {
	return AllocatedPtr{}, AllocatedPtr{}, AllocatedPtr{}, fmt.Errorf("no circuit")
}

type wideCproc struct{}

func (wideCproc) EvalArity() int { return 3 }
func (wideCproc) SimpleEvaluate(*Store, []Ptr) (Ptr, error) {
	return Ptr{}, fmt.Errorf("unreachable")
}
func (wideCproc) HasCircuit() bool { return false }
func (wideCproc) Synthesize(ConstraintSystem, *GlobalAllocator, *Store, []AllocatedPtr, AllocatedPtr, AllocatedPtr) (AllocatedPtr, AllocatedPtr, AllocatedPtr, error) {
	return AllocatedPtr{}, AllocatedPtr{}, AllocatedPtr{}, fmt.Errorf("no circuit")
}

func TestLangRegistration(t *testing.T) {
	lang := NewLang()
	assert.Nil(t, lang.Lookup("square"))

	require.NoError(t, lang.AddCoprocessor("square", unaryCproc{}))
	assert.NotNil(t, lang.Lookup("square"))
	assert.Equal(t, []string{"square"}, lang.Names())

	// The machine has no continuation shape for arity 3.
	assert.Error(t, lang.AddCoprocessor("wide", wideCproc{}))
}

func TestLangKey(t *testing.T) {
	empty := NewLang()
	assert.Equal(t, empty.Key(), NewLang().Key())

	withOne := NewLang()
	require.NoError(t, withOne.AddCoprocessor("square", unaryCproc{}))
	assert.NotEqual(t, empty.Key(), withOne.Key())

	// Registration order does not matter.
	a := NewLang()
	require.NoError(t, a.AddCoprocessor("square", unaryCproc{}))
	require.NoError(t, a.AddCoprocessor("double-sum", DumbCoprocessor{}))
	b := NewLang()
	require.NoError(t, b.AddCoprocessor("double-sum", DumbCoprocessor{}))
	require.NoError(t, b.AddCoprocessor("square", unaryCproc{}))
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), withOne.Key())
}

func TestUnaryCoprocessorDispatch(t *testing.T) {
	lang := NewLang()
	require.NoError(t, lang.AddCoprocessor("square", unaryCproc{}))

	s := NewStore()
	res, err := EvalSource("(square (+ 2 3))", s, 1000, lang)
	require.NoError(t, err)
	assert.Equal(t, "25", s.Fmt(res.Output.Expr))
}

func TestCoprocessorErrorBecomesTraceError(t *testing.T) {
	lang := NewLang()
	require.NoError(t, lang.AddCoprocessor("square", unaryCproc{}))

	s := NewStore()
	res, err := EvalSource(`(square "nope")`, s, 1000, lang)
	require.NoError(t, err)
	assert.True(t, res.Output.Errored())
}
