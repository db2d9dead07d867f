package lurk

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Coprocessor is a pluggable native+circuit extension addressable by symbol.
// SimpleEvaluate implements the native semantics over already-evaluated
// arguments; Synthesize contributes the equivalent constraint-system
// encoding when HasCircuit reports one exists.
type Coprocessor interface {
	// EvalArity is the number of evaluated arguments the coprocessor
	// consumes. The machine dispatches arities 0 through 2.
	EvalArity() int
	SimpleEvaluate(store *Store, args []Ptr) (Ptr, error)
	HasCircuit() bool
	Synthesize(cs ConstraintSystem, g *GlobalAllocator, store *Store,
		args []AllocatedPtr, env, cont AllocatedPtr) (AllocatedPtr, AllocatedPtr, AllocatedPtr, error)
}

// Lang is the set of coprocessors a machine instance understands, plus a
// content-addressed key over that set. The key participates in the
// public-parameter cache lookup, so two langs with the same coprocessor
// surface share parameters.
type Lang struct {
	coprocessors map[string]Coprocessor
}

// NewLang returns a lang with no coprocessors registered.
func NewLang() *Lang {
	return &Lang{coprocessors: make(map[string]Coprocessor)}
}

// AddCoprocessor registers cproc under name. Registration of arities above 2
// fails; the machine has no continuation shape for them.
func (l *Lang) AddCoprocessor(name string, cproc Coprocessor) error {
	if cproc.EvalArity() > 2 {
		return fmt.Errorf("lang: coprocessor %q has unsupported arity %d", name, cproc.EvalArity())
	}
	l.coprocessors[name] = cproc
	return nil
}

// Lookup returns the coprocessor registered under name, or nil.
func (l *Lang) Lookup(name string) Coprocessor {
	if l == nil {
		return nil
	}
	return l.coprocessors[name]
}

// Names returns the registered coprocessor names in sorted order.
func (l *Lang) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.coprocessors))
	for name := range l.coprocessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key is the content address of the coprocessor set: a blake3 digest over
// the sorted (name, arity, circuit) triples. An empty lang has a stable
// key too.
func (l *Lang) Key() string {
	h := blake3.New()
	for _, name := range l.Names() {
		cproc := l.coprocessors[name]
		fmt.Fprintf(h, "%s:%d:%t\n", name, cproc.EvalArity(), cproc.HasCircuit())
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

func (l *Lang) String() string {
	return "lang(" + strings.Join(l.Names(), " ") + ")"
}

// DumbCoprocessor doubles the sum of its two arguments. It exists to
// exercise the dispatch and synthesis paths in tests.
type DumbCoprocessor struct{}

func (DumbCoprocessor) EvalArity() int { return 2 }

func (DumbCoprocessor) SimpleEvaluate(store *Store, args []Ptr) (Ptr, error) {
	if len(args) != 2 {
		return Ptr{}, fmt.Errorf("dumb coprocessor wants 2 args, got %d", len(args))
	}
	a, err := store.fetchNum(args[0])
	if err != nil {
		return Ptr{}, err
	}
	b, err := store.fetchNum(args[1])
	if err != nil {
		return Ptr{}, err
	}
	var out F
	out.Add(&a, &b)
	out.Double(&out)
	return store.Num(out), nil
}

func (DumbCoprocessor) HasCircuit() bool { return false }

func (DumbCoprocessor) Synthesize(cs ConstraintSystem, g *GlobalAllocator, store *Store,
	args []AllocatedPtr, env, cont AllocatedPtr) (AllocatedPtr, AllocatedPtr, AllocatedPtr, error) {
	return AllocatedPtr{}, AllocatedPtr{}, AllocatedPtr{}, fmt.Errorf("dumb coprocessor has no circuit")
}
