package lurk

import (
	"fmt"
)

// Wire names one variable of a constraint system.
type Wire int

// ConstraintSystem is the interface the synthesizer writes against. Two
// implementations exist: TestConstraintSystem records and checks every
// constraint, WitnessCS only tracks assignments for fast witness
// computation.
type ConstraintSystem interface {
	// Alloc allocates a witness variable. The value thunk may fail with
	// ErrAssignmentMissing when synthesizing a blank circuit.
	Alloc(name string, value func() (F, error)) Wire
	// AllocInput allocates a public-input variable.
	AllocInput(name string, value func() (F, error)) Wire
	// Constant returns the canonical wire carrying v.
	Constant(v F) Wire

	EnforceEqual(name string, a, b Wire)
	// EnforceProduct enforces a · b = c.
	EnforceProduct(name string, a, b, c Wire)
	// EnforceSum enforces a + b = c.
	EnforceSum(name string, a, b, c Wire)
	// EnforcePoseidon enforces out = H(preimage) under the arity-indexed
	// Poseidon instance.
	EnforcePoseidon(name string, preimage []Wire, out Wire)

	// Value resolves a wire's assignment.
	Value(w Wire) (F, error)
}

// AllocatedPtr pairs the tag and hash wires encoding one pointer.
type AllocatedPtr struct {
	TagW  Wire
	HashW Wire
}

// AllocatedIO is the six-wire encoding of a machine state.
type AllocatedIO struct {
	Expr AllocatedPtr
	Env  AllocatedPtr
	Cont AllocatedPtr
}

func (io AllocatedIO) wires() [6]Wire {
	return [6]Wire{
		io.Expr.TagW, io.Expr.HashW,
		io.Env.TagW, io.Env.HashW,
		io.Cont.TagW, io.Cont.HashW,
	}
}

type assignment struct {
	value F
	ok    bool
}

type constraintKind int

const (
	constraintEqual constraintKind = iota
	constraintProduct
	constraintSum
	constraintPoseidon
)

type constraint struct {
	kind     constraintKind
	name     string
	a, b, c  Wire
	preimage []Wire
	out      Wire
}

// TestConstraintSystem is the fully-checking constraint system: it keeps
// every allocation and every constraint and can decide satisfiability by
// native evaluation. It mirrors the role of a test constraint system in the
// proving backend: the folding driver synthesizes each multi-frame into one
// of these before folding the step.
type TestConstraintSystem struct {
	assignments []assignment
	inputs      []Wire
	constants   map[F]Wire
	constraints []constraint
}

// NewTestConstraintSystem returns an empty system with the conventional
// constant-one wire preallocated.
func NewTestConstraintSystem() *TestConstraintSystem {
	cs := &TestConstraintSystem{constants: make(map[F]Wire)}
	one := fUint64(1)
	cs.constants[one] = cs.alloc(one, true)
	return cs
}

func (cs *TestConstraintSystem) alloc(v F, ok bool) Wire {
	cs.assignments = append(cs.assignments, assignment{value: v, ok: ok})
	return Wire(len(cs.assignments) - 1)
}

// Alloc allocates a witness variable
func (cs *TestConstraintSystem) Alloc(name string, value func() (F, error)) Wire {
	v, err := value()
	if err != nil {
		return cs.alloc(F{}, false)
	}
	return cs.alloc(v, true)
}

// AllocInput allocates a public-input variable
func (cs *TestConstraintSystem) AllocInput(name string, value func() (F, error)) Wire {
	w := cs.Alloc(name, value)
	cs.inputs = append(cs.inputs, w)
	return w
}

// Constant interns a constant wire
func (cs *TestConstraintSystem) Constant(v F) Wire {
	if w, ok := cs.constants[v]; ok {
		return w
	}
	w := cs.alloc(v, true)
	cs.constants[v] = w
	return w
}

func (cs *TestConstraintSystem) EnforceEqual(name string, a, b Wire) {
	cs.constraints = append(cs.constraints, constraint{kind: constraintEqual, name: name, a: a, b: b})
}

func (cs *TestConstraintSystem) EnforceProduct(name string, a, b, c Wire) {
	cs.constraints = append(cs.constraints, constraint{kind: constraintProduct, name: name, a: a, b: b, c: c})
}

func (cs *TestConstraintSystem) EnforceSum(name string, a, b, c Wire) {
	cs.constraints = append(cs.constraints, constraint{kind: constraintSum, name: name, a: a, b: b, c: c})
}

func (cs *TestConstraintSystem) EnforcePoseidon(name string, preimage []Wire, out Wire) {
	pre := make([]Wire, len(preimage))
	copy(pre, preimage)
	cs.constraints = append(cs.constraints, constraint{kind: constraintPoseidon, name: name, preimage: pre, out: out})
}

// Value resolves a wire's assignment
func (cs *TestConstraintSystem) Value(w Wire) (F, error) {
	if int(w) >= len(cs.assignments) || !cs.assignments[w].ok {
		return F{}, ErrAssignmentMissing
	}
	return cs.assignments[w].value, nil
}

// NumConstraints returns how many constraints were enforced.
func (cs *TestConstraintSystem) NumConstraints() int { return len(cs.constraints) }

// NumInputs returns how many public inputs were allocated.
func (cs *TestConstraintSystem) NumInputs() int { return len(cs.inputs) }

// PublicInputs resolves the public input vector.
func (cs *TestConstraintSystem) PublicInputs() ([]F, error) {
	out := make([]F, len(cs.inputs))
	for i, w := range cs.inputs {
		v, err := cs.Value(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WitnessValues returns every assignment in allocation order; unassigned
// slots fail.
func (cs *TestConstraintSystem) WitnessValues() ([]F, error) {
	out := make([]F, len(cs.assignments))
	for i, a := range cs.assignments {
		if !a.ok {
			return nil, ErrAssignmentMissing
		}
		out[i] = a.value
	}
	return out, nil
}

// IsSatisfied evaluates every constraint natively and returns the name of
// the first violated one.
func (cs *TestConstraintSystem) IsSatisfied() error {
	for _, c := range cs.constraints {
		switch c.kind {
		case constraintEqual:
			av, err := cs.Value(c.a)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			bv, err := cs.Value(c.b)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			if !av.Equal(&bv) {
				return fmt.Errorf("constraint %s: %s != %s", c.name, av.String(), bv.String())
			}
		case constraintProduct, constraintSum:
			av, err := cs.Value(c.a)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			bv, err := cs.Value(c.b)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			cv, err := cs.Value(c.c)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			var combined F
			if c.kind == constraintProduct {
				combined.Mul(&av, &bv)
			} else {
				combined.Add(&av, &bv)
			}
			if !combined.Equal(&cv) {
				return fmt.Errorf("constraint %s: relation violated", c.name)
			}
		case constraintPoseidon:
			pre := make([]F, len(c.preimage))
			for i, w := range c.preimage {
				v, err := cs.Value(w)
				if err != nil {
					return fmt.Errorf("%s: %w", c.name, err)
				}
				pre[i] = v
			}
			ov, err := cs.Value(c.out)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			h := poseidonHash(pre)
			if !h.Equal(&ov) {
				return fmt.Errorf("constraint %s: hash mismatch", c.name)
			}
		}
	}
	return nil
}

// WitnessCS tracks assignments only. It implements ConstraintSystem so the
// same synthesis code can be replayed purely for witness computation, where
// checking constraints would be wasted work.
type WitnessCS struct {
	assignments []assignment
	constants   map[F]Wire
}

// NewWitnessCS returns an empty witness recorder.
func NewWitnessCS() *WitnessCS {
	w := &WitnessCS{constants: make(map[F]Wire)}
	one := fUint64(1)
	w.constants[one] = w.alloc(one, true)
	return w
}

func (w *WitnessCS) alloc(v F, ok bool) Wire {
	w.assignments = append(w.assignments, assignment{value: v, ok: ok})
	return Wire(len(w.assignments) - 1)
}

// Alloc records a witness assignment
func (w *WitnessCS) Alloc(name string, value func() (F, error)) Wire {
	v, err := value()
	if err != nil {
		return w.alloc(F{}, false)
	}
	return w.alloc(v, true)
}

// AllocInput records a public-input assignment
func (w *WitnessCS) AllocInput(name string, value func() (F, error)) Wire {
	return w.Alloc(name, value)
}

// Constant interns a constant
func (w *WitnessCS) Constant(v F) Wire {
	if wire, ok := w.constants[v]; ok {
		return wire
	}
	wire := w.alloc(v, true)
	w.constants[v] = wire
	return wire
}

func (w *WitnessCS) EnforceEqual(string, Wire, Wire)         {}
func (w *WitnessCS) EnforceProduct(string, Wire, Wire, Wire) {}
func (w *WitnessCS) EnforceSum(string, Wire, Wire, Wire)     {}
func (w *WitnessCS) EnforcePoseidon(string, []Wire, Wire)    {}

// Value resolves a recorded assignment
func (w *WitnessCS) Value(wire Wire) (F, error) {
	if int(wire) >= len(w.assignments) || !w.assignments[wire].ok {
		return F{}, ErrAssignmentMissing
	}
	return w.assignments[wire].value, nil
}

// Values returns every recorded assignment; unassigned slots fail.
func (w *WitnessCS) Values() ([]F, error) {
	out := make([]F, len(w.assignments))
	for i, a := range w.assignments {
		if !a.ok {
			return nil, ErrAssignmentMissing
		}
		out[i] = a.value
	}
	return out, nil
}

// GlobalAllocator interns the constants shared across a circuit: tag
// injections and well-known small numbers. Each constant is allocated once
// per constraint system.
type GlobalAllocator struct {
	cs ConstraintSystem
}

// NewGlobalAllocator wraps cs.
func NewGlobalAllocator(cs ConstraintSystem) *GlobalAllocator {
	return &GlobalAllocator{cs: cs}
}

// Tag returns the constant wire for a tag injection.
func (g *GlobalAllocator) Tag(t Tag) Wire { return g.cs.Constant(t.Field()) }

// Const returns the constant wire for an arbitrary field value.
func (g *GlobalAllocator) Const(v F) Wire { return g.cs.Constant(v) }

// U64 returns the constant wire for a small number.
func (g *GlobalAllocator) U64(v uint64) Wire { return g.cs.Constant(fUint64(v)) }
