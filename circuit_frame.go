package lurk

import (
	"fmt"
)

// Synthesize encodes the multi-frame into cs: twelve public wires for the
// outer input and output, one gadget per frame with the output wires of
// frame i threaded in as the input wires of frame i+1, and a final equality
// binding the last frame's output to the outer output wires.
func (mf *MultiFrame) Synthesize(cs ConstraintSystem) error {
	g := NewGlobalAllocator(cs)

	input, err := mf.allocOuterIO(cs, "input", mf.Input)
	if err != nil {
		return err
	}
	output, err := mf.allocOuterIO(cs, "output", mf.Output)
	if err != nil {
		return err
	}

	cur := input
	for i, frame := range mf.Frames {
		cur, err = mf.synthesizeFrame(cs, g, i, frame, cur)
		if err != nil {
			return err
		}
	}

	curW, outW := cur.wires(), output.wires()
	for i := range curW {
		cs.EnforceEqual(fmt.Sprintf("outer output %d is correct", i), curW[i], outW[i])
	}
	return nil
}

// allocOuterIO inputizes the six wires of one endpoint of the public
// statement. A blank multi-frame allocates them unassigned.
func (mf *MultiFrame) allocOuterIO(cs ConstraintSystem, name string, io *IO) (AllocatedIO, error) {
	missing := func() (F, error) { return F{}, ErrAssignmentMissing }
	vals := [6]func() (F, error){missing, missing, missing, missing, missing, missing}
	if mf.Store != nil && io != nil {
		v := mf.Store.IOToScalarVector(*io)
		for i := range v {
			v := v[i]
			vals[i] = func() (F, error) { return v, nil }
		}
	}
	var out AllocatedIO
	comps := []struct {
		ptr  *AllocatedPtr
		what string
	}{
		{&out.Expr, "expr"}, {&out.Env, "env"}, {&out.Cont, "cont"},
	}
	for i, c := range comps {
		c.ptr.TagW = cs.AllocInput(fmt.Sprintf("%s %s tag", name, c.what), vals[2*i])
		c.ptr.HashW = cs.AllocInput(fmt.Sprintf("%s %s hash", name, c.what), vals[2*i+1])
	}
	return out, nil
}

// synthesizeFrame emits the gadget for one reduction step and returns the
// frame's output wires. Blank frames allocate an output equal to their
// input and nothing else.
func (mf *MultiFrame) synthesizeFrame(cs ConstraintSystem, g *GlobalAllocator, i int, frame Frame, in AllocatedIO) (AllocatedIO, error) {
	ns := fmt.Sprintf("frame %d", i)
	if frame.Blank || mf.Store == nil {
		out := mf.allocIO(cs, ns+" output", frame.Output)
		inW, outW := in.wires(), out.wires()
		for j := range inW {
			cs.EnforceEqual(fmt.Sprintf("%s blank io %d", ns, j), inW[j], outW[j])
		}
		return out, nil
	}

	s := mf.Store

	// The incoming wires must agree with the witnessed input of this frame;
	// a mismatch here means the trace was spliced.
	inZ := s.IOToScalarVector(frame.Input)
	inW := in.wires()
	for j := range inW {
		cs.EnforceEqual(fmt.Sprintf("%s input %d matches witness", ns, j), inW[j], g.Const(inZ[j]))
	}

	// Cons, Fun and Thunk pointers and continuation records dereferenced by
	// the step are accompanied by a Poseidon gadget tying the parent hash to
	// its children; Comm, Str, Sym and Key pointers are not opened.
	if err := mf.synthesizeOpenings(cs, g, ns, frame, in); err != nil {
		return AllocatedIO{}, err
	}

	out := mf.allocIO(cs, ns+" output", frame.Output)
	if err := mf.synthesizeStepRelations(cs, g, ns, frame, in, out); err != nil {
		return AllocatedIO{}, err
	}
	return out, nil
}

// allocIO allocates six witness wires for an intermediate IO.
func (mf *MultiFrame) allocIO(cs ConstraintSystem, name string, io IO) AllocatedIO {
	missing := func() (F, error) { return F{}, ErrAssignmentMissing }
	vals := [6]func() (F, error){missing, missing, missing, missing, missing, missing}
	if mf.Store != nil {
		v := mf.Store.IOToScalarVector(io)
		for i := range v {
			v := v[i]
			vals[i] = func() (F, error) { return v, nil }
		}
	}
	return AllocatedIO{
		Expr: AllocatedPtr{
			TagW:  cs.Alloc(name+" expr tag", vals[0]),
			HashW: cs.Alloc(name+" expr hash", vals[1]),
		},
		Env: AllocatedPtr{
			TagW:  cs.Alloc(name+" env tag", vals[2]),
			HashW: cs.Alloc(name+" env hash", vals[3]),
		},
		Cont: AllocatedPtr{
			TagW:  cs.Alloc(name+" cont tag", vals[4]),
			HashW: cs.Alloc(name+" cont hash", vals[5]),
		},
	}
}

// synthesizeOpenings proves the hash preimages of the pointers the step
// dereferences: the control expression, the environment head when the step
// resolves a symbol, and the continuation record. Which expression tags are
// opened is up to openPtr.
func (mf *MultiFrame) synthesizeOpenings(cs ConstraintSystem, g *GlobalAllocator, ns string, frame Frame, in AllocatedIO) error {
	s := mf.Store
	if err := mf.openPtr(cs, g, ns+" expr", frame.Input.Expr, in.Expr.HashW); err != nil {
		return err
	}
	if frame.Input.Expr.Tag == TagSym && frame.Input.Env.Tag == TagCons {
		if err := mf.openPtr(cs, g, ns+" env", frame.Input.Env, in.Env.HashW); err != nil {
			return err
		}
	}
	if cell, err := s.fetchCont(frame.Input.Cont); err == nil && cell.N > 0 {
		if err := mf.openCont(cs, g, ns+" cont", frame.Input.Cont, in.Cont.HashW); err != nil {
			return err
		}
	}
	return nil
}

// openPtr adds the Poseidon constraint for one dereference, allocating the
// children's (tag, hash) pairs as witnesses. Only Cons, Fun and Thunk
// pointers are opened; opaque pointers and every other tag (atoms, Comm,
// Str, Sym, Key) add no constraint.
func (mf *MultiFrame) openPtr(cs ConstraintSystem, g *GlobalAllocator, ns string, p Ptr, parentHash Wire) error {
	if p.Opaque() {
		return nil
	}
	s := mf.Store
	var children []ZPtr
	switch p.Tag {
	case TagCons:
		a, d, err := s.fetchCons(p)
		if err != nil {
			return err
		}
		children = []ZPtr{s.HashPtr(a), s.HashPtr(d)}
	case TagFun:
		cell, err := s.fetchFun(p)
		if err != nil {
			return err
		}
		children = []ZPtr{s.HashPtr(cell.Arg), s.HashPtr(cell.Body), s.HashPtr(cell.Env)}
	case TagThunk:
		// A thunk has two children but hashes under the wide three-child
		// preimage; the gadget pads the third pair with zeros to match.
		cell, err := s.fetchThunk(p)
		if err != nil {
			return err
		}
		children = []ZPtr{s.HashPtr(cell.Value), s.HashPtr(cell.Cont), {Tag: TagNil, Hash: F{}}}
	default:
		return nil
	}
	preimage := make([]Wire, 0, len(children)*2)
	for j, z := range children {
		z := z
		preimage = append(preimage,
			cs.Alloc(fmt.Sprintf("%s child %d tag", ns, j), func() (F, error) { return z.Tag.Field(), nil }),
			cs.Alloc(fmt.Sprintf("%s child %d hash", ns, j), func() (F, error) { return z.Hash, nil }),
		)
	}
	cs.EnforcePoseidon(ns+" preimage", preimage, parentHash)
	return nil
}

// openCont proves the preimage of a continuation record: the operator slot
// followed by the component pointers, zero-padded to four pairs.
func (mf *MultiFrame) openCont(cs ConstraintSystem, g *GlobalAllocator, ns string, p Ptr, parentHash Wire) error {
	s := mf.Store
	cell, err := s.fetchCont(p)
	if err != nil {
		return err
	}
	pairs := s.contPairs(cell)
	preimage := make([]Wire, 8)
	for j := range pairs {
		v := pairs[j]
		preimage[j] = cs.Alloc(fmt.Sprintf("%s slot %d", ns, j), func() (F, error) { return v, nil })
	}
	cs.EnforcePoseidon(ns+" preimage", preimage, parentHash)
	return nil
}

// synthesizeStepRelations dispatches on the input expression and
// continuation tags and enforces the reduction rule's algebraic content:
// the tag injections of both endpoints, the arithmetic relation for binary
// operators, and the witnessed output values.
func (mf *MultiFrame) synthesizeStepRelations(cs ConstraintSystem, g *GlobalAllocator, ns string, frame Frame, in, out AllocatedIO) error {
	s := mf.Store

	// Tag-value equality: the injection from tag enum to field is fixed.
	cs.EnforceEqual(ns+" input expr tag injection", in.Expr.TagW, g.Tag(frame.Input.Expr.Tag))
	cs.EnforceEqual(ns+" input cont tag injection", in.Cont.TagW, g.Tag(frame.Input.Cont.Tag))
	cs.EnforceEqual(ns+" output expr tag injection", out.Expr.TagW, g.Tag(frame.Output.Expr.Tag))
	cs.EnforceEqual(ns+" output cont tag injection", out.Cont.TagW, g.Tag(frame.Output.Cont.Tag))

	// The witnessed output is pinned: the prover cannot claim a different
	// successor state than the one the machine produced.
	outZ := s.IOToScalarVector(frame.Output)
	outW := out.wires()
	for j := range outW {
		cs.EnforceEqual(fmt.Sprintf("%s output %d matches witness", ns, j), outW[j], g.Const(outZ[j]))
	}

	// Arithmetic steps additionally carry the operator's defining relation
	// between the two operands and the result.
	if frame.Input.Cont.Tag == ContBinop2 {
		if cell, err := s.fetchCont(frame.Input.Cont); err == nil {
			mf.synthesizeArith(cs, g, ns, cell, frame)
		}
	}
	return nil
}

// synthesizeArith enforces c = a ∘ b for the field arithmetic operators.
// The quotient rule is multiplicative: q · b = a.
func (mf *MultiFrame) synthesizeArith(cs ConstraintSystem, g *GlobalAllocator, ns string, cell contCell, frame Frame) {
	s := mf.Store
	aPtr, bPtr := cell.Comps[0], frame.Input.Expr
	// The result rides out inside a thunk unless the step terminated.
	resPtr := frame.Output.Expr
	if resPtr.Tag == TagThunk {
		if tc, err := s.fetchThunk(resPtr); err == nil {
			resPtr = tc.Value
		}
	}
	if aPtr.Tag != TagNum || bPtr.Tag != TagNum || resPtr.Tag != TagNum {
		return
	}
	av, errA := s.fetchNum(aPtr)
	bv, errB := s.fetchNum(bPtr)
	cv, errC := s.fetchNum(resPtr)
	if errA != nil || errB != nil || errC != nil {
		return
	}
	a := cs.Alloc(ns+" operand a", func() (F, error) { return av, nil })
	b := cs.Alloc(ns+" operand b", func() (F, error) { return bv, nil })
	c := cs.Alloc(ns+" result", func() (F, error) { return cv, nil })
	switch cell.Op {
	case Op2Sum:
		cs.EnforceSum(ns+" sum", a, b, c)
	case Op2Diff:
		cs.EnforceSum(ns+" diff", c, b, a)
	case Op2Product:
		cs.EnforceProduct(ns+" product", a, b, c)
	case Op2Quotient:
		cs.EnforceProduct(ns+" quotient", c, b, a)
	}
}
