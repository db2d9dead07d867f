package lurk

// MultiFrame is a fixed-width window of frames proved together: the frames,
// the outer input and output IOs, and the store and lang they live in. A
// blank multi-frame (nil store) only has a shape and is used to derive
// public parameters.
type MultiFrame struct {
	Store          *Store
	Lang           *Lang
	Input          *IO
	Output         *IO
	Frames         []Frame
	ReductionCount int

	cachedWitness []F
}

// MultiFramesFromFrames packs a frame sequence into windows of rc frames.
// A short final window is padded with blank frames pinned to the last real
// frame's output, which is a fixed point of the machine, so padding keeps
// input == output and the chaining invariant intact.
func MultiFramesFromFrames(frames []Frame, rc int, store *Store, lang *Lang) []*MultiFrame {
	if len(frames) == 0 || rc <= 0 {
		return nil
	}
	n := (len(frames) + rc - 1) / rc
	multiFrames := make([]*MultiFrame, 0, n)
	for start := 0; start < len(frames); start += rc {
		end := start + rc
		if end > len(frames) {
			end = len(frames)
		}
		chunk := frames[start:end]
		last := chunk[len(chunk)-1]
		inner := make([]Frame, rc)
		copy(inner, chunk)
		for i := len(chunk); i < rc; i++ {
			inner[i] = Frame{Input: last.Output, Output: last.Output, Blank: true}
		}
		input := chunk[0].Input
		output := last.Output
		multiFrames = append(multiFrames, &MultiFrame{
			Store:          store,
			Lang:           lang,
			Input:          &input,
			Output:         &output,
			Frames:         inner,
			ReductionCount: rc,
		})
	}
	return multiFrames
}

// BlankMultiFrame is the instance public parameters are derived from: rc
// blank frames, no store, no assignments.
func BlankMultiFrame(rc int, lang *Lang) *MultiFrame {
	return &MultiFrame{
		Lang:           lang,
		Frames:         make([]Frame, rc),
		ReductionCount: rc,
	}
}

// MakeDummy clones the multi-frame's final state into a no-op instance:
// every frame asserts input == output on the last output, which holds
// trivially. Backends that want a power-of-two number of folded steps pad
// with these.
func (mf *MultiFrame) MakeDummy() *MultiFrame {
	out := *mf.Output
	frames := make([]Frame, mf.ReductionCount)
	for i := range frames {
		frames[i] = Frame{Input: out, Output: out, Blank: true}
	}
	return &MultiFrame{
		Store:          mf.Store,
		Lang:           mf.Lang,
		Input:          &out,
		Output:         &out,
		Frames:         frames,
		ReductionCount: mf.ReductionCount,
	}
}

// Precedes reports whether mf directly precedes next in a computation
// trace: mf's output is next's input, expression by expression.
func (mf *MultiFrame) Precedes(next *MultiFrame) bool {
	if mf.Output == nil || next.Input == nil {
		return false
	}
	s := mf.Store
	return s.PtrEq(mf.Output.Expr, next.Input.Expr) &&
		s.PtrEq(mf.Output.Env, next.Input.Env) &&
		s.PtrEq(mf.Output.Cont, next.Input.Cont)
}

// PublicInputSize is the width of the public statement: (tag, hash) of
// expr, env and cont, for input and output.
func (mf *MultiFrame) PublicInputSize() int { return 12 }

// NumFrames returns the reduction count.
func (mf *MultiFrame) NumFrames() int { return mf.ReductionCount }

// PublicInputs lays out the outer input and output as 12 field elements.
func (mf *MultiFrame) PublicInputs() ([]F, error) {
	if mf.Store == nil || mf.Input == nil || mf.Output == nil {
		return nil, ErrAssignmentMissing
	}
	in := mf.Store.IOToScalarVector(*mf.Input)
	out := mf.Store.IOToScalarVector(*mf.Output)
	res := make([]F, 0, 12)
	res = append(res, in[:]...)
	res = append(res, out[:]...)
	return res, nil
}

// Emitted collects the values emitted across the multi-frame, in frame
// order.
func (mf *MultiFrame) Emitted() []Ptr {
	var out []Ptr
	for _, f := range mf.Frames {
		out = append(out, f.Emitted...)
	}
	return out
}

// ComputeWitness replays synthesis into a witness-only constraint system
// and caches the assignment vector.
func (mf *MultiFrame) ComputeWitness() ([]F, error) {
	if mf.cachedWitness != nil {
		return mf.cachedWitness, nil
	}
	wcs := NewWitnessCS()
	if err := mf.Synthesize(wcs); err != nil {
		return nil, err
	}
	values, err := wcs.Values()
	if err != nil {
		return nil, err
	}
	mf.cachedWitness = values
	return values, nil
}

// CachedWitness returns the memoized witness, if ComputeWitness ran.
func (mf *MultiFrame) CachedWitness() []F { return mf.cachedWitness }
