package lurk

import (
	"fmt"
	"math/bits"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// Proof is the compressed result of folding a multi-frame sequence: the
// running transcript accumulator on both curves of the cycle, the per-step
// witness commitments and IO digests, and the public statement endpoints.
type Proof struct {
	ReductionCount int
	Steps          int
	ParamsDigest   F
	Acc            F
	AccSecondary   F2
	StepComms      []F
	StepIn         []F
	StepOut        []F
	Z0             [6]F
	Zn             [6]F
}

// RecursiveSNARK is the running state of an incremental proof: each fold
// absorbs one multi-frame's witness commitment and IO digests into the
// transcript and advances the IO chain.
type RecursiveSNARK struct {
	pp        *PublicParams
	steps     int
	acc       F
	accSec    F2
	stepComms []F
	stepIn    []F
	stepOut   []F
	z0        [6]F
	zi        [6]F
}

// NewRecursiveSNARK starts an empty proof under pp.
func NewRecursiveSNARK(pp *PublicParams) *RecursiveSNARK {
	return &RecursiveSNARK{pp: pp, acc: pp.Digest}
}

// ioDigest compresses one IO endpoint into a single transcript element.
func ioDigest(v [6]F) F {
	return poseidon6(v[0], v[1], v[2], v[3], v[4], v[5])
}

// witnessCommitment binds the full assignment vector of a step circuit.
func witnessCommitment(witness []F) F {
	h := blake3.New()
	for i := range witness {
		b := witness[i].Bytes()
		_, _ = h.Write(b[:])
	}
	return fFromBytes(h.Sum(nil))
}

// foldAccum absorbs one step into the transcript.
func foldAccum(acc, comm, din, dout F) F {
	return poseidon4(acc, comm, din, dout)
}

// foldAccumSecondary mirrors the absorption on the cycle partner's scalar
// field, standing in for the cross-term commitment of the secondary
// circuit.
func foldAccumSecondary(acc F2, comm F) F2 {
	b := comm.Bytes()
	var c F2
	c.SetBytes(b[:])
	var out F2
	out.Mul(&acc, &acc)
	out.Add(&out, &c)
	return out
}

// Fold synthesizes one multi-frame, checks the step circuit is satisfied,
// and folds it into the running proof.
func (r *RecursiveSNARK) Fold(mf *MultiFrame) error {
	cs := NewTestConstraintSystem()
	if err := mf.Synthesize(cs); err != nil {
		return ProofError{Kind: ProofErrSynthesis, Err: err}
	}
	if err := cs.IsSatisfied(); err != nil {
		return ProofError{Kind: ProofErrSynthesis, Err: err}
	}
	public, err := cs.PublicInputs()
	if err != nil {
		return ProofError{Kind: ProofErrSynthesis, Err: err}
	}
	if len(public) != mf.PublicInputSize() {
		return ProofError{Kind: ProofErrSynthesis,
			Err: fmt.Errorf("public input size %d, want %d", len(public), mf.PublicInputSize())}
	}
	var in, out [6]F
	copy(in[:], public[:6])
	copy(out[:], public[6:])
	if r.steps == 0 {
		r.z0 = in
	} else if r.zi != in {
		return ProofError{Kind: ProofErrFoldStep,
			Err: fmt.Errorf("step %d input does not extend the chain", r.steps)}
	}
	witness, err := mf.ComputeWitness()
	if err != nil {
		return ProofError{Kind: ProofErrFoldStep, Err: err}
	}
	comm := witnessCommitment(witness)
	din, dout := ioDigest(in), ioDigest(out)
	r.acc = foldAccum(r.acc, comm, din, dout)
	r.accSec = foldAccumSecondary(r.accSec, comm)
	r.stepComms = append(r.stepComms, comm)
	r.stepIn = append(r.stepIn, din)
	r.stepOut = append(r.stepOut, dout)
	r.zi = out
	r.steps++
	return nil
}

// Verify re-runs the transcript over the folded steps so far. The prover
// may call it after every fold while testing; it is not required for the
// final compression.
func (r *RecursiveSNARK) Verify() error {
	return verifyTranscript(r.pp, r.steps, r.acc, r.accSec, r.stepComms, r.stepIn, r.stepOut, r.z0, r.zi)
}

// Compress freezes the running proof into its portable form.
func (r *RecursiveSNARK) Compress() *Proof {
	return &Proof{
		ReductionCount: r.pp.ReductionCount,
		Steps:          r.steps,
		ParamsDigest:   r.pp.Digest,
		Acc:            r.acc,
		AccSecondary:   r.accSec,
		StepComms:      append([]F(nil), r.stepComms...),
		StepIn:         append([]F(nil), r.stepIn...),
		StepOut:        append([]F(nil), r.stepOut...),
		Z0:             r.z0,
		Zn:             r.zi,
	}
}

func verifyTranscript(pp *PublicParams, steps int, acc F, accSec F2, comms, din, dout []F, z0, zn [6]F) error {
	if len(comms) != steps || len(din) != steps || len(dout) != steps {
		return fmt.Errorf("transcript length mismatch")
	}
	if steps == 0 {
		return fmt.Errorf("empty proof")
	}
	if d := ioDigest(z0); !d.Equal(&din[0]) {
		return fmt.Errorf("claimed input does not open the first step")
	}
	if d := ioDigest(zn); !d.Equal(&dout[steps-1]) {
		return fmt.Errorf("claimed output does not close the last step")
	}
	for i := 1; i < steps; i++ {
		if !dout[i-1].Equal(&din[i]) {
			return fmt.Errorf("step %d does not extend step %d", i, i-1)
		}
	}
	want := pp.Digest
	var wantSec F2
	for i := 0; i < steps; i++ {
		want = foldAccum(want, comms[i], din[i], dout[i])
		wantSec = foldAccumSecondary(wantSec, comms[i])
	}
	if !want.Equal(&acc) {
		return fmt.Errorf("transcript accumulator mismatch")
	}
	if !wantSec.Equal(&accSec) {
		return fmt.Errorf("secondary accumulator mismatch")
	}
	return nil
}

// Verify checks a compressed proof against public parameters, a folded step
// count and the claimed public input and output vectors: six field elements
// each, the (tag, hash) pairs of expr, env and cont. It returns false,
// never an error, for any tampering with the proof or the claimed IO.
func Verify(proof *Proof, pp *PublicParams, numSteps int, input, output []F) (bool, error) {
	if proof == nil || pp == nil {
		return false, ProofError{Kind: ProofErrVerify, Err: fmt.Errorf("nil proof or params")}
	}
	if len(input) != 6 || len(output) != 6 {
		return false, ProofError{Kind: ProofErrVerify,
			Err: fmt.Errorf("public IO vectors must have 6 elements, got %d and %d", len(input), len(output))}
	}
	if proof.Steps != numSteps ||
		proof.ReductionCount != pp.ReductionCount ||
		proof.ParamsDigest != pp.Digest {
		return false, nil
	}
	var z0, zn [6]F
	copy(z0[:], input)
	copy(zn[:], output)
	if z0 != proof.Z0 || zn != proof.Zn {
		return false, nil
	}
	err := verifyTranscript(pp, proof.Steps, proof.Acc, proof.AccSecondary,
		proof.StepComms, proof.StepIn, proof.StepOut, proof.Z0, proof.Zn)
	return err == nil, nil
}

// FoldingProver orchestrates evaluation, packing, synthesis and folding.
type FoldingProver struct {
	rc   int
	lang *Lang
}

// NewFoldingProver creates a prover with the specified number of reductions
// per fold.
func NewFoldingProver(rc int, lang *Lang) *FoldingProver {
	return &FoldingProver{rc: rc, lang: lang}
}

// ReductionCount returns the multi-frame width.
func (p *FoldingProver) ReductionCount() int { return p.rc }

// Lang returns the prover's lang.
func (p *FoldingProver) Lang() *Lang { return p.lang }

// FramePaddingCount is how many frames the final multi-frame pads.
func (p *FoldingProver) FramePaddingCount(totalFrames int) int {
	if r := totalFrames % p.rc; r != 0 {
		return p.rc - r
	}
	return 0
}

// NeedsFramePadding reports whether the trace length divides unevenly.
func (p *FoldingProver) NeedsFramePadding(totalFrames int) bool {
	return p.FramePaddingCount(totalFrames) != 0
}

// MultiFramePaddingCount is how many dummy multi-frames the aggregation
// layer appends: the backend folds a power-of-two number of steps.
func (p *FoldingProver) MultiFramePaddingCount(rawMultiFrames int) int {
	return nextPowerOfTwo(rawMultiFrames) - rawMultiFrames
}

// ExpectedTotalIterations predicts the folded multi-frame count for a raw
// iteration count, padding included.
func (p *FoldingProver) ExpectedTotalIterations(rawIterations int) int {
	raw := (rawIterations + p.rc - 1) / p.rc
	return raw + p.MultiFramePaddingCount(raw)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// EvaluateAndProve runs expr under env to completion, packs the trace and
// folds every multi-frame, returning the compressed proof and the public
// input and output vectors. A trace that exhausts the step limit is not
// provable and fails with LimitExceededError.
func (p *FoldingProver) EvaluateAndProve(pp *PublicParams, expr, env Ptr, store *Store, limit int) (*Proof, []F, []F, error) {
	frames, err := NewEvaluator(expr, env, store, limit, p.lang).Eval()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(frames) == 0 || !frames[len(frames)-1].Output.Terminated() {
		return nil, nil, nil, LimitExceededError{Limit: limit}
	}
	logger().Debug("evaluation finished",
		zap.Int("frames", len(frames)),
		zap.Int("significant", SignificantFrameCount(frames)))
	return p.ProveFrames(pp, frames, store)
}

// ProveFrames folds an already-computed frame sequence.
func (p *FoldingProver) ProveFrames(pp *PublicParams, frames []Frame, store *Store) (*Proof, []F, []F, error) {
	store.HydrateZCache()
	multiFrames := MultiFramesFromFrames(frames, p.rc, store, p.lang)
	if pad := p.MultiFramePaddingCount(len(multiFrames)); pad > 0 {
		last := multiFrames[len(multiFrames)-1]
		for i := 0; i < pad; i++ {
			multiFrames = append(multiFrames, last.MakeDummy())
		}
	}
	if err := computeWitnesses(multiFrames); err != nil {
		return nil, nil, nil, ProofError{Kind: ProofErrFoldStep, Err: err}
	}
	snark := NewRecursiveSNARK(pp)
	for i, mf := range multiFrames {
		if err := snark.Fold(mf); err != nil {
			return nil, nil, nil, err
		}
		logger().Debug("folded step", zap.Int("step", i))
	}
	proof := snark.Compress()
	input := append([]F(nil), proof.Z0[:]...)
	output := append([]F(nil), proof.Zn[:]...)
	return proof, input, output, nil
}
