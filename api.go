package lurk

// EvalResult is what evaluating a source expression produces: the final
// machine state, the emitted values in evaluation order, and the number of
// significant reduction steps taken.
type EvalResult struct {
	Output     IO
	Emitted    []Ptr
	Iterations int
}

// EvalSource takes a source string alongside a store, a step limit and a
// lang, reads the expression and runs it to completion in the initial
// empty environment.
func EvalSource(src string, store *Store, limit int, lang *Lang) (*EvalResult, error) {
	expr, err := store.Read(src)
	if err != nil {
		return nil, err
	}
	return EvalExpr(expr, store.InitialEmptyEnv(), store, limit, lang)
}

// EvalExpr runs an already-interned expression under env.
func EvalExpr(expr, env Ptr, store *Store, limit int, lang *Lang) (*EvalResult, error) {
	frames, err := NewEvaluator(expr, env, store, limit, lang).Eval()
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, LimitExceededError{Limit: limit}
	}
	last := frames[len(frames)-1]
	if !last.Output.Terminated() {
		return nil, LimitExceededError{Limit: limit}
	}
	res := &EvalResult{Output: last.Output, Iterations: SignificantFrameCount(frames)}
	for _, f := range frames {
		res.Emitted = append(res.Emitted, f.Emitted...)
	}
	return res, nil
}

// ProveResult bundles a proof with the public IO it commits to.
type ProveResult struct {
	Proof  *Proof
	Input  []F
	Output []F
	Steps  int
}

// EvaluateAndProve evaluates expr under env, folds the trace and returns
// the proof together with the public input and output vectors. Parameters
// resolve through the registry and disk cache per cfg.
func EvaluateAndProve(expr, env Ptr, store *Store, limit int, lang *Lang, cfg *Config) (*ProveResult, error) {
	rc := cfg.GetInt("prover.reduction-count")
	pp, err := PublicParamsFor(rc, lang, cfg.GetBool("prover.abomonated"), cfg.GetString("params.dir"))
	if err != nil {
		return nil, err
	}
	prover := NewFoldingProver(rc, lang)
	proof, input, output, err := prover.EvaluateAndProve(pp, expr, env, store, limit)
	if err != nil {
		return nil, err
	}
	return &ProveResult{Proof: proof, Input: input, Output: output, Steps: proof.Steps}, nil
}

// VerifyProof checks a proof against its public IO, resolving parameters
// the same way the prover did.
func VerifyProof(proof *Proof, lang *Lang, cfg *Config, input, output []F) (bool, error) {
	pp, err := PublicParamsFor(proof.ReductionCount, lang, cfg.GetBool("prover.abomonated"), cfg.GetString("params.dir"))
	if err != nil {
		return false, err
	}
	return Verify(proof, pp, proof.Steps, input, output)
}
