package lurk

// IO is the full state of the machine: control expression, environment and
// continuation.
type IO struct {
	Expr Ptr
	Env  Ptr
	Cont Ptr
}

// Terminated reports whether the state is a fixed point of the step
// function.
func (io IO) Terminated() bool {
	return io.Cont.Tag == ContTerminal || io.Cont.Tag == ContError
}

// Errored reports whether evaluation ended in the error continuation.
func (io IO) Errored() bool { return io.Cont.Tag == ContError }

// Frame records exactly one reduction step: the IO it consumed, the IO it
// produced, and any values emitted while applying an emit continuation. A
// blank frame is a padding placeholder that only asserts input == output.
type Frame struct {
	Input   IO
	Output  IO
	Emitted []Ptr
	Blank   bool
}

// Evaluator drives the machine from an initial IO until it reaches a
// terminal continuation or runs out of step budget.
type Evaluator struct {
	store *Store
	lang  *Lang
	limit int
	io    IO
}

// NewEvaluator prepares an evaluation of expr under env.
func NewEvaluator(expr, env Ptr, store *Store, limit int, lang *Lang) *Evaluator {
	return &Evaluator{
		store: store,
		lang:  lang,
		limit: limit,
		io:    IO{Expr: expr, Env: env, Cont: store.ContOutermost()},
	}
}

// Eval runs the machine and returns the frame sequence. The sequence is
// deterministic: same initial IO and store content, same frames, byte for
// byte. Program-level failures terminate the trace in the error
// continuation and are not Go errors; only malformed store accesses are.
func (e *Evaluator) Eval() ([]Frame, error) {
	frames := make([]Frame, 0, 128)
	io := e.io
	for i := 0; i < e.limit; i++ {
		if io.Terminated() {
			break
		}
		out, emitted, err := e.store.step(io, e.lang)
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Input: io, Output: out, Emitted: emitted})
		io = out
	}
	return frames, nil
}

// SignificantFrameCount counts the frames that perform real reduction work:
// everything before the machine first reaches a terminal state, excluding
// padding.
func SignificantFrameCount(frames []Frame) int {
	n := 0
	for _, f := range frames {
		if f.Blank || f.Input.Terminated() {
			break
		}
		n++
	}
	return n
}

// control is the intra-step continuation of the reducer: a step may return
// a new IO directly, or apply the current continuation to a value, or wrap
// a value in a thunk.
type control struct {
	io IO
}

func ret(expr, env, cont Ptr) (control, error) {
	return control{io: IO{Expr: expr, Env: env, Cont: cont}}, nil
}

// step performs one reduction. It is a pure function of the input IO and
// the store content; terminal states are fixed points.
func (s *Store) step(in IO, lang *Lang) (IO, []Ptr, error) {
	if in.Terminated() {
		return in, nil, nil
	}
	var emitted []Ptr
	ctl, err := s.reduce(in, lang, &emitted)
	if err != nil {
		return IO{}, nil, err
	}
	return ctl.io, emitted, nil
}

func (s *Store) reduce(in IO, lang *Lang, emitted *[]Ptr) (control, error) {
	expr, env, cont := in.Expr, in.Env, in.Cont
	switch {
	case expr.Tag == TagThunk:
		cell, err := s.fetchThunk(expr)
		if err != nil {
			return control{}, err
		}
		return s.applyCont(cell.Value, env, cell.Cont, lang, emitted)
	case expr.Tag.selfEvaluating():
		return s.applyCont(expr, env, cont, lang, emitted)
	case expr.Tag == TagSym:
		name, err := s.fetchSym(expr)
		if err != nil {
			return control{}, err
		}
		if name == "t" {
			return s.applyCont(expr, env, cont, lang, emitted)
		}
		return s.lookup(expr, env, cont, lang, emitted)
	case expr.Tag == TagCons:
		return s.reduceCons(in, lang, emitted)
	default:
		return s.errCtl(expr, env)
	}
}

// errCtl moves the machine into the error continuation, which is terminal.
// The offending expression stays visible in the final state.
func (s *Store) errCtl(expr, env Ptr) (control, error) {
	return ret(expr, env, s.errCont)
}

// lookup resolves one environment binding per step, chaining through Lookup
// continuations, so deep lookups cost iterations the circuit can meter.
func (s *Store) lookup(expr, env, cont Ptr, lang *Lang, emitted *[]Ptr) (control, error) {
	if env.Tag == TagNil {
		return s.errCtl(expr, env)
	}
	binding, err := s.car(env)
	if err != nil {
		return control{}, err
	}
	smaller, err := s.cdr(env)
	if err != nil {
		return control{}, err
	}
	if binding.Tag == TagNil {
		return s.errCtl(expr, env)
	}
	varOrRec, err := s.car(binding)
	if err != nil {
		return control{}, err
	}
	val, err := s.cdr(binding)
	if err != nil {
		return control{}, err
	}
	switch varOrRec.Tag {
	case TagSym:
		if varOrRec == expr {
			return s.applyCont(val, env, cont, lang, emitted)
		}
		return ret(expr, smaller, s.lookupCont(env, cont))
	case TagCons:
		// The binding is a recursive block: a list of (var . val) pairs
		// installed by letrec.
		recBinding := varOrRec
		v2, err := s.car(recBinding)
		if err != nil {
			return control{}, err
		}
		val2, err := s.cdr(recBinding)
		if err != nil {
			return control{}, err
		}
		if v2 == expr {
			if val2.Tag == TagFun {
				val2, err = s.extendClosure(val2, binding)
				if err != nil {
					return control{}, err
				}
			}
			return s.applyCont(val2, env, cont, lang, emitted)
		}
		smallerRec, err := s.cdr(binding)
		if err != nil {
			return control{}, err
		}
		envToUse := smaller
		if smallerRec.Tag != TagNil {
			envToUse = s.Cons(smallerRec, smaller)
		}
		return ret(expr, envToUse, s.lookupCont(env, cont))
	default:
		return s.errCtl(expr, env)
	}
}

// lookupCont reuses an in-flight Lookup continuation so a deep walk only
// allocates one.
func (s *Store) lookupCont(env, cont Ptr) Ptr {
	if cont.Tag == ContLookup {
		return cont
	}
	return s.newCont(ContLookup, 0, env, cont)
}

// extendClosure closes a function over the recursive block it was found in.
func (s *Store) extendClosure(fun, recEnv Ptr) (Ptr, error) {
	cell, err := s.fetchFun(fun)
	if err != nil {
		return Ptr{}, err
	}
	return s.Fun(cell.Arg, cell.Body, s.Cons(recEnv, cell.Env)), nil
}

const dummyArgName = "_"

func (s *Store) reduceCons(in IO, lang *Lang, emitted *[]Ptr) (control, error) {
	expr, env, cont := in.Expr, in.Env, in.Cont
	head, rest, err := s.fetchCons(expr)
	if err != nil {
		return control{}, err
	}
	if head.Tag == TagSym {
		name, err := s.fetchSym(head)
		if err != nil {
			return control{}, err
		}
		switch name {
		case "quote":
			quoted, err := s.car(rest)
			if err != nil {
				return control{}, err
			}
			return s.applyCont(quoted, env, cont, lang, emitted)
		case "lambda":
			return s.reduceLambda(rest, env, cont, lang, emitted)
		case "let":
			return s.reduceLet(ContLet, rest, env, cont)
		case "letrec":
			return s.reduceLet(ContLetRec, rest, env, cont)
		case "if":
			condition, err := s.car(rest)
			if err != nil {
				return control{}, err
			}
			branches, err := s.cdr(rest)
			if err != nil {
				return control{}, err
			}
			return ret(condition, env, s.newCont(ContIf, 0, branches, cont))
		case "current-env":
			return s.applyCont(env, env, cont, lang, emitted)
		case "begin":
			return s.reduceBegin(rest, env, cont, lang, emitted)
		case "eval":
			more, err := s.cdr(rest)
			if err != nil {
				return control{}, err
			}
			if more.Tag == TagNil {
				return s.reduceUnop(Op1Eval, rest, env, cont)
			}
			return s.reduceBinop(Op2Eval, rest, env, cont)
		case "car":
			return s.reduceUnop(Op1Car, rest, env, cont)
		case "cdr":
			return s.reduceUnop(Op1Cdr, rest, env, cont)
		case "atom":
			return s.reduceUnop(Op1Atom, rest, env, cont)
		case "emit":
			return s.reduceUnop(Op1Emit, rest, env, cont)
		case "open":
			return s.reduceUnop(Op1Open, rest, env, cont)
		case "commit":
			return s.reduceUnop(Op1Commit, rest, env, cont)
		case "num":
			return s.reduceUnop(Op1Num, rest, env, cont)
		case "char":
			return s.reduceUnop(Op1Char, rest, env, cont)
		case "u64":
			return s.reduceUnop(Op1U64, rest, env, cont)
		case "cons":
			return s.reduceBinop(Op2Cons, rest, env, cont)
		case "hide":
			return s.reduceBinop(Op2Hide, rest, env, cont)
		case "apply":
			return s.reduceBinop(Op2Apply, rest, env, cont)
		case "+":
			return s.reduceBinop(Op2Sum, rest, env, cont)
		case "-":
			return s.reduceBinop(Op2Diff, rest, env, cont)
		case "*":
			return s.reduceBinop(Op2Product, rest, env, cont)
		case "/":
			return s.reduceBinop(Op2Quotient, rest, env, cont)
		case "=":
			return s.reduceBinop(Op2NumEqual, rest, env, cont)
		case "eq":
			return s.reduceBinop(Op2Equal, rest, env, cont)
		case "<":
			return s.reduceBinop(Op2Less, rest, env, cont)
		case ">":
			return s.reduceBinop(Op2Greater, rest, env, cont)
		case "<=":
			return s.reduceBinop(Op2LessEqual, rest, env, cont)
		case ">=":
			return s.reduceBinop(Op2GreaterEqual, rest, env, cont)
		}
		if lang != nil {
			if cproc := lang.Lookup(name); cproc != nil {
				return s.reduceCoprocessor(head, cproc, rest, env, cont, lang, emitted)
			}
		}
	}
	// Application. More than one operand curries in a single step:
	// (f a b) rewrites to ((f a) b).
	if rest.Tag == TagNil {
		return ret(head, env, s.newCont(ContCall0, 0, env, cont))
	}
	arg1, err := s.car(rest)
	if err != nil {
		return control{}, err
	}
	more, err := s.cdr(rest)
	if err != nil {
		return control{}, err
	}
	if more.Tag == TagNil {
		return ret(head, env, s.newCont(ContCall, 0, arg1, env, cont))
	}
	curried := s.Cons(s.list(head, arg1), more)
	return ret(curried, env, cont)
}

func (s *Store) reduceLambda(rest, env, cont Ptr, lang *Lang, emitted *[]Ptr) (control, error) {
	args, err := s.car(rest)
	if err != nil {
		return control{}, err
	}
	body, err := s.cdr(rest)
	if err != nil {
		return control{}, err
	}
	arg := s.Sym(dummyArgName)
	innerBody := body
	if args.Tag != TagNil {
		arg, err = s.car(args)
		if err != nil {
			return control{}, err
		}
		if arg.Tag != TagSym {
			return s.errCtl(arg, env)
		}
		moreArgs, err := s.cdr(args)
		if err != nil {
			return control{}, err
		}
		if moreArgs.Tag != TagNil {
			// Curry: (lambda (a b) body) is (lambda (a) (lambda (b) body)).
			inner := s.Cons(s.Sym("lambda"), s.Cons(moreArgs, body))
			innerBody = s.list(inner)
		}
	}
	return s.applyCont(s.Fun(arg, innerBody, env), env, cont, lang, emitted)
}

func (s *Store) reduceLet(tag Tag, rest, env, cont Ptr) (control, error) {
	bindings, err := s.car(rest)
	if err != nil {
		return control{}, err
	}
	body, err := s.cdr(rest)
	if err != nil {
		return control{}, err
	}
	body1, err := s.car(body)
	if err != nil {
		return control{}, err
	}
	if bindings.Tag == TagNil {
		return ret(body1, env, cont)
	}
	binding1, err := s.car(bindings)
	if err != nil {
		return control{}, err
	}
	moreBindings, err := s.cdr(bindings)
	if err != nil {
		return control{}, err
	}
	v, err := s.car(binding1)
	if err != nil {
		return control{}, err
	}
	if v.Tag != TagSym {
		return s.errCtl(v, env)
	}
	vals, err := s.cdr(binding1)
	if err != nil {
		return control{}, err
	}
	val, err := s.car(vals)
	if err != nil {
		return control{}, err
	}
	expanded := body1
	if moreBindings.Tag != TagNil {
		letSym := "let"
		if tag == ContLetRec {
			letSym = "letrec"
		}
		expanded = s.Cons(s.Sym(letSym), s.Cons(moreBindings, body))
	}
	return ret(val, env, s.newCont(tag, 0, v, expanded, env, cont))
}

func (s *Store) reduceBegin(rest, env, cont Ptr, lang *Lang, emitted *[]Ptr) (control, error) {
	if rest.Tag == TagNil {
		return s.applyCont(s.Nil(), env, cont, lang, emitted)
	}
	arg1, err := s.car(rest)
	if err != nil {
		return control{}, err
	}
	more, err := s.cdr(rest)
	if err != nil {
		return control{}, err
	}
	if more.Tag == TagNil {
		return ret(arg1, env, cont)
	}
	return ret(arg1, env, s.newCont(ContBinop, Op2Begin, env, more, cont))
}

func (s *Store) reduceUnop(op Tag, rest, env, cont Ptr) (control, error) {
	arg, err := s.car(rest)
	if err != nil {
		return control{}, err
	}
	extra, err := s.cdr(rest)
	if err != nil {
		return control{}, err
	}
	if extra.Tag != TagNil {
		return s.errCtl(extra, env)
	}
	return ret(arg, env, s.newCont(ContUnop, op, cont))
}

func (s *Store) reduceBinop(op Tag, rest, env, cont Ptr) (control, error) {
	if rest.Tag == TagNil {
		return s.errCtl(rest, env)
	}
	arg1, err := s.car(rest)
	if err != nil {
		return control{}, err
	}
	more, err := s.cdr(rest)
	if err != nil {
		return control{}, err
	}
	if more.Tag == TagNil {
		return s.errCtl(rest, env)
	}
	return ret(arg1, env, s.newCont(ContBinop, op, env, more, cont))
}

func (s *Store) reduceCoprocessor(head Ptr, cproc Coprocessor, rest, env, cont Ptr, lang *Lang, emitted *[]Ptr) (control, error) {
	// The operand count must match the coprocessor's arity exactly.
	argc := 0
	for p := rest; p.Tag == TagCons; argc++ {
		next, err := s.cdr(p)
		if err != nil {
			return control{}, err
		}
		p = next
	}
	if argc != cproc.EvalArity() {
		return s.errCtl(head, env)
	}
	switch cproc.EvalArity() {
	case 0:
		val, err := cproc.SimpleEvaluate(s, nil)
		if err != nil {
			return s.errCtl(head, env)
		}
		return s.applyCont(val, env, cont, lang, emitted)
	case 1:
		arg, err := s.car(rest)
		if err != nil {
			return control{}, err
		}
		return ret(arg, env, s.newCont(ContUnop, Op1Cproc, head, cont))
	case 2:
		arg1, err := s.car(rest)
		if err != nil {
			return control{}, err
		}
		more, err := s.cdr(rest)
		if err != nil {
			return control{}, err
		}
		return ret(arg1, env, s.newCont(ContBinop, Op2Cproc, head, env, more, cont))
	default:
		return s.errCtl(head, env)
	}
}
