package lurk

// applyCont consumes the current continuation and produces the next IO,
// still within the same reduction step.
func (s *Store) applyCont(result, env, cont Ptr, lang *Lang, emitted *[]Ptr) (control, error) {
	switch cont.Tag {
	case ContTerminal, ContError, ContDummy:
		// Unreachable in normal flow: the evaluator loop halts as soon as
		// the continuation is Terminal or Error, and Dummy only ever wraps
		// thunks, which are unwrapped before applying. Kept as a fixed
		// point so a stray terminal state stays terminal.
		return ret(result, env, cont)
	case ContOutermost:
		return ret(result, env, s.terminal)
	}
	cell, err := s.fetchCont(cont)
	if err != nil {
		return control{}, err
	}
	switch cont.Tag {
	case ContEmit:
		return s.makeThunk(result, env, cell.Comps[0])
	case ContLookup:
		return s.makeThunk(result, cell.Comps[0], cell.Comps[1])
	case ContTail:
		return s.makeThunk(result, cell.Comps[0], cell.Comps[1])
	case ContCall0:
		return s.applyCall0(result, env, cell)
	case ContCall:
		return s.applyCall(result, env, cell)
	case ContCall2:
		return s.applyCall2(result, env, cell)
	case ContLet:
		v, body, savedEnv, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2], cell.Comps[3]
		extended := s.Cons(s.Cons(v, result), env)
		return ret(body, extended, s.makeTail(savedEnv, inner))
	case ContLetRec:
		v, body, savedEnv, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2], cell.Comps[3]
		extended, err := s.extendRec(env, v, result)
		if err != nil {
			return control{}, err
		}
		return ret(body, extended, s.makeTail(savedEnv, inner))
	case ContUnop:
		return s.applyUnop(result, env, cell, lang, emitted)
	case ContBinop:
		return s.applyBinop(result, env, cell)
	case ContBinop2:
		return s.applyBinop2(result, env, cell, lang)
	case ContIf:
		branches, inner := cell.Comps[0], cell.Comps[1]
		consequent, err := s.car(branches)
		if err != nil {
			return control{}, err
		}
		if result.Tag != TagNil {
			return ret(consequent, env, inner)
		}
		alts, err := s.cdr(branches)
		if err != nil {
			return control{}, err
		}
		alternative, err := s.car(alts)
		if err != nil {
			return control{}, err
		}
		return ret(alternative, env, inner)
	default:
		return s.errCtl(result, env)
	}
}

// makeThunk suspends a value on its way back through a tail or dummy
// continuation. Reaching the outermost continuation ends the program.
func (s *Store) makeThunk(result, env, cont Ptr) (control, error) {
	switch cont.Tag {
	case ContTail:
		cell, err := s.fetchCont(cont)
		if err != nil {
			return control{}, err
		}
		savedEnv, inner := cell.Comps[0], cell.Comps[1]
		return ret(s.Thunk(result, inner), savedEnv, s.dummy)
	case ContOutermost:
		return ret(result, env, s.terminal)
	default:
		return ret(s.Thunk(result, cont), env, s.dummy)
	}
}

// makeTail reuses an in-flight tail continuation, the machine's tail-call
// optimization.
func (s *Store) makeTail(env, cont Ptr) Ptr {
	if cont.Tag == ContTail {
		return cont
	}
	return s.newCont(ContTail, 0, env, cont)
}

// extendRec installs a binding into the innermost recursive block, opening
// a fresh block when the environment head is a plain binding.
func (s *Store) extendRec(env, v, val Ptr) (Ptr, error) {
	binding := s.Cons(v, val)
	if env.Tag == TagNil {
		return s.Cons(s.list(binding), env), nil
	}
	head, err := s.car(env)
	if err != nil {
		return Ptr{}, err
	}
	headVar, err := s.car(head)
	if err != nil {
		return Ptr{}, err
	}
	if headVar.Tag == TagCons {
		rest, err := s.cdr(env)
		if err != nil {
			return Ptr{}, err
		}
		return s.Cons(s.Cons(binding, head), rest), nil
	}
	return s.Cons(s.list(binding), env), nil
}

func (s *Store) applyCall0(result, env Ptr, cell contCell) (control, error) {
	savedEnv, inner := cell.Comps[0], cell.Comps[1]
	if result.Tag != TagFun {
		return s.errCtl(result, env)
	}
	fun, err := s.fetchFun(result)
	if err != nil {
		return control{}, err
	}
	argName, err := s.fetchSym(fun.Arg)
	if err != nil {
		return control{}, err
	}
	if argName != dummyArgName {
		// Calling a non-nullary function with no operands is an error.
		return s.errCtl(result, env)
	}
	body1, err := s.car(fun.Body)
	if err != nil {
		return control{}, err
	}
	return ret(body1, fun.Env, s.makeTail(savedEnv, inner))
}

func (s *Store) applyCall(result, env Ptr, cell contCell) (control, error) {
	unevaled, savedEnv, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2]
	if result.Tag != TagFun {
		return s.errCtl(result, env)
	}
	return ret(unevaled, savedEnv, s.newCont(ContCall2, 0, result, savedEnv, inner))
}

func (s *Store) applyCall2(result, env Ptr, cell contCell) (control, error) {
	function, savedEnv, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2]
	fun, err := s.fetchFun(function)
	if err != nil {
		return control{}, err
	}
	argName, err := s.fetchSym(fun.Arg)
	if err != nil {
		return control{}, err
	}
	if argName == dummyArgName {
		// A nullary function received an operand.
		return s.errCtl(result, env)
	}
	newEnv := s.Cons(s.Cons(fun.Arg, result), fun.Env)
	body1, err := s.car(fun.Body)
	if err != nil {
		return control{}, err
	}
	return ret(body1, newEnv, s.makeTail(savedEnv, inner))
}

func (s *Store) applyUnop(result, env Ptr, cell contCell, lang *Lang, emitted *[]Ptr) (control, error) {
	op := cell.Op
	if op == Op1Cproc {
		return s.applyUnopCproc(result, env, cell, lang)
	}
	inner := cell.Comps[0]
	switch op {
	case Op1Car, Op1Cdr:
		return s.applyCarCdr(op, result, env, inner)
	case Op1Atom:
		val := s.T()
		if result.Tag == TagCons {
			val = s.Nil()
		}
		return s.makeThunk(val, env, inner)
	case Op1Emit:
		*emitted = append(*emitted, result)
		return s.makeThunk(result, env, s.newCont(ContEmit, 0, inner))
	case Op1Open:
		switch result.Tag {
		case TagComm:
			comm, err := s.fetchComm(result)
			if err != nil {
				return control{}, err
			}
			return s.makeThunk(comm.Payload, env, inner)
		case TagNum:
			v, err := s.fetchNum(result)
			if err != nil {
				return control{}, err
			}
			if payload, ok := s.openByHash(v); ok {
				return s.makeThunk(payload, env, inner)
			}
		}
		return s.errCtl(result, env)
	case Op1Commit:
		return s.makeThunk(s.Comm(F{}, result), env, inner)
	case Op1Num:
		switch result.Tag {
		case TagNum:
			return s.makeThunk(result, env, inner)
		case TagU64:
			return s.makeThunk(s.Num(fUint64(result.u64Val())), env, inner)
		case TagChar:
			return s.makeThunk(s.Num(fUint64(uint64(result.charVal()))), env, inner)
		case TagComm:
			z := s.HashPtr(result)
			return s.makeThunk(s.Num(z.Hash), env, inner)
		}
		return s.errCtl(result, env)
	case Op1Char:
		switch result.Tag {
		case TagChar:
			return s.makeThunk(result, env, inner)
		case TagNum:
			v, err := s.fetchNum(result)
			if err != nil {
				return control{}, err
			}
			return s.makeThunk(s.Char(rune(fToU64(&v)&0x7fffffff)), env, inner)
		case TagU64:
			return s.makeThunk(s.Char(rune(result.u64Val()&0x7fffffff)), env, inner)
		}
		return s.errCtl(result, env)
	case Op1U64:
		switch result.Tag {
		case TagU64:
			return s.makeThunk(result, env, inner)
		case TagNum:
			v, err := s.fetchNum(result)
			if err != nil {
				return control{}, err
			}
			return s.makeThunk(s.U64(fToU64(&v)), env, inner)
		}
		return s.errCtl(result, env)
	case Op1Eval:
		return ret(result, s.Nil(), inner)
	default:
		return s.errCtl(result, env)
	}
}

func (s *Store) applyCarCdr(op Tag, result, env, inner Ptr) (control, error) {
	switch result.Tag {
	case TagNil:
		return s.makeThunk(s.Nil(), env, inner)
	case TagCons:
		a, d, err := s.fetchCons(result)
		if err != nil {
			return control{}, err
		}
		if op == Op1Car {
			return s.makeThunk(a, env, inner)
		}
		return s.makeThunk(d, env, inner)
	case TagStr:
		// (car "abc") is #\a, (cdr "abc") is "bc"; the empty string
		// decomposes into nil and "".
		str, err := s.fetchStr(result)
		if err != nil {
			return control{}, err
		}
		runes := []rune(str)
		if len(runes) == 0 {
			if op == Op1Car {
				return s.makeThunk(s.Nil(), env, inner)
			}
			return s.makeThunk(s.Str(""), env, inner)
		}
		if op == Op1Car {
			return s.makeThunk(s.Char(runes[0]), env, inner)
		}
		return s.makeThunk(s.Str(string(runes[1:])), env, inner)
	default:
		return s.errCtl(result, env)
	}
}

// openByHash scans the commitment arena for a commitment whose content
// address equals h.
func (s *Store) openByHash(h F) (Ptr, bool) {
	for i := range s.comms {
		p := indexPtr(TagComm, i)
		if s.HashPtr(p).Hash == h {
			return s.comms[i].Payload, true
		}
	}
	return Ptr{}, false
}

func (s *Store) applyUnopCproc(result, env Ptr, cell contCell, lang *Lang) (control, error) {
	head, inner := cell.Comps[0], cell.Comps[1]
	name, err := s.fetchSym(head)
	if err != nil {
		return control{}, err
	}
	if lang == nil {
		return s.errCtl(head, env)
	}
	cproc := lang.Lookup(name)
	if cproc == nil {
		return s.errCtl(head, env)
	}
	val, err := cproc.SimpleEvaluate(s, []Ptr{result})
	if err != nil {
		return s.errCtl(result, env)
	}
	return s.makeThunk(val, env, inner)
}

func (s *Store) applyBinop(result, env Ptr, cell contCell) (control, error) {
	if cell.Op == Op2Cproc {
		head, savedEnv, unevaled, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2], cell.Comps[3]
		arg2, err := s.car(unevaled)
		if err != nil {
			return control{}, err
		}
		return ret(arg2, savedEnv, s.newCont(ContBinop2, Op2Cproc, head, result, inner))
	}
	savedEnv, unevaled, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2]
	if cell.Op == Op2Begin {
		arg2, err := s.car(unevaled)
		if err != nil {
			return control{}, err
		}
		more, err := s.cdr(unevaled)
		if err != nil {
			return control{}, err
		}
		if more.Tag == TagNil {
			return ret(arg2, savedEnv, inner)
		}
		return ret(arg2, savedEnv, s.newCont(ContBinop, Op2Begin, savedEnv, more, inner))
	}
	arg2, err := s.car(unevaled)
	if err != nil {
		return control{}, err
	}
	more, err := s.cdr(unevaled)
	if err != nil {
		return control{}, err
	}
	if more.Tag != TagNil {
		return s.errCtl(more, env)
	}
	return ret(arg2, savedEnv, s.newCont(ContBinop2, cell.Op, result, inner))
}

func (s *Store) applyBinop2(result, env Ptr, cell contCell, lang *Lang) (control, error) {
	if cell.Op == Op2Cproc {
		return s.applyBinop2Cproc(result, env, cell, lang)
	}
	evaled, inner := cell.Comps[0], cell.Comps[1]
	switch cell.Op {
	case Op2Cons:
		return s.makeThunk(s.Cons(evaled, result), env, inner)
	case Op2Hide:
		if evaled.Tag != TagNum {
			return s.errCtl(evaled, env)
		}
		secret, err := s.fetchNum(evaled)
		if err != nil {
			return control{}, err
		}
		return s.makeThunk(s.Comm(secret, result), env, inner)
	case Op2Equal:
		if s.PtrEq(evaled, result) {
			return s.makeThunk(s.T(), env, inner)
		}
		return s.makeThunk(s.Nil(), env, inner)
	case Op2Eval:
		return ret(evaled, result, inner)
	case Op2Apply:
		return s.applyApply(evaled, result, env, inner)
	case Op2Sum, Op2Diff, Op2Product, Op2Quotient,
		Op2NumEqual, Op2Less, Op2Greater, Op2LessEqual, Op2GreaterEqual:
		return s.applyArith(cell.Op, evaled, result, env, inner)
	default:
		return s.errCtl(result, env)
	}
}

func (s *Store) applyBinop2Cproc(result, env Ptr, cell contCell, lang *Lang) (control, error) {
	head, evaled, inner := cell.Comps[0], cell.Comps[1], cell.Comps[2]
	name, err := s.fetchSym(head)
	if err != nil {
		return control{}, err
	}
	if lang == nil {
		return s.errCtl(head, env)
	}
	cproc := lang.Lookup(name)
	if cproc == nil {
		return s.errCtl(head, env)
	}
	val, err := cproc.SimpleEvaluate(s, []Ptr{evaled, result})
	if err != nil {
		return s.errCtl(result, env)
	}
	return s.makeThunk(val, env, inner)
}

// applyApply turns an evaluated function and an argument list back into an
// application expression; the arguments are quoted so they are not
// re-evaluated.
func (s *Store) applyApply(fn, args, env, inner Ptr) (control, error) {
	if fn.Tag != TagFun {
		return s.errCtl(fn, env)
	}
	quote := s.Sym("quote")
	elems := []Ptr{fn}
	for args.Tag != TagNil {
		a, err := s.car(args)
		if err != nil {
			return control{}, err
		}
		elems = append(elems, s.list(quote, a))
		args, err = s.cdr(args)
		if err != nil {
			return control{}, err
		}
	}
	if len(elems) == 1 {
		return ret(s.list(fn), env, inner)
	}
	return ret(s.list(elems...), env, inner)
}

// numArgs normalizes the operands of an arithmetic operator: both U64 stays
// in the integer domain, otherwise U64 coerces into the field.
func (s *Store) numArgs(a, b Ptr) (fa, fb F, bothU64 bool, ua, ub uint64, ok bool) {
	get := func(p Ptr) (F, uint64, bool, bool) {
		switch p.Tag {
		case TagNum:
			v, err := s.fetchNum(p)
			if err != nil {
				return F{}, 0, false, false
			}
			return v, 0, false, true
		case TagU64:
			return fUint64(p.u64Val()), p.u64Val(), true, true
		}
		return F{}, 0, false, false
	}
	fa, ua, aU64, okA := get(a)
	fb, ub, bU64, okB := get(b)
	return fa, fb, aU64 && bU64, ua, ub, okA && okB
}

func (s *Store) applyArith(op Tag, a, b Ptr, env, inner Ptr) (control, error) {
	fa, fb, bothU64, ua, ub, ok := s.numArgs(a, b)
	if !ok {
		return s.errCtl(b, env)
	}
	bool2ptr := func(v bool) Ptr {
		if v {
			return s.T()
		}
		return s.Nil()
	}
	if bothU64 {
		switch op {
		case Op2Sum:
			return s.makeThunk(s.U64(ua+ub), env, inner)
		case Op2Diff:
			return s.makeThunk(s.U64(ua-ub), env, inner)
		case Op2Product:
			return s.makeThunk(s.U64(ua*ub), env, inner)
		case Op2Quotient:
			if ub == 0 {
				return s.errCtl(b, env)
			}
			return s.makeThunk(s.U64(ua/ub), env, inner)
		case Op2NumEqual:
			return s.makeThunk(bool2ptr(ua == ub), env, inner)
		case Op2Less:
			return s.makeThunk(bool2ptr(ua < ub), env, inner)
		case Op2Greater:
			return s.makeThunk(bool2ptr(ua > ub), env, inner)
		case Op2LessEqual:
			return s.makeThunk(bool2ptr(ua <= ub), env, inner)
		case Op2GreaterEqual:
			return s.makeThunk(bool2ptr(ua >= ub), env, inner)
		}
	}
	switch op {
	case Op2Sum:
		var out F
		out.Add(&fa, &fb)
		return s.makeThunk(s.Num(out), env, inner)
	case Op2Diff:
		var out F
		out.Sub(&fa, &fb)
		return s.makeThunk(s.Num(out), env, inner)
	case Op2Product:
		var out F
		out.Mul(&fa, &fb)
		return s.makeThunk(s.Num(out), env, inner)
	case Op2Quotient:
		if fb.IsZero() {
			return s.errCtl(b, env)
		}
		var out F
		out.Div(&fa, &fb)
		return s.makeThunk(s.Num(out), env, inner)
	case Op2NumEqual:
		return s.makeThunk(bool2ptr(fa.Equal(&fb)), env, inner)
	case Op2Less:
		return s.makeThunk(bool2ptr(fSignedCmp(&fa, &fb) < 0), env, inner)
	case Op2Greater:
		return s.makeThunk(bool2ptr(fSignedCmp(&fa, &fb) > 0), env, inner)
	case Op2LessEqual:
		return s.makeThunk(bool2ptr(fSignedCmp(&fa, &fb) <= 0), env, inner)
	case Op2GreaterEqual:
		return s.makeThunk(bool2ptr(fSignedCmp(&fa, &fb) >= 0), env, inner)
	}
	return s.errCtl(b, env)
}
