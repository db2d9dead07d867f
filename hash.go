package lurk

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// HashPtr computes the content address of p. Atoms fingerprint their
// immediate value; compound kinds hash the concatenated (tag, hash) pairs of
// their children under the Poseidon instance for their arity. Results are
// cached, so each transparent pointer is hashed at most once per store.
func (s *Store) HashPtr(p Ptr) ZPtr {
	if p.opaque {
		return ZPtr{Tag: p.Tag, Hash: p.hash}
	}
	if z, ok := s.zCache.Load(p); ok {
		return z.(ZPtr)
	}
	z := ZPtr{Tag: p.Tag, Hash: s.hashPayload(p)}
	s.zCache.Store(p, z)
	return z
}

func (s *Store) hashPayload(p Ptr) F {
	switch p.Tag {
	case TagNil:
		return F{}
	case TagNum:
		return s.nums[p.idx]
	case TagChar:
		return fUint64(uint64(p.charVal()))
	case TagU64:
		return fUint64(p.u64Val())
	case TagStr:
		return s.hashString(s.strs[p.idx])
	case TagSym:
		return s.hashSymbol(s.syms[p.idx])
	case TagKey:
		return s.hashSymbol(s.keys[p.idx])
	case TagCons:
		cell := s.conses[p.idx]
		za, zd := s.HashPtr(cell.Car), s.HashPtr(cell.Cdr)
		return poseidon4(za.Tag.Field(), za.Hash, zd.Tag.Field(), zd.Hash)
	case TagFun:
		cell := s.funs[p.idx]
		za, zb, ze := s.HashPtr(cell.Arg), s.HashPtr(cell.Body), s.HashPtr(cell.Env)
		return poseidon6(za.Tag.Field(), za.Hash, zb.Tag.Field(), zb.Hash, ze.Tag.Field(), ze.Hash)
	case TagThunk:
		// Thunks share the wide three-child preimage with Fun and Comm; the
		// unused third pair is zero.
		cell := s.thunks[p.idx]
		zv, zc := s.HashPtr(cell.Value), s.HashPtr(cell.Cont)
		return poseidon6(zv.Tag.Field(), zv.Hash, zc.Tag.Field(), zc.Hash, F{}, F{})
	case TagComm:
		cell := s.comms[p.idx]
		zp := s.HashPtr(cell.Payload)
		return poseidon3(cell.Secret, zp.Tag.Field(), zp.Hash)
	default:
		if p.Tag.IsCont() {
			return s.hashCont(p)
		}
		panic("HashPtr: unknown tag " + p.Tag.String())
	}
}

// hashString folds the character chain right to left, so every suffix of a
// string shares its hash with the same suffix of any other string. The empty
// string hashes to zero.
func (s *Store) hashString(v string) F {
	runes := []rune(v)
	var h F
	strTag := TagStr.Field()
	charTag := TagChar.Field()
	for i := len(runes) - 1; i >= 0; i-- {
		h = poseidon4(charTag, fUint64(uint64(runes[i])), strTag, h)
	}
	return h
}

// hashSymbol addresses a symbol by its name string paired with a nil tail.
func (s *Store) hashSymbol(name string) F {
	return poseidon4(TagStr.Field(), s.hashString(name), TagNil.Field(), F{})
}

// hashCont lays the continuation out as four (tag-or-op, value) pairs: the
// operator code (if any) first, then the component pointers in declaration
// order, zero-padded. The operator pair's value slot is normally zero; a
// coprocessor continuation with four components packs its symbol hash
// there so the record still fits four pairs.
func (s *Store) hashCont(p Ptr) F {
	cell := s.conts[p.idx]
	return poseidon8(s.contPairs(cell))
}

func (s *Store) contPairs(cell contCell) [8]F {
	var pairs [8]F
	slot := 0
	first := 0
	if cell.Op != 0 {
		pairs[0] = cell.Op.Field()
		if cell.N == 4 {
			pairs[1] = s.HashPtr(cell.Comps[0]).Hash
			first = 1
		}
		slot = 1
	}
	for i := first; i < int(cell.N); i++ {
		z := s.HashPtr(cell.Comps[i])
		pairs[2*slot] = z.Tag.Field()
		pairs[2*slot+1] = z.Hash
		slot++
	}
	return pairs
}

// HydrateZCache bulk-computes the hash of everything currently interned, so
// later HashPtr calls are constant-time. Hashing a pointer is a pure
// function of its children, and the cache tolerates duplicate idempotent
// writes, so the work is sheared across a bounded worker group.
func (s *Store) HydrateZCache() {
	ptrs := make([]Ptr, 0,
		len(s.conses)+len(s.funs)+len(s.thunks)+len(s.comms)+
			len(s.nums)+len(s.strs)+len(s.syms)+len(s.keys)+len(s.conts)+1)
	ptrs = append(ptrs, s.nilPtr)
	for i := range s.conses {
		ptrs = append(ptrs, indexPtr(TagCons, i))
	}
	for i := range s.funs {
		ptrs = append(ptrs, indexPtr(TagFun, i))
	}
	for i := range s.thunks {
		ptrs = append(ptrs, indexPtr(TagThunk, i))
	}
	for i := range s.comms {
		ptrs = append(ptrs, indexPtr(TagComm, i))
	}
	for i := range s.nums {
		ptrs = append(ptrs, indexPtr(TagNum, i))
	}
	for i := range s.strs {
		ptrs = append(ptrs, indexPtr(TagStr, i))
	}
	for i := range s.syms {
		ptrs = append(ptrs, indexPtr(TagSym, i))
	}
	for i := range s.keys {
		ptrs = append(ptrs, indexPtr(TagKey, i))
	}
	for i, cell := range s.conts {
		ptrs = append(ptrs, indexPtr(cell.Tag, i))
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range ptrs {
		p := p
		g.Go(func() error {
			s.HashPtr(p)
			return nil
		})
	}
	_ = g.Wait()
}

// PtrEq reports hash equality: true iff a and b denote the same expression,
// whatever mix of transparent and opaque representations they use.
func (s *Store) PtrEq(a, b Ptr) bool {
	if a == b {
		return true
	}
	return s.HashPtr(a) == s.HashPtr(b)
}

// IOToScalarVector lays an IO out as six field elements: (tag, hash) of
// expr, env and cont, in that order. Two of these back to back form the
// public input of a multi-frame.
func (s *Store) IOToScalarVector(io IO) [6]F {
	var out [6]F
	ze, zn, zc := s.HashPtr(io.Expr), s.HashPtr(io.Env), s.HashPtr(io.Cont)
	out[0], out[1] = ze.Tag.Field(), ze.Hash
	out[2], out[3] = zn.Tag.Field(), zn.Hash
	out[4], out[5] = zc.Tag.Field(), zc.Hash
	return out
}
