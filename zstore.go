package lurk

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/lurklang/lurk-go/zdata"
)

// ZExpr is the content-addressed form of one store entry: the children are
// ZPtrs, atoms carry their immediate value. A ZStore is a map from ZPtr to
// ZExpr, which is everything needed to rebuild the reachable expressions
// (continuations referenced by thunks survive as opaque pointers).
type ZExpr struct {
	Tag      Tag
	Children []ZPtr
	Secret   F      // Comm only
	Text     string // Str, Sym, Key
	Value    F      // Num, Char, U64
}

// ZStore is the serializable image of a store's hashed content.
type ZStore struct {
	entries map[ZPtr]ZExpr
}

// NewZStore returns an empty image.
func NewZStore() *ZStore {
	return &ZStore{entries: make(map[ZPtr]ZExpr)}
}

// Get looks up the expression layout behind a content address.
func (z *ZStore) Get(p ZPtr) (ZExpr, bool) {
	e, ok := z.entries[p]
	return e, ok
}

// Len returns the number of entries.
func (z *ZStore) Len() int { return len(z.entries) }

// ZStoreFromStore hydrates s and captures every interned expression.
func ZStoreFromStore(s *Store) *ZStore {
	s.HydrateZCache()
	z := NewZStore()
	z.add(s, s.nilPtr)
	for i := range s.conses {
		z.add(s, indexPtr(TagCons, i))
	}
	for i := range s.funs {
		z.add(s, indexPtr(TagFun, i))
	}
	for i := range s.thunks {
		z.add(s, indexPtr(TagThunk, i))
	}
	for i := range s.comms {
		z.add(s, indexPtr(TagComm, i))
	}
	for i := range s.nums {
		z.add(s, indexPtr(TagNum, i))
	}
	for i := range s.strs {
		z.add(s, indexPtr(TagStr, i))
	}
	for i := range s.syms {
		z.add(s, indexPtr(TagSym, i))
	}
	for i := range s.keys {
		z.add(s, indexPtr(TagKey, i))
	}
	return z
}

func (z *ZStore) add(s *Store, p Ptr) {
	zp := s.HashPtr(p)
	if _, ok := z.entries[zp]; ok {
		return
	}
	e := ZExpr{Tag: p.Tag}
	switch p.Tag {
	case TagNil:
	case TagCons:
		cell := s.conses[p.idx]
		e.Children = []ZPtr{s.HashPtr(cell.Car), s.HashPtr(cell.Cdr)}
	case TagFun:
		cell := s.funs[p.idx]
		e.Children = []ZPtr{s.HashPtr(cell.Arg), s.HashPtr(cell.Body), s.HashPtr(cell.Env)}
	case TagThunk:
		// Only the two real children are stored; the zero pair that pads the
		// thunk's wide hash preimage is reintroduced by the hasher on
		// reconstruction.
		cell := s.thunks[p.idx]
		e.Children = []ZPtr{s.HashPtr(cell.Value), s.HashPtr(cell.Cont)}
	case TagComm:
		cell := s.comms[p.idx]
		e.Secret = cell.Secret
		e.Children = []ZPtr{s.HashPtr(cell.Payload)}
	case TagNum:
		e.Value = s.nums[p.idx]
	case TagChar:
		e.Value = fUint64(uint64(p.charVal()))
	case TagU64:
		e.Value = fUint64(p.u64Val())
	case TagStr:
		e.Text = s.strs[p.idx]
	case TagSym:
		e.Text = s.syms[p.idx]
	case TagKey:
		e.Text = s.keys[p.idx]
	}
	z.entries[zp] = e
}

// ToStore rebuilds a store from the image. Children present in the image
// materialize transparently; everything else (typically continuations
// referenced by thunks) comes back opaque. The returned map resolves every
// image entry to its pointer in the new store.
func (z *ZStore) ToStore() (*Store, map[ZPtr]Ptr, error) {
	s := NewStore()
	resolved := make(map[ZPtr]Ptr, len(z.entries))

	var materialize func(zp ZPtr) (Ptr, error)
	materialize = func(zp ZPtr) (Ptr, error) {
		if p, ok := resolved[zp]; ok {
			return p, nil
		}
		e, ok := z.entries[zp]
		if !ok {
			p := s.OpaquePtr(zp)
			resolved[zp] = p
			return p, nil
		}
		var p Ptr
		switch e.Tag {
		case TagNil:
			p = s.Nil()
		case TagCons, TagFun, TagThunk:
			children := make([]Ptr, len(e.Children))
			for i, c := range e.Children {
				cp, err := materialize(c)
				if err != nil {
					return Ptr{}, err
				}
				children[i] = cp
			}
			switch e.Tag {
			case TagCons:
				p = s.Cons(children[0], children[1])
			case TagFun:
				p = s.Fun(children[0], children[1], children[2])
			default:
				p = s.Thunk(children[0], children[1])
			}
		case TagComm:
			payload, err := materialize(e.Children[0])
			if err != nil {
				return Ptr{}, err
			}
			p = s.Comm(e.Secret, payload)
		case TagNum:
			p = s.Num(e.Value)
		case TagChar:
			p = s.Char(rune(fToU64(&e.Value)))
		case TagU64:
			p = s.U64(fToU64(&e.Value))
		case TagStr:
			p = s.Str(e.Text)
		case TagSym:
			p = s.Sym(e.Text)
		case TagKey:
			p = s.Key(e.Text)
		default:
			return Ptr{}, storeErrorf("ToStore: unknown tag %s", e.Tag)
		}
		resolved[zp] = p
		return p, nil
	}

	for zp := range z.entries {
		if _, err := materialize(zp); err != nil {
			return nil, nil, err
		}
	}
	return s, resolved, nil
}

// Serialization layout: the store is a cell of (zptr, zexpr) entry pairs
// in a canonical order; a zptr is (tag atom, hash atom); a zexpr leads
// with its tag atom followed by its payload.

func zptrData(p ZPtr) zdata.ZData {
	var tag [2]byte
	binary.LittleEndian.PutUint16(tag[:], uint16(p.Tag))
	hash := p.Hash.Bytes()
	return zdata.Cell(zdata.Atom(tag[:]), zdata.Atom(hash[:]))
}

func zptrFromData(d zdata.ZData) (ZPtr, error) {
	parts, err := d.Children()
	if err != nil {
		return ZPtr{}, err
	}
	if len(parts) != 2 {
		return ZPtr{}, fmt.Errorf("zptr wants 2 parts, got %d", len(parts))
	}
	tagBytes, err := parts[0].AtomBytes()
	if err != nil {
		return ZPtr{}, err
	}
	if len(tagBytes) != 2 {
		return ZPtr{}, fmt.Errorf("zptr tag wants 2 bytes, got %d", len(tagBytes))
	}
	hashBytes, err := parts[1].AtomBytes()
	if err != nil {
		return ZPtr{}, err
	}
	return ZPtr{
		Tag:  Tag(binary.LittleEndian.Uint16(tagBytes)),
		Hash: fFromBytes(hashBytes),
	}, nil
}

func fData(v F) zdata.ZData {
	b := v.Bytes()
	return zdata.Atom(b[:])
}

func fFromData(d zdata.ZData) (F, error) {
	b, err := d.AtomBytes()
	if err != nil {
		return F{}, err
	}
	return fFromBytes(b), nil
}

func zexprData(e ZExpr) zdata.ZData {
	var tag [2]byte
	binary.LittleEndian.PutUint16(tag[:], uint16(e.Tag))
	parts := []zdata.ZData{zdata.Atom(tag[:])}
	switch e.Tag {
	case TagCons, TagFun, TagThunk:
		for _, c := range e.Children {
			parts = append(parts, zptrData(c))
		}
	case TagComm:
		parts = append(parts, fData(e.Secret), zptrData(e.Children[0]))
	case TagNum, TagChar, TagU64:
		parts = append(parts, fData(e.Value))
	case TagStr, TagSym, TagKey:
		parts = append(parts, zdata.Atom([]byte(e.Text)))
	}
	return zdata.Cell(parts...)
}

func zexprFromData(d zdata.ZData) (ZExpr, error) {
	parts, err := d.Children()
	if err != nil {
		return ZExpr{}, err
	}
	if len(parts) == 0 {
		return ZExpr{}, fmt.Errorf("empty zexpr")
	}
	tagBytes, err := parts[0].AtomBytes()
	if err != nil {
		return ZExpr{}, err
	}
	if len(tagBytes) != 2 {
		return ZExpr{}, fmt.Errorf("zexpr tag wants 2 bytes, got %d", len(tagBytes))
	}
	e := ZExpr{Tag: Tag(binary.LittleEndian.Uint16(tagBytes))}
	rest := parts[1:]
	switch e.Tag {
	case TagNil:
	case TagCons, TagFun, TagThunk:
		for _, p := range rest {
			c, err := zptrFromData(p)
			if err != nil {
				return ZExpr{}, err
			}
			e.Children = append(e.Children, c)
		}
	case TagComm:
		if len(rest) != 2 {
			return ZExpr{}, fmt.Errorf("comm zexpr wants 2 parts")
		}
		if e.Secret, err = fFromData(rest[0]); err != nil {
			return ZExpr{}, err
		}
		c, err := zptrFromData(rest[1])
		if err != nil {
			return ZExpr{}, err
		}
		e.Children = []ZPtr{c}
	case TagNum, TagChar, TagU64:
		if len(rest) != 1 {
			return ZExpr{}, fmt.Errorf("atom zexpr wants 1 part")
		}
		if e.Value, err = fFromData(rest[0]); err != nil {
			return ZExpr{}, err
		}
	case TagStr, TagSym, TagKey:
		if len(rest) != 1 {
			return ZExpr{}, fmt.Errorf("text zexpr wants 1 part")
		}
		b, err := rest[0].AtomBytes()
		if err != nil {
			return ZExpr{}, err
		}
		e.Text = string(b)
	default:
		return ZExpr{}, fmt.Errorf("zexpr: unknown tag %s", e.Tag)
	}
	return e, nil
}

// Ser serializes the image with entries in canonical (tag, hash) order.
func (z *ZStore) Ser() []byte {
	keys := make([]ZPtr, 0, len(z.entries))
	for k := range z.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Tag != keys[j].Tag {
			return keys[i].Tag < keys[j].Tag
		}
		return keys[i].Hash.Cmp(&keys[j].Hash) < 0
	})
	entries := make([]zdata.ZData, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, zdata.Cell(zptrData(k), zexprData(z.entries[k])))
	}
	return zdata.Cell(entries...).Ser()
}

// DeZStore parses a serialized image.
func DeZStore(b []byte) (*ZStore, error) {
	d, err := zdata.De(b)
	if err != nil {
		return nil, StoreError{Message: err.Error()}
	}
	entries, err := d.Children()
	if err != nil {
		return nil, StoreError{Message: err.Error()}
	}
	z := NewZStore()
	for _, entry := range entries {
		parts, err := entry.Children()
		if err != nil {
			return nil, StoreError{Message: err.Error()}
		}
		if len(parts) != 2 {
			return nil, StoreError{Message: "zstore entry wants 2 parts"}
		}
		zp, err := zptrFromData(parts[0])
		if err != nil {
			return nil, StoreError{Message: err.Error()}
		}
		e, err := zexprFromData(parts[1])
		if err != nil {
			return nil, StoreError{Message: err.Error()}
		}
		z.entries[zp] = e
	}
	return z, nil
}
