package lurk

import "fmt"

// Ptr is the store-internal handle to an expression or continuation. A
// transparent pointer carries a small index into the per-tag arena; an
// opaque pointer carries only the content hash, for expressions
// reconstructed from their fingerprint with no children materialized.
//
// Ptr is comparable: two transparent pointers of one store are == iff they
// name the same arena slot, two opaque pointers are == iff their hashes are.
// Cross-representation equality goes through Store.PtrEq.
type Ptr struct {
	Tag    Tag
	idx    int
	opaque bool
	hash   F
}

// Opaque reports whether the pointer was reconstructed from a hash alone.
func (p Ptr) Opaque() bool { return p.opaque }

// Index returns the arena slot of a transparent pointer. Char and U64
// pointers are immediate: their payload is the index itself.
func (p Ptr) Index() int { return p.idx }

func (p Ptr) String() string {
	if p.opaque {
		return fmt.Sprintf("<opaque %s %s>", p.Tag, p.hash.Text(16))
	}
	return fmt.Sprintf("<%s %d>", p.Tag, p.idx)
}

func opaquePtr(tag Tag, hash F) Ptr {
	return Ptr{Tag: tag, opaque: true, hash: hash}
}

func indexPtr(tag Tag, idx int) Ptr {
	return Ptr{Tag: tag, idx: idx}
}

// charPtr and u64Ptr build immediate pointers: the payload is small enough
// to live in the index, no arena slot needed.
func charPtr(r rune) Ptr   { return Ptr{Tag: TagChar, idx: int(r)} }
func u64Ptr(v uint64) Ptr  { return Ptr{Tag: TagU64, idx: int(int64(v))} }
func (p Ptr) charVal() rune  { return rune(p.idx) }
func (p Ptr) u64Val() uint64 { return uint64(int64(p.idx)) }

// ZPtr is the public, content-addressed identity of an expression: its tag
// and the Poseidon hash of its canonical layout. ZPtrs are what proofs and
// serialized stores speak.
type ZPtr struct {
	Tag  Tag
	Hash F
}

func (z ZPtr) String() string {
	return fmt.Sprintf("(%s, 0x%s)", z.Tag, z.Hash.Text(16))
}

// Parts returns the (tag, hash) field pair in public-input order.
func (z ZPtr) Parts() (F, F) {
	return z.Tag.Field(), z.Hash
}
