// Package zdata implements the compact self-describing interchange format
// for expressions, stores and proofs. A value is either an Atom of raw
// bytes or a Cell of values. The byte layout is one tag byte, an optional
// length, then the payload: the tag's high bit marks a cell, bit 6 marks
// the small-size fast path whose low 6 bits carry lengths 1..63 directly
// (a small size of 0 means exactly 64); larger lengths follow the tag as
// ByteCount(len) little-endian bytes.
package zdata

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// ZData is one node of the interchange tree.
type ZData struct {
	atom []byte
	cell []ZData
	isCell bool
}

// Atom builds a leaf from raw bytes.
func Atom(b []byte) ZData {
	return ZData{atom: append([]byte(nil), b...)}
}

// Cell builds an interior node.
func Cell(children ...ZData) ZData {
	return ZData{cell: append([]ZData(nil), children...), isCell: true}
}

// IsAtom reports whether z is a leaf.
func (z ZData) IsAtom() bool { return !z.isCell }

// AtomBytes returns the leaf payload.
func (z ZData) AtomBytes() ([]byte, error) {
	if z.isCell {
		return nil, errors.New("zdata: expected atom, got cell")
	}
	return z.atom, nil
}

// Children returns the cell payload.
func (z ZData) Children() ([]ZData, error) {
	if !z.isCell {
		return nil, errors.New("zdata: expected cell, got atom")
	}
	return z.cell, nil
}

// Equal is deep structural equality.
func (z ZData) Equal(other ZData) bool {
	if z.isCell != other.isCell {
		return false
	}
	if !z.isCell {
		return string(z.atom) == string(other.atom)
	}
	if len(z.cell) != len(other.cell) {
		return false
	}
	for i := range z.cell {
		if !z.cell[i].Equal(other.cell[i]) {
			return false
		}
	}
	return true
}

func (z ZData) String() string {
	var b strings.Builder
	b.WriteByte('[')
	if !z.isCell {
		for i, x := range z.atom {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%02x", x)
		}
	} else {
		for i, x := range z.cell {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(x.String())
		}
	}
	b.WriteByte(']')
	return b.String()
}

// ByteCount is the number of bytes needed to carry a length:
// ceil(log2(n+1)/8), with ByteCount(0) = 1.
func ByteCount(n int) int {
	if n == 0 {
		return 1
	}
	return (bits.Len(uint(n))-1)/8 + 1
}

func trimmedLEBytes(n int) []byte {
	out := make([]byte, ByteCount(n))
	for i := range out {
		out[i] = byte(n >> (8 * i))
	}
	return out
}

const (
	tagCellBit  = 0b1000_0000
	tagSmallBit = 0b0100_0000
	tagSizeMask = 0b0011_1111
)

// Tag computes the leading byte of the serialized form.
func (z ZData) Tag() byte {
	var base byte
	var n int
	if z.isCell {
		base = tagCellBit
		n = len(z.cell)
	} else {
		n = len(z.atom)
	}
	switch {
	case n == 0:
		return base
	case n < 64:
		return base | tagSmallBit | byte(n)
	case n == 64:
		return base | tagSmallBit
	default:
		return base | byte(ByteCount(n))
	}
}

func tagIsCell(t byte) bool  { return t&tagCellBit != 0 }
func tagIsSmall(t byte) bool { return t&tagSmallBit != 0 }

// Ser serializes z to bytes.
func (z ZData) Ser() []byte {
	var out []byte
	return z.serInto(out)
}

func (z ZData) serInto(out []byte) []byte {
	out = append(out, z.Tag())
	if !z.isCell {
		switch n := len(z.atom); {
		case n == 0:
		case n <= 64:
			out = append(out, z.atom...)
		default:
			out = append(out, trimmedLEBytes(n)...)
			out = append(out, z.atom...)
		}
		return out
	}
	if n := len(z.cell); n > 64 {
		out = append(out, trimmedLEBytes(n)...)
	}
	for _, c := range z.cell {
		out = c.serInto(out)
	}
	return out
}

// De deserializes one value and requires the input to be fully consumed.
func De(input []byte) (ZData, error) {
	z, rest, err := deAux(input)
	if err != nil {
		return ZData{}, err
	}
	if len(rest) != 0 {
		return ZData{}, fmt.Errorf("zdata: %d trailing bytes", len(rest))
	}
	return z, nil
}

func deAux(input []byte) (ZData, []byte, error) {
	if len(input) == 0 {
		return ZData{}, nil, errors.New("zdata: truncated tag")
	}
	tag := input[0]
	input = input[1:]
	size := int(tag & tagSizeMask)
	switch {
	case tagIsSmall(tag) && size == 0:
		size = 64
	case tagIsSmall(tag):
	default:
		// size currently holds the length's byte count.
		if len(input) < size {
			return ZData{}, nil, errors.New("zdata: truncated length")
		}
		n := 0
		for i := size - 1; i >= 0; i-- {
			n = n<<8 + int(input[i])
		}
		input = input[size:]
		size = n
	}
	if !tagIsCell(tag) {
		if len(input) < size {
			return ZData{}, nil, errors.New("zdata: truncated atom")
		}
		return Atom(input[:size]), input[size:], nil
	}
	children := make([]ZData, 0, size)
	for i := 0; i < size; i++ {
		var (
			child ZData
			err   error
		)
		child, input, err = deAux(input)
		if err != nil {
			return ZData{}, nil, err
		}
		children = append(children, child)
	}
	return Cell(children...), input, nil
}
