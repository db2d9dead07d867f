package lurk

import (
	"fmt"
	"strconv"
	"strings"
)

// Fmt renders an expression the way the reader would accept it back. Opaque
// pointers print as their content address.
func (s *Store) Fmt(p Ptr) string {
	var b strings.Builder
	s.fmtInto(&b, p)
	return b.String()
}

func (s *Store) fmtInto(b *strings.Builder, p Ptr) {
	if p.opaque {
		fmt.Fprintf(b, "<opaque %s 0x%s>", p.Tag, p.hash.Text(16))
		return
	}
	switch p.Tag {
	case TagNil:
		b.WriteString("nil")
	case TagSym:
		b.WriteString(s.syms[p.idx])
	case TagKey:
		b.WriteString(":" + s.keys[p.idx])
	case TagNum:
		v := s.nums[p.idx]
		if fIsNegative(&v) {
			var neg F
			neg.Neg(&v)
			b.WriteString("-" + neg.String())
		} else {
			b.WriteString(v.String())
		}
	case TagU64:
		b.WriteString(strconv.FormatUint(p.u64Val(), 10) + "u64")
	case TagChar:
		switch r := p.charVal(); r {
		case ' ':
			b.WriteString(`#\space`)
		case '\n':
			b.WriteString(`#\newline`)
		case '\t':
			b.WriteString(`#\tab`)
		default:
			fmt.Fprintf(b, `#\%c`, r)
		}
	case TagStr:
		fmt.Fprintf(b, "%q", s.strs[p.idx])
	case TagCons:
		b.WriteByte('(')
		s.fmtListInto(b, p)
		b.WriteByte(')')
	case TagFun:
		cell := s.funs[p.idx]
		b.WriteString("<function (")
		s.fmtInto(b, cell.Arg)
		b.WriteString(") ")
		s.fmtInto(b, cell.Body)
		b.WriteByte('>')
	case TagThunk:
		cell := s.thunks[p.idx]
		b.WriteString("<thunk ")
		s.fmtInto(b, cell.Value)
		b.WriteByte('>')
	case TagComm:
		z := s.HashPtr(p)
		b.WriteString("<comm 0x" + z.Hash.Text(16) + ">")
	default:
		if p.Tag.IsCont() {
			b.WriteString("<cont " + p.Tag.String() + ">")
			return
		}
		b.WriteString(p.String())
	}
}

func (s *Store) fmtListInto(b *strings.Builder, p Ptr) {
	cell := s.conses[p.idx]
	s.fmtInto(b, cell.Car)
	switch {
	case cell.Cdr.Tag == TagNil:
	case cell.Cdr.Tag == TagCons && !cell.Cdr.opaque:
		b.WriteByte(' ')
		s.fmtListInto(b, cell.Cdr)
	default:
		b.WriteString(" . ")
		s.fmtInto(b, cell.Cdr)
	}
}
