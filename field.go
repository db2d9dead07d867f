package lurk

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// F is the scalar field every hash and circuit wire lives in. The proving
// cycle pairs BN254 with Grumpkin: the scalar field of one is the base field
// of the other, so the primary field is bn254/fr and the cycle partner's
// scalar field is bn254/fp (see F2).
type F = fr.Element

// F2 is the scalar field of the cycle partner curve. The folding driver uses
// it for the secondary cross-term commitment; nothing else in the core ever
// touches it.
type F2 = fp.Element

// fieldHalf is (modulus-1)/2, the boundary between the "positive" and
// "negative" halves of F under the signed interpretation used by the
// comparison operators.
var fieldHalf big.Int

func init() {
	half := fr.Modulus()
	fieldHalf.Sub(half, big.NewInt(1))
	fieldHalf.Rsh(&fieldHalf, 1)
}

func fUint64(v uint64) F {
	var f F
	f.SetUint64(v)
	return f
}

// fFromBytes interprets b as a big-endian unsigned integer reduced mod the
// field order.
func fFromBytes(b []byte) F {
	var f F
	var bi big.Int
	bi.SetBytes(b)
	f.SetBigInt(&bi)
	return f
}

// fIsNegative reports whether v falls in the upper half of the field, which
// the comparison operators treat as negative.
func fIsNegative(v *F) bool {
	var bi big.Int
	v.BigInt(&bi)
	return bi.Cmp(&fieldHalf) > 0
}

// fSignedCmp orders field elements with the upper half of the field below
// the lower half, so that e.g. (- 0 1) < 0 < 1.
func fSignedCmp(a, b *F) int {
	an, bn := fIsNegative(a), fIsNegative(b)
	switch {
	case an && !bn:
		return -1
	case !an && bn:
		return 1
	default:
		return a.Cmp(b)
	}
}

// fToU64 truncates v to its low 64 bits, the coercion performed by the u64
// operator.
func fToU64(v *F) uint64 {
	var bi big.Int
	v.BigInt(&bi)
	var mask big.Int
	mask.SetUint64(^uint64(0))
	bi.And(&bi, &mask)
	return bi.Uint64()
}
