package lurk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignedComparison(t *testing.T) {
	zero := fUint64(0)
	one := fUint64(1)
	var minusOne F
	minusOne.Sub(&zero, &one)

	assert.False(t, fIsNegative(&zero))
	assert.False(t, fIsNegative(&one))
	assert.True(t, fIsNegative(&minusOne))

	assert.Equal(t, -1, fSignedCmp(&minusOne, &zero))
	assert.Equal(t, 1, fSignedCmp(&one, &minusOne))
	assert.Equal(t, 0, fSignedCmp(&one, &one))
	assert.Equal(t, -1, fSignedCmp(&zero, &one))
}

func TestFToU64Truncates(t *testing.T) {
	assert.Equal(t, uint64(300), fToU64(ptrTo(fUint64(300))))

	big := fUint64(1)
	for i := 0; i < 70; i++ {
		big.Double(&big)
	}
	// 2^70 truncates to zero in the low 64 bits.
	assert.Equal(t, uint64(0), fToU64(&big))
}

func ptrTo(v F) *F { return &v }

func TestPoseidonArities(t *testing.T) {
	a, b, c := fUint64(1), fUint64(2), fUint64(3)

	// Same inputs, different arities, different domains.
	h3 := poseidon3(a, b, c)
	h4 := poseidon4(a, b, c, F{})
	assert.NotEqual(t, h3, h4)

	// Deterministic.
	assert.Equal(t, h3, poseidon3(a, b, c))
	assert.Equal(t, poseidon6(a, b, c, a, b, c), poseidon6(a, b, c, a, b, c))

	// Input order matters.
	assert.NotEqual(t, poseidon4(a, b, c, F{}), poseidon4(b, a, c, F{}))

	var eight [8]F
	eight[0] = a
	assert.NotEqual(t, poseidon8(eight), poseidon8([8]F{}))
}
