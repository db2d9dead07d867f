package lurk

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// The Poseidon parameter set is indexed by preimage arity and fixed at init.
// Width is arity+1: slot 0 is the capacity element, seeded with a domain
// separator so hashes of different arities never collide.
const (
	poseidonFullRounds    = 8
	poseidonPartialRounds = 56
)

var poseidonPerm = map[int]*poseidon2.Permutation{
	3: poseidon2.NewPermutation(4, poseidonFullRounds, poseidonPartialRounds),
	4: poseidon2.NewPermutation(5, poseidonFullRounds, poseidonPartialRounds),
	6: poseidon2.NewPermutation(7, poseidonFullRounds, poseidonPartialRounds),
	8: poseidon2.NewPermutation(9, poseidonFullRounds, poseidonPartialRounds),
}

// poseidonHash absorbs exactly len(preimage) field elements under the
// parameter set for that arity and squeezes one element. It is a pure
// function; the store and the circuit both rely on that.
func poseidonHash(preimage []F) F {
	perm, ok := poseidonPerm[len(preimage)]
	if !ok {
		panic("poseidon: unsupported arity")
	}
	state := make([]F, len(preimage)+1)
	state[0] = fUint64(uint64(len(preimage)) << 32)
	copy(state[1:], preimage)
	if err := perm.Permutation(state); err != nil {
		panic(err)
	}
	return state[0]
}

func poseidon3(a, b, c F) F { return poseidonHash([]F{a, b, c}) }

func poseidon4(a, b, c, d F) F { return poseidonHash([]F{a, b, c, d}) }

func poseidon6(a, b, c, d, e, f F) F {
	return poseidonHash([]F{a, b, c, d, e, f})
}

func poseidon8(vs [8]F) F { return poseidonHash(vs[:]) }
