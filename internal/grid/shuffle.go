package grid

import (
	cryptoRand "crypto/rand"
	"math/rand/v2"
)

// Shuffle permutes s in place with a uniform Fisher-Yates pass.
func Shuffle[T any](rng *rand.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// NewSeededRand is a replayable source for tests and demos.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed>>32|1))
}

func newCryptoSeededRand() *rand.Rand {
	var seed [32]byte
	if _, err := cryptoRand.Read(seed[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewChaCha8(seed))
}
