package game

import (
	"crypto/rand"
	"io"
	"math/big"
	mrand "math/rand/v2"

	"github.com/rs/zerolog/log"
)

// RandomSource yields one integer in the closed range [lo, hi].
type RandomSource interface {
	NextInRange(lo, hi int) int
}

// CryptoSource draws uniformly from Reader, crypto/rand.Reader when nil.
// If the reader fails the draw falls back to math/rand/v2, never to a
// fixed value.
type CryptoSource struct {
	Reader io.Reader
}

// NextInRange returns a uniform value in [lo, hi]. If hi < lo it returns lo.
func (c CryptoSource) NextInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	r := c.Reader
	if r == nil {
		r = rand.Reader
	}
	nBig, err := rand.Int(r, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		log.Error().Err(err).Msg("crypto random draw failed, using math/rand")
		return lo + mrand.IntN(hi-lo+1)
	}
	return lo + int(nBig.Int64())
}

// FixedSource always yields the same value, clamped into range.
// Used for tests and for games created with an explicit target.
type FixedSource int

func (f FixedSource) NextInRange(lo, hi int) int {
	return min(max(int(f), lo), hi)
}
