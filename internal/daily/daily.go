package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Source is a game.RandomSource that yields the same number for everyone on
// a given UTC date: HMAC(salt, YYYY-MM-DD) reduced into the requested range.
type Source struct {
	Salt string
	Date time.Time
}

// NextInRange implements game.RandomSource.
func (s Source) NextInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	h := hmac.New(sha256.New, []byte(s.Salt))
	h.Write([]byte(DateKey(s.Date)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for the modulus
	n := binary.BigEndian.Uint64(sum[:8])
	return lo + int(n%uint64(hi-lo+1))
}
