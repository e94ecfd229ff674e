package params

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// RandomSeed returns a non-negative seed from crypto/rand, falling back to
// the clock if the system source fails.
func RandomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() & math.MaxInt64
	}
	// mask the sign bit
	return int64(binary.LittleEndian.Uint64(buf[:]) & math.MaxInt64)
}

// ResolveSeed returns seed unchanged when it is non-negative and a fresh
// random seed otherwise.
func ResolveSeed(seed int64) int64 {
	if seed >= 0 {
		return seed
	}
	return RandomSeed()
}

// MaxBackendSeed bounds seeds for backends that take 32-bit values.
const MaxBackendSeed = math.MaxUint32

// ResolveSeed32 is ResolveSeed restricted to [0, MaxBackendSeed].
func ResolveSeed32(seed int64) int64 {
	if seed >= 0 && seed <= MaxBackendSeed {
		return seed
	}
	if seed > MaxBackendSeed {
		return seed % (MaxBackendSeed + 1)
	}
	return RandomSeed() % (MaxBackendSeed + 1)
}
