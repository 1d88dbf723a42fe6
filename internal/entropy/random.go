// Package entropy provides the random sources used by the simulation core.
// Every stochastic draw inside a tick comes from an injected Source, so a
// tick is reproducible from its seed. Keyed draws are pure functions of
// their key and carry no state at all.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"math"
	mrand "math/rand"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Seeded is a deterministic Source backed by math/rand.
// It is not safe for concurrent use; one tick owns one Seeded.
type Seeded struct {
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// ForTick derives the per-tick source from the world seed and world time,
// so replaying a tick at the same time with the same seed repeats every draw.
func ForTick(seed int64, worldTime float64) *Seeded {
	mixed := mix(uint64(seed) ^ mix(math.Float64bits(worldTime)))
	return NewSeeded(int64(mixed))
}

// Float64 returns a uniform float in [0, 1).
func (s *Seeded) Float64() float64 {
	return s.rng.Float64()
}

// Fixed always returns the same value. Useful for pinning draws in tests.
type Fixed float64

// Float64 returns f.
func (f Fixed) Float64() float64 { return float64(f) }

// Sequence replays a fixed list of draws, then repeats the last one.
type Sequence struct {
	vals []float64
	pos  int
}

// NewSequence creates a Sequence over vals.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

// Float64 returns the next value.
func (s *Sequence) Float64() float64 {
	if len(s.vals) == 0 {
		return 0
	}
	if s.pos >= len(s.vals) {
		return s.vals[len(s.vals)-1]
	}
	v := s.vals[s.pos]
	s.pos++
	return v
}

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Keyed returns a float in [0, 1) that depends only on its arguments.
// The same (seed, id, key, purpose, bucket) always yields the same value.
func Keyed(seed int64, id, key, purpose string, bucket int64) float64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	for _, part := range [...]string{id, key, purpose} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(bucket))
	h.Write(buf[:])
	return unit(mix(h.Sum64()))
}

// mix is the splitmix64 finalizer; it spreads nearby hashes apart.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// unit maps the top 53 bits to [0, 1).
func unit(z uint64) float64 {
	return float64(z>>11) / float64(1<<53)
}

// CryptoSeed returns a seed from crypto/rand, for runs that did not pin one.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 42
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
