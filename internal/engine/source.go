// Package engine provides the random sources the promotion games draw from.
//
// Production spins use CryptoSource. Tests and simulations use a seeded PCG
// source, and audited campaigns can use the HMAC seed stream so that a spin
// is reproducible from its seeds.
package engine

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"
)

// Source yields uniform floats in [0,1).
type Source interface {
	Float64() float64
}

// CryptoSource reads 53 random bits from crypto/rand per draw.
type CryptoSource struct{}

func (CryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

// Default returns the source used when callers pass nil.
func Default() Source { return CryptoSource{} }

type seededSource struct{ r *rand.Rand }

// NewSeededSource returns a reproducible PCG-backed source.
func NewSeededSource(seed uint64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))}
}

func (s *seededSource) Float64() float64 { return s.r.Float64() }

type lockedSource struct {
	mu  sync.Mutex
	src Source
}

// Locked makes src safe for concurrent use. CryptoSource is returned as is.
func Locked(src Source) Source {
	switch src.(type) {
	case CryptoSource, *lockedSource:
		return src
	}
	return &lockedSource{src: src}
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// NewSeedStream returns the HMAC byte stream for (server, client, nonce)
// as a Source.
func NewSeedStream(serverSeed, clientSeed string, nonce uint64) Source {
	return NewByteGenerator(serverSeed, clientSeed, nonce, 0)
}

// Intn draws a uniform integer in [0,n). n must be positive.
func Intn(src Source, n int) int {
	if src == nil {
		src = Default()
	}
	i := int(math.Floor(src.Float64() * float64(n)))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Uniform draws a float in [lo,hi).
func Uniform(src Source, lo, hi float64) float64 {
	if src == nil {
		src = Default()
	}
	return lo + src.Float64()*(hi-lo)
}

// IntRange draws a uniform integer in [lo,hi], inclusive on both ends.
func IntRange(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + Intn(src, hi-lo+1)
}

// Fixed is a Source that replays the given values in order and then
// repeats the last one. Useful for pinning draws in tests.
type Fixed []float64

func (f *Fixed) Float64() float64 {
	if len(*f) == 0 {
		return 0
	}
	v := (*f)[0]
	if len(*f) > 1 {
		*f = (*f)[1:]
	}
	return v
}
