// Package xrand provides the random source shared by search and training.
//
// Components never reach for a global generator; they take a Source in their
// Config. New gives a reproducible stream for tests and seeded runs.
package xrand

import (
	"encoding/binary"

	"lukechampine.com/frand"
)

// Source is the subset of a PRNG used by the engine.
type Source interface {
	Intn(n int) int
	Float64() float64
	Perm(n int) []int
}

// New returns a deterministic source for the given seed.
func New(seed uint64) Source {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	// Spread the seed so nearby seeds do not share key prefixes.
	binary.LittleEndian.PutUint64(key[8:16], seed*0x9E3779B97F4A7C15)
	binary.LittleEndian.PutUint64(key[16:24], ^seed)
	binary.LittleEndian.PutUint64(key[24:32], seed^0xD1B54A32D192ED03)
	return frand.NewCustom(key[:], 1024, 12)
}

// NewEntropy returns a source seeded from the operating system.
func NewEntropy() Source {
	return frand.New()
}
