// Package rng defines the random source injected into every component that
// makes a random choice, so runs can be replayed from a seed.
package rng

import (
	"math/rand/v2"
	"time"
)

// Source is the subset of *rand.Rand the simulator uses.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// New returns a seeded source. The same seed replays the same run.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Seed picks a seed from the clock when none was configured.
func Seed(configured uint64) uint64 {
	if configured != 0 {
		return configured
	}
	return uint64(time.Now().UnixNano())
}

// Script replays fixed values; it panics when exhausted. Tests use it to
// force a particular choice.
type Script struct {
	Ints   []int
	Floats []float64
}

// IntN returns the next scripted int, reduced modulo n.
func (s *Script) IntN(n int) int {
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	return v % n
}

// Float64 returns the next scripted float.
func (s *Script) Float64() float64 {
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}
