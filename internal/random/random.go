// Package random provides seed generation and the dice used by combat and
// loot rolls.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Dice draws uniform integers in [0, n).
type Dice interface {
	Intn(n int) int
}

// Source is a goroutine-safe Dice backed by math/rand.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// NewSeeded builds a Source from a fresh crypto seed.
func NewSeeded() (*Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return New(seed), nil
}

func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Script replays a fixed sequence of draws, cycling when exhausted. Values
// are clamped into [0, n).
type Script struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewScript(values ...int) *Script {
	return &Script{values: values}
}

func (s *Script) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
