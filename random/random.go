//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package random implements the random value sources used by argument
// synthesis.
package random

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"

	"golang.org/x/crypto/hkdf"
)

// Rand is a seeded random source. A Rand is owned by one worker and is
// not safe for concurrent use.
type Rand struct {
	*rand.Rand
	seed int64
}

// New creates a new random source for the seed.
func New(seed int64) *Rand {
	return &Rand{
		Rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed the source was created with.
func (r *Rand) Seed() int64 {
	return r.seed
}

// SlotSeed derives a per-slot seed from the master seed so that each
// worker slot gets its own reproducible stream.
func SlotSeed(master int64, slot int) int64 {
	var secret [8]byte
	binary.BigEndian.PutUint64(secret[:], uint64(master))

	kdf := hkdf.New(sha256.New, secret[:], nil,
		[]byte(fmt.Sprintf("trinity slot %d", slot)))

	var out [8]byte
	if _, err := io.ReadFull(kdf, out[:]); err != nil {
		panic(fmt.Sprintf("slot seed derivation failed: %v", err))
	}
	return int64(binary.BigEndian.Uint64(out[:]))
}

// Rand32 returns a random 32-bit value.
func (r *Rand) Rand32() uint32 {
	return r.Uint32()
}

// Rand64 returns a random value over the full 64-bit width.
func (r *Rand) Rand64() uint64 {
	v := uint64(r.Int63())
	if r.Bool() {
		v |= 1 << 63
	}
	return v
}

// Bool returns a random boolean.
func (r *Rand) Bool() bool {
	return r.Intn(2) == 0
}

// OneOf returns true with probability 1/n.
func (r *Rand) OneOf(n int) bool {
	return r.Intn(n) == 0
}

// Range returns a uniformly random value in the inclusive range
// [low, high]. The function panics if low > high.
func (r *Rand) Range(low, high uint64) uint64 {
	if low > high {
		panic(fmt.Sprintf("invalid range [%d, %d]", low, high))
	}
	span := high - low
	if span == ^uint64(0) {
		return r.Rand64()
	}
	return low + r.Uint64n(span+1)
}

// Uint64n returns a uniformly random value in [0, n). The function
// panics if n is 0.
func (r *Rand) Uint64n(n uint64) uint64 {
	if n == 0 {
		panic("invalid argument to Uint64n")
	}
	if n&(n-1) == 0 {
		return r.Rand64() & (n - 1)
	}
	max := ^uint64(0) - ^uint64(0)%n
	for {
		v := r.Rand64()
		if v < max {
			return v % n
		}
	}
}

var specialInts = []uint64{
	0, 1, 2, 3, 4, 7, 8, 15, 16, 31, 32, 63, 64, 127, 128, 255, 256,
	511, 512, 1023, 1024, 4095, 4096,
	(1 << 15) - 1, 1 << 15, (1 << 16) - 1, 1 << 16,
	(1 << 31) - 1, 1 << 31, (1 << 32) - 1, 1 << 32,
	(1 << 63) - 1, 1 << 63, (1 << 64) - 1,
}

// Interesting returns either a boundary value, a random 32-bit value,
// or a random word.
func (r *Rand) Interesting() uint64 {
	switch r.Intn(3) {
	case 0:
		return specialInts[r.Intn(len(specialInts))]
	case 1:
		return uint64(r.Rand32())
	default:
		return r.Rand64()
	}
}
