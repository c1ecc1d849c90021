package shapley

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Permutation is one admission order, expressed as canonical player indices.
type Permutation []int

// Sample is an ordered list of permutations drawn with replacement.
// Repeated permutations are kept: each one counts in the average.
type Sample struct {
	Players      int
	Permutations []Permutation
}

// Len returns the number of permutations.
func (s Sample) Len() int { return len(s.Permutations) }

// SamplePermutations draws k uniform permutations of the player set. The RNG
// is local to the call, so equal seeds give identical samples and concurrent
// runs never disturb each other.
func SamplePermutations[P comparable](ps *PlayerSet[P], k int, seed int64) (Sample, error) {
	if ps == nil || ps.Len() == 0 {
		return Sample{}, invalidInput("player set is empty")
	}
	if k < 1 {
		return Sample{}, invalidInput("sample size must be >= 1, got %d", k)
	}

	rng := rand.New(rand.NewSource(seed))
	n := ps.Len()

	perms := make([]Permutation, k)
	for i := range perms {
		perms[i] = rng.Perm(n)
	}
	return Sample{Players: n, Permutations: perms}, nil
}

// Digest fingerprints the sample with a double SHA-256 over its index
// sequence. Two runs that drew the same permutations share a digest.
func (s Sample) Digest() string {
	buf := make([]byte, 8, 8+4*s.Players*len(s.Permutations))
	binary.LittleEndian.PutUint32(buf[0:], uint32(s.Players))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(s.Permutations)))
	for _, perm := range s.Permutations {
		for _, idx := range perm {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(idx))
		}
	}
	return chainhash.DoubleHashH(buf).String()
}

// NewSeed draws a seed from crypto/rand for runs that did not supply one.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
