package shapley

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"
)

const wordBits = 64

// Coalition is a set of players stored as a bitset over canonical indices.
// Two coalitions with the same members always have the same Key, no matter
// in which order the members were added.
type Coalition struct {
	words []uint64
}

func emptyCoalition(n int) Coalition {
	return Coalition{words: make([]uint64, (n+wordBits-1)/wordBits)}
}

// With returns a copy of c with player i added.
func (c Coalition) With(i int) Coalition {
	words := make([]uint64, len(c.words))
	copy(words, c.words)
	words[i/wordBits] |= 1 << (uint(i) % wordBits)
	return Coalition{words: words}
}

// Has reports whether player i is a member.
func (c Coalition) Has(i int) bool {
	w := i / wordBits
	if w >= len(c.words) {
		return false
	}
	return c.words[w]&(1<<(uint(i)%wordBits)) != 0
}

// Size returns the number of members.
func (c Coalition) Size() int {
	n := 0
	for _, w := range c.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Members returns member indices in ascending (canonical) order.
func (c Coalition) Members() []int {
	out := make([]int, 0, c.Size())
	for w, word := range c.words {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, w*wordBits+b)
			word &= word - 1
		}
	}
	return out
}

// Key is the identity of the member set, usable as a map key.
func (c Coalition) Key() string {
	buf := make([]byte, 8*len(c.words))
	for i, w := range c.words {
		binary.LittleEndian.PutUint64(buf[8*i:], w)
	}
	return string(buf)
}

// String renders the key as hex for logs and error messages.
func (c Coalition) String() string {
	return hex.EncodeToString([]byte(c.Key()))
}
