package bitset

import "math/bits"

// BitSet is a fixed-size set of small non-negative integers. The route
// generator uses it to track which pools a partial path already consumed.
type BitSet []uint64

// New returns a BitSet able to hold indices in [0, n).
func New(n int) BitSet {
	if n < 0 {
		n = 0
	}
	return make(BitSet, (n+63)/64)
}

func (b BitSet) Has(i int) bool {
	return b[i/64]&(uint64(1)<<(uint(i)%64)) != 0
}

func (b BitSet) Add(i int) {
	b[i/64] |= uint64(1) << (uint(i) % 64)
}

func (b BitSet) Remove(i int) {
	b[i/64] &^= uint64(1) << (uint(i) % 64)
}

// Reset clears every bit without reallocating.
func (b BitSet) Reset() {
	for i := range b {
		b[i] = 0
	}
}

// Count returns the number of set bits.
func (b BitSet) Count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}
