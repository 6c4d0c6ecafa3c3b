package keizu

import (
	"math/bits"
	"sync/atomic"
)

// bitset is a growable set of slot indices. Each bit corresponds to an entity
// slot; it is used for per-column presence.
type bitset []uint64

// set enables the bit for the given slot, growing the set when needed.
func (b *bitset) set(slot uint32) {
	i := int(slot >> 6)
	if i >= len(*b) {
		b.grow(i + 1)
	}
	(*b)[i] |= uint64(1) << (slot & 63)
}

// unset disables the bit for the given slot.
func (b bitset) unset(slot uint32) {
	i := int(slot >> 6)
	if i < len(b) {
		b[i] &^= uint64(1) << (slot & 63)
	}
}

// has reports whether the bit for the slot is set.
func (b bitset) has(slot uint32) bool {
	i := int(slot >> 6)
	return i < len(b) && b[i]&(uint64(1)<<(slot&63)) != 0
}

func (b *bitset) grow(words int) {
	if words <= len(*b) {
		return
	}
	if words <= cap(*b) {
		*b = (*b)[:words]
		return
	}
	nb := make(bitset, words, max(2*cap(*b), words))
	copy(nb, *b)
	*b = nb
}

// next returns the first set slot at or after from, or -1.
func (b bitset) next(from int) int {
	if from < 0 {
		from = 0
	}
	i := from >> 6
	if i >= len(b) {
		return -1
	}
	w := b[i] >> (uint(from) & 63)
	if w != 0 {
		return from + bits.TrailingZeros64(w)
	}
	for i++; i < len(b); i++ {
		if b[i] != 0 {
			return i<<6 + bits.TrailingZeros64(b[i])
		}
	}
	return -1
}

// atomicBitset is a fixed-size bitset whose bits can be set concurrently.
// Growing it requires exclusive access to the World; setting and testing bits
// is safe from any number of goroutines.
type atomicBitset struct {
	words []atomic.Uint64
}

func (b *atomicBitset) grow(words int) {
	if words <= len(b.words) {
		return
	}
	nw := make([]atomic.Uint64, words)
	for i := range b.words {
		nw[i].Store(b.words[i].Load())
	}
	b.words = nw
}

// set marks the slot. Slots beyond the current size are ignored; the World
// sizes the set for every live slot before handing out mutable access.
func (b *atomicBitset) set(slot uint32) {
	i := int(slot >> 6)
	if i >= len(b.words) {
		return
	}
	b.words[i].Or(uint64(1) << (slot & 63))
}

func (b *atomicBitset) unset(slot uint32) {
	i := int(slot >> 6)
	if i < len(b.words) {
		b.words[i].And(^(uint64(1) << (slot & 63)))
	}
}

func (b *atomicBitset) has(slot uint32) bool {
	i := int(slot >> 6)
	return i < len(b.words) && b.words[i].Load()&(uint64(1)<<(slot&63)) != 0
}

// drain calls fn for every set slot in ascending order and clears the set.
func (b *atomicBitset) drain(fn func(slot uint32)) {
	for i := range b.words {
		w := b.words[i].Swap(0)
		for w != 0 {
			o := bits.TrailingZeros64(w)
			fn(uint32(i<<6 + o))
			w &= w - 1
		}
	}
}
