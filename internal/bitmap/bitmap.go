// Package bitmap provides a simple, memory-efficient bitset for row-aligned
// boolean data. The validation engine uses it for two things: tracking which
// values of a typed column are missing, and holding the per-row validity bits
// of a mask column.
package bitmap

import "math/bits"

// Bitmap is a fixed-length bitset backed by a slice of uint64 words.
// Bit i corresponds to row i of the column it describes.
type Bitmap struct {
	n    int
	data []uint64
}

// New allocates a bitmap holding n bits, all cleared.
//
// If n <= 0, no backing storage is allocated and the bitmap is empty.
func New(n int) *Bitmap {
	if n <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{n: n, data: make([]uint64, (n+63)/64)}
}

// Full allocates a bitmap of n bits with every bit set.
func Full(n int) *Bitmap {
	b := New(n)
	b.SetAll()
	return b
}

// Len reports the number of bits the bitmap holds.
func (b *Bitmap) Len() int { return b.n }

// Set sets bit i. Out-of-range indices are ignored.
func (b *Bitmap) Set(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.data[i/64] |= 1 << uint(i%64)
}

// Clear clears bit i. Out-of-range indices are ignored.
func (b *Bitmap) Clear(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.data[i/64] &^= 1 << uint(i%64)
}

// Put sets bit i to v.
func (b *Bitmap) Put(i int, v bool) {
	if v {
		b.Set(i)
	} else {
		b.Clear(i)
	}
}

// Has reports whether bit i is set. Out-of-range indices report false.
func (b *Bitmap) Has(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.data[i/64]&(1<<uint(i%64)) != 0
}

// SetAll sets every bit.
func (b *Bitmap) SetAll() {
	for i := range b.data {
		b.data[i] = ^uint64(0)
	}
	b.trim()
}

// ClearAll clears every bit.
func (b *Bitmap) ClearAll() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// And clears every bit of b that is not also set in o. Bitmaps of different
// length are combined over the shorter length; bits of b beyond o's length
// are cleared.
func (b *Bitmap) And(o *Bitmap) {
	for i := range b.data {
		if i < len(o.data) {
			b.data[i] &= o.data[i]
		} else {
			b.data[i] = 0
		}
	}
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	c := 0
	for _, w := range b.data {
		c += bits.OnesCount64(w)
	}
	return c
}

// Any reports whether at least one bit is set.
func (b *Bitmap) Any() bool {
	for _, w := range b.data {
		if w != 0 {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of b.
func (b *Bitmap) Clone() *Bitmap {
	c := &Bitmap{n: b.n, data: make([]uint64, len(b.data))}
	copy(c.data, b.data)
	return c
}

// Slice returns a new bitmap holding bits [from, to) of b.
func (b *Bitmap) Slice(from, to int) *Bitmap {
	if from < 0 {
		from = 0
	}
	if to > b.n {
		to = b.n
	}
	out := New(to - from)
	for i := from; i < to; i++ {
		if b.Has(i) {
			out.Set(i - from)
		}
	}
	return out
}

// Append returns a new bitmap holding the bits of b followed by the bits of o.
func (b *Bitmap) Append(o *Bitmap) *Bitmap {
	out := New(b.n + o.n)
	copy(out.data, b.data)
	for i := 0; i < o.n; i++ {
		if o.Has(i) {
			out.Set(b.n + i)
		}
	}
	return out
}

// trim clears the unused high bits of the last word so Count stays exact.
func (b *Bitmap) trim() {
	if r := b.n % 64; r != 0 && len(b.data) > 0 {
		b.data[len(b.data)-1] &= (1 << uint(r)) - 1
	}
}
