// Package pool implements the free-list byte-pool allocator that backs
// HNSW neighbor blocks (see the vbyte package for their wire format).
// Allocations are rounded to power-of-two size classes so that freed
// slots can be reused by any later allocation of equal or smaller
// size; the pool never coalesces adjacent free slots.
package pool

import (
	"fmt"

	"github.com/calvinalkan/evec/errs"
)

const (
	// MinSizeClass is the smallest allocation unit; anything smaller is
	// rounded up to it.
	MinSizeClass = 16
	// MaxSizeClass is the power-of-two size class above the largest
	// one. Capacities are returned as 16-bit values, so it does not fit
	// and the largest capacity handed out is MaxCapacity instead.
	MaxSizeClass = 1 << 16 // 65536 rounds down to the uint16 cap below
	// MaxCapacity is the largest capacity representable in a 16-bit
	// field, per spec: "cap 65535 so capacity fits in 16 bits".
	MaxCapacity = 65535
)

// Handle identifies a live allocation: a byte offset into the pool's
// backing buffer and the size-class capacity reserved there (which may
// exceed the logical number of bytes written).
type Handle struct {
	Offset   uint64
	Capacity uint16
}

// Pool is a growable byte buffer with size-classed free lists. It is
// not safe for concurrent use without external synchronization, matching
// the single-writer contract the rest of the index relies on.
type Pool struct {
	buf       []byte
	freeLists map[uint16][]uint64
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{freeLists: make(map[uint16][]uint64)}
}

// Len returns the current size of the backing buffer.
func (p *Pool) Len() int {
	return len(p.buf)
}

// Alloc reserves a slot of at least n bytes, rounded up to the next
// power-of-two size class (minimum MinSizeClass, maximum MaxCapacity).
// It reuses a freed slot of the matching size class if one is
// available, otherwise it grows the backing buffer.
func (p *Pool) Alloc(n int) (Handle, error) {
	if n < 0 {
		return Handle{}, fmt.Errorf("pool: negative allocation size %d", n)
	}

	class, err := sizeClass(n)
	if err != nil {
		return Handle{}, err
	}

	if free := p.freeLists[class]; len(free) > 0 {
		offset := free[len(free)-1]
		p.freeLists[class] = free[:len(free)-1]

		return Handle{Offset: offset, Capacity: class}, nil
	}

	offset := uint64(len(p.buf))
	p.buf = append(p.buf, make([]byte, class)...)

	return Handle{Offset: offset, Capacity: class}, nil
}

// Free releases a previously allocated handle back to its size class's
// free list. It does not zero or shrink the backing buffer, and it
// performs no coalescing of adjacent slots.
func (p *Pool) Free(h Handle) {
	p.freeLists[h.Capacity] = append(p.freeLists[h.Capacity], h.Offset)
}

// Write copies data into the slot identified by h, which must have
// capacity >= len(data). It returns errs.ErrCapacity if data would
// overflow the handle.
func (p *Pool) Write(h Handle, data []byte) error {
	if len(data) > int(h.Capacity) {
		return errs.ErrCapacity
	}

	if h.Offset+uint64(h.Capacity) > uint64(len(p.buf)) {
		return &errs.OffsetOutOfBoundsError{Offset: h.Offset, Length: uint64(len(p.buf))}
	}

	copy(p.buf[h.Offset:h.Offset+uint64(h.Capacity)], data)

	return nil
}

// Read returns the full capacity-sized byte range for h. Callers that
// only care about the logical content (e.g. vbyte decoders) rely on
// the format being self-delimiting and ignore the trailing padding.
func (p *Pool) Read(h Handle) ([]byte, error) {
	if h.Offset+uint64(h.Capacity) > uint64(len(p.buf)) {
		return nil, &errs.OffsetOutOfBoundsError{Offset: h.Offset, Length: uint64(len(p.buf))}
	}

	return p.buf[h.Offset : h.Offset+uint64(h.Capacity)], nil
}

// FreeBytes returns the total capacity currently sitting in free
// lists, available for Stats' fragmentation ratio (free / allocated).
func (p *Pool) FreeBytes() int {
	var total int

	for class, slots := range p.freeLists {
		total += int(class) * len(slots)
	}

	return total
}

// Bytes returns the pool's backing buffer, byte-exact, for writing
// into a snapshot. Callers must not mutate the result.
func (p *Pool) Bytes() []byte {
	return p.buf
}

// LoadBytes replaces the pool's backing buffer with raw, sets the
// buffer to exactly len(raw) with no free slots, as reconstituted
// from a snapshot (every live handle was fully packed on write; free
// space is not persisted). It discards any existing free lists.
func (p *Pool) LoadBytes(raw []byte) {
	p.buf = raw
	p.freeLists = make(map[uint16][]uint64)
}

// sizeClass rounds n up to the next power of two, clamped to
// [MinSizeClass, MaxCapacity].
func sizeClass(n int) (uint16, error) {
	if n > MaxCapacity {
		return 0, fmt.Errorf("pool: allocation size %d exceeds max capacity %d", n, MaxCapacity)
	}

	class := MinSizeClass
	for class < n {
		class <<= 1
	}

	if class > MaxCapacity {
		class = MaxCapacity
	}

	return uint16(class), nil
}
