package refcount

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
)

// Counter is an atomic reference counter paired with a 32-bit flag word. It is lock free and safe for
// use from any number of goroutines. The count and the flags are independent atomics: no ordering is
// guaranteed between a change to one and a change to the other.
//
// Counter contains no Go pointers, so it may be placed in raw allocator memory, including memory
// outside the Go heap. Memory holding a Counter must be aligned to at least 4 bytes.
type Counter struct {
	count atomic.Uint32
	flags atomic.Uint32
}

// Size is the number of bytes occupied by a Counter
const Size = int(unsafe.Sizeof(Counter{}))

// New creates a Counter on the Go heap with a count of 1 and the provided flags
func New(flags Flags) *Counter {
	counter := &Counter{}
	counter.Init(flags)
	return counter
}

// Init prepares a Counter that lives in memory obtained elsewhere (e.g. from an allocator). The count
// is set to 1 and the flag word to the provided flags.
func (c *Counter) Init(flags Flags) {
	c.count.Store(1)
	c.flags.Store(uint32(flags))
}

// Destroy zeroes the counter. It must only be called by the goroutine that observed Decrement
// return true.
func (c *Counter) Destroy() {
	c.count.Store(0)
	c.flags.Store(0)
}

// Increment adds one reference
func (c *Counter) Increment() {
	c.count.Add(1)
}

// Decrement removes one reference and returns true if, and only if, this call brought the count to
// zero. Exactly one caller observes true for a given counter, which makes that caller responsible
// for finalizing the tracked value.
func (c *Counter) Decrement() bool {
	remaining := c.count.Add(math.MaxUint32)
	if remaining == math.MaxUint32 {
		panic("attempting to decrement a reference counter that has already reached zero")
	}

	return remaining == 0
}

// Count returns the current number of references. The value may be stale by the time it is read
// and is intended for diagnostics.
func (c *Counter) Count() uint32 {
	return c.count.Load()
}

// Flags returns the whole flag word
func (c *Counter) Flags() Flags {
	return Flags(c.flags.Load())
}

// SetFlags overwrites the whole flag word
func (c *Counter) SetFlags(flags Flags) {
	c.flags.Store(uint32(flags))
}

// TestBit returns whether the flag bit at the provided position is set
func (c *Counter) TestBit(position uint) (bool, error) {
	if position > MaxBit {
		return false, errors.Wrapf(memutils.ErrIndexOutOfBound, "bit position %d", position)
	}

	return c.flags.Load()&(1<<position) != 0, nil
}

// SetBit sets the flag bit at the provided position to 1
func (c *Counter) SetBit(position uint) error {
	if position > MaxBit {
		return errors.Wrapf(memutils.ErrIndexOutOfBound, "bit position %d", position)
	}

	c.flags.Or(1 << position)
	return nil
}

// UnsetBit sets the flag bit at the provided position to 0
func (c *Counter) UnsetBit(position uint) error {
	if position > MaxBit {
		return errors.Wrapf(memutils.ErrIndexOutOfBound, "bit position %d", position)
	}

	c.flags.And(^uint32(1 << position))
	return nil
}

// IsCoAllocated returns true if the counter shares a single block with the value it tracks
func (c *Counter) IsCoAllocated() bool {
	return c.Flags().Has(FlagCoAllocated)
}

// IsValid returns true while the owning handle of the tracked value is alive
func (c *Counter) IsValid() bool {
	return c.Flags().Has(FlagValid)
}

// Invalidate clears the valid flag, announcing to every derived handle that the owner is gone
func (c *Counter) Invalidate() {
	c.flags.And(^uint32(FlagValid))
}
