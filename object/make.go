package object

import (
	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/refcount"
)

// Make creates an Object whose value and reference counter share one block from the default
// allocator. See MakeWith.
func Make[T any](construct func(value *T)) (*Object[T], error) {
	return MakeWith(Options[T]{}, construct)
}

// MakeWith allocates one block laid out by LayoutOf[T], places an initialized counter at its low
// address and a zeroed T after it, then calls construct on the T if construct is not nil.
//
// If the allocator fails, MakeWith returns nil and the allocator's error, which matches
// memutils.ErrAllocationFailure. A T containing Go pointers can only be placed in memory from a
// memory.TypedAllocator; other allocators produce an error matching memutils.ErrInvalidOperation.
func MakeWith[T any](options Options[T], construct func(value *T)) (*Object[T], error) {
	options = options.resolve()

	block, err := memory.AllocateFor(options.Allocator, cellType[T]())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate a block for %s", cellType[T]())
	}

	layout := LayoutOf[T]()
	counter := placeCounter(block, layout)
	counter.Init(refcount.FlagCoAllocated | refcount.FlagValid)

	c := (*cell[T])(block.Ptr)
	var zero T
	c.value = zero

	if construct != nil {
		construct(&c.value)
	}

	return &Object[T]{
		value:   &c.value,
		counter: counter,
		options: options,
	}, nil
}

// allocateCounter obtains memory for a counter that is not co-allocated with its value
func allocateCounter(allocator memory.Allocator) (*refcount.Counter, error) {
	block, err := memory.AllocateFor(allocator, counterType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate a reference counter")
	}

	counter := placeCounter(block, LayoutOfCounter())
	counter.Init(refcount.FlagValid)
	return counter, nil
}
