package memory

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
)

//go:generate mockgen -destination=./mocks/allocator.go -package=mock_memory github.com/ltd-go/ltd/memory Allocator

// Allocator is the capability every memory source used by the ownership layer must provide. Blocks
// obtained from one allocator instance must only be returned to that same instance.
type Allocator interface {
	// Allocate returns a block of at least size bytes, or an error matching memutils.ErrAllocationFailure
	Allocate(size int) (Block, error)
	// AllocateAll returns a block spanning all of the memory the allocator can still hand out
	AllocateAll() (Block, error)

	// Deallocate returns a block to the allocator. A null block produces an error matching
	// memutils.ErrNullPointer
	Deallocate(block Block) error
	// DeallocateAll takes back every block the allocator has handed out
	DeallocateAll() error

	// Expand grows the provided block in place by delta bytes, updating its size on success
	Expand(block *Block, delta int) error
	// Owns returns true if the block was handed out by this allocator and is still live
	Owns(block Block) (bool, error)
}

// TypedAllocator is implemented by allocators that can hand out memory typed for the Go garbage
// collector. A block returned by AllocateType may hold values containing Go pointers.
type TypedAllocator interface {
	Allocator

	AllocateType(typ reflect.Type) (Block, error)
}

// AllocateFor allocates a block suited to hold a value of the provided type. Typed allocators are
// asked for typed memory. Other allocators are only used for types that contain no Go pointers;
// anything else produces an error matching memutils.ErrInvalidOperation.
func AllocateFor(allocator Allocator, typ reflect.Type) (Block, error) {
	if allocator == nil || typ == nil {
		return Block{}, errors.Wrap(memutils.ErrNullPointer, "allocator and type must both be provided")
	}

	typed, isTyped := allocator.(TypedAllocator)
	if isTyped {
		return typed.AllocateType(typ)
	}

	if !PointerFree(typ) {
		return Block{}, errors.Wrapf(memutils.ErrInvalidOperation, "type %s contains Go pointers and the allocator %T only provides untyped memory", typ, allocator)
	}

	block, err := allocator.Allocate(int(typ.Size()))
	if err != nil {
		return Block{}, err
	}

	if block.Address()%uintptr(typ.Align()) != 0 {
		deallocErr := allocator.Deallocate(block)
		if deallocErr != nil {
			RecordError(deallocErr)
		}
		return Block{}, errors.Wrapf(memutils.ErrAllocationFailure, "allocator %T returned a block at %#x, which is not aligned to %d bytes", allocator, block.Address(), typ.Align())
	}

	return block, nil
}

// PointerFree returns true if values of the provided type contain no Go pointers, which makes them
// safe to place in untyped or off-heap memory
func PointerFree(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return typ.Len() == 0 || PointerFree(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if !PointerFree(typ.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
