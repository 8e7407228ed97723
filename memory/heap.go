package memory

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
)

// HeapAllocator hands out memory from the Go heap. Deallocation only drops the allocator's interest
// in a block: the garbage collector reclaims it once nothing refers to it.
//
// AllocateAll, DeallocateAll, Expand, and Owns are not supported. They belong to allocators that
// manage a bounded region, such as ArenaAllocator.
type HeapAllocator struct{}

var _ TypedAllocator = HeapAllocator{}

func (HeapAllocator) Allocate(size int) (Block, error) {
	if size <= 0 {
		return Block{}, errors.Wrapf(memutils.ErrAllocationFailure, "invalid allocation size %d", size)
	}

	// Backing the block with words keeps it 8-byte aligned
	words := make([]uint64, (size+7)/8)
	return Block{Ptr: unsafe.Pointer(&words[0]), Size: size}, nil
}

func (HeapAllocator) AllocateType(typ reflect.Type) (Block, error) {
	if typ == nil || typ.Size() == 0 {
		return Block{}, errors.Wrap(memutils.ErrAllocationFailure, "cannot allocate a zero-sized type")
	}

	ptr := reflect.New(typ).UnsafePointer()
	return Block{Ptr: ptr, Size: int(typ.Size())}, nil
}

func (HeapAllocator) AllocateAll() (Block, error) {
	return Block{}, errors.Wrap(memutils.ErrAllocationFailure, "the heap allocator cannot allocate all memory")
}

func (HeapAllocator) Deallocate(block Block) error {
	if block.IsNull() {
		return errors.Wrap(memutils.ErrNullPointer, "attempted to deallocate a null block")
	}

	return nil
}

func (HeapAllocator) DeallocateAll() error {
	return errors.Wrap(memutils.ErrDeallocationFailure, "the heap allocator does not track its blocks")
}

func (HeapAllocator) Expand(block *Block, delta int) error {
	return errors.Wrap(memutils.ErrAllocationFailure, "the heap allocator cannot expand blocks")
}

func (HeapAllocator) Owns(block Block) (bool, error) {
	return false, errors.Wrap(memutils.ErrInvalidOperation, "the heap allocator does not track its blocks")
}
