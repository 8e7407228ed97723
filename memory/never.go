package memory

import (
	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
)

// NeverAllocator fails every request. It is used to drive allocation failure paths in tests.
type NeverAllocator struct{}

var _ Allocator = NeverAllocator{}

func (NeverAllocator) Allocate(size int) (Block, error) {
	return Block{}, errors.Wrapf(memutils.ErrAllocationFailure, "never allocator refused %d bytes", size)
}

func (NeverAllocator) AllocateAll() (Block, error) {
	return Block{}, errors.Wrap(memutils.ErrAllocationFailure, "never allocator refused to allocate all")
}

func (NeverAllocator) Deallocate(block Block) error {
	if block.IsNull() {
		return errors.Wrap(memutils.ErrNullPointer, "attempted to deallocate a null block")
	}
	return errors.Wrap(memutils.ErrDeallocationFailure, "never allocator owns no blocks")
}

func (NeverAllocator) DeallocateAll() error {
	return errors.Wrap(memutils.ErrDeallocationFailure, "never allocator owns no blocks")
}

func (NeverAllocator) Expand(block *Block, delta int) error {
	return errors.Wrap(memutils.ErrAllocationFailure, "never allocator cannot expand blocks")
}

func (NeverAllocator) Owns(block Block) (bool, error) {
	return false, nil
}
