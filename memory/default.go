package memory

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
)

type allocatorHolder struct {
	allocator Allocator
}

var defaultAllocator atomic.Pointer[allocatorHolder]

// SetDefault installs the process-wide allocator used whenever a consumer does not name one. It may
// only succeed once; later calls return an error matching memutils.ErrInvalidOperation and leave the
// installed allocator in place.
func SetDefault(allocator Allocator) error {
	if allocator == nil {
		return errors.Wrap(memutils.ErrNullPointer, "the default allocator cannot be nil")
	}

	if !defaultAllocator.CompareAndSwap(nil, &allocatorHolder{allocator: allocator}) {
		return errors.Wrapf(memutils.ErrInvalidOperation, "a default allocator (%T) has already been installed", defaultAllocator.Load().allocator)
	}

	return nil
}

// Default returns the allocator installed by SetDefault, or a HeapAllocator if none was installed
func Default() Allocator {
	holder := defaultAllocator.Load()
	if holder == nil {
		return HeapAllocator{}
	}

	return holder.allocator
}

func resetDefault() {
	defaultAllocator.Store(nil)
}
