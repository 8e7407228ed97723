package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
)

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

var (
	// ErrAllocationFailure indicates that an allocator could not produce the requested memory
	ErrAllocationFailure = cerrors.New("allocation failure")
	// ErrDeallocationFailure indicates that an allocator could not take a block back. It is usually
	// observed through the last-error slot rather than at a call site, since releases cannot report errors
	ErrDeallocationFailure = cerrors.New("deallocation failure")
	// ErrNullPointer indicates that a nil pointer or an empty block was passed where a live one was required
	ErrNullPointer = cerrors.New("null pointer")
	// ErrIndexOutOfBound indicates that a flag bit position outside of 0..31 was requested
	ErrIndexOutOfBound = cerrors.New("index out of bound")
	// ErrInvalidOperation indicates that an allocator does not implement the requested capability
	ErrInvalidOperation = cerrors.New("invalid operation")
)
