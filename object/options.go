package object

import (
	"io"

	"github.com/ltd-go/ltd/memory"
	"golang.org/x/exp/slog"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options contains the collaborators used by a handle over its lifetime. They are resolved when the
// handle is created: a later call to memory.SetDefault does not affect existing handles.
type Options[T any] struct {
	// Allocator provides the memory for co-allocated values and lazily created counters. If nil,
	// memory.Default() is used.
	Allocator memory.Allocator
	// Deleter destroys the value once its last handle is released. If nil, DefaultDeleter is used.
	Deleter Deleter[T]
	// Logger receives deallocation failures. It may be nil.
	Logger *slog.Logger
}

func (o Options[T]) resolve() Options[T] {
	if o.Allocator == nil {
		o.Allocator = memory.Default()
	}
	if o.Deleter == nil {
		o.Deleter = DefaultDeleter[T]{}
	}
	if o.Logger == nil {
		o.Logger = discardLogger
	}

	return o
}
