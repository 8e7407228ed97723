package object

import (
	"context"

	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/refcount"
	"golang.org/x/exp/slog"
)

// finalize destroys value and returns the counter's block to the allocator. It runs exactly once per
// counter, on the goroutine whose Decrement brought the count to zero.
func finalize[T any](value *T, counter *refcount.Counter, options Options[T]) {
	coAllocated := counter.IsCoAllocated()
	options.Deleter.Delete(value, coAllocated)

	layout := LayoutOfCounter()
	if coAllocated {
		layout = LayoutOf[T]()
	}
	block := blockOf(counter, layout)

	counter.Destroy()

	err := options.Allocator.Deallocate(block)
	if err != nil {
		memory.RecordError(err)
		options.Logger.LogAttrs(context.Background(), slog.LevelError, "failed to return block to allocator",
			slog.Any("address", block.Address()),
			slog.Int("size", block.Size),
			slog.Bool("coAllocated", coAllocated),
			slog.Any("error", err),
		)
	}
}
