package memory

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/ltd-go/ltd/internal/utils"
	"github.com/ltd-go/ltd/memutils"
	"golang.org/x/exp/slog"
)

// TrackingOptions contains optional settings for a TrackingAllocator
type TrackingOptions struct {
	// Name identifies the allocator in logs and stats output
	Name string
	// ExternallySynchronized ensures that the tracking allocator will not be synchronized internally.
	// The consumer must guarantee it is used from only one goroutine at a time.
	ExternallySynchronized bool
	// Logger receives a debug entry for every operation and error entries for unreleased memory.
	// It may be nil.
	Logger *slog.Logger
}

// TrackingAllocator decorates another allocator, keeping count of every operation and an index of
// the blocks that are currently live. It is the tool for answering "was this block returned exactly
// once" in tests and for finding leaked blocks at shutdown.
type TrackingAllocator struct {
	inner  Allocator
	name   string
	logger *slog.Logger

	mutex  utils.OptionalRWMutex
	live   *swiss.Map[uintptr, int]
	counts memutils.OperationCounts
}

var _ TypedAllocator = &TrackingAllocator{}

// NewTracking wraps inner in a TrackingAllocator
func NewTracking(inner Allocator, options TrackingOptions) *TrackingAllocator {
	if inner == nil {
		panic("attempting to create a tracking allocator without an allocator to track")
	}

	logger := options.Logger
	if logger == nil {
		logger = discardLogger
	}

	name := options.Name
	if name == "" {
		name = reflect.TypeOf(inner).String()
	}

	return &TrackingAllocator{
		inner:  inner,
		name:   name,
		logger: logger,
		mutex:  utils.OptionalRWMutex{UseMutex: !options.ExternallySynchronized},
		live:   swiss.NewMap[uintptr, int](42),
	}
}

// Inner returns the allocator being tracked
func (t *TrackingAllocator) Inner() Allocator {
	return t.inner
}

func (t *TrackingAllocator) log(op string, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("allocator", t.name))
	t.logger.LogAttrs(context.Background(), slog.LevelDebug, op, attrs...)
}

func (t *TrackingAllocator) recordAllocation(op string, block Block, err error) (Block, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err != nil {
		t.counts.AllocationFailures++
		t.log(op, slog.Any("error", err))
		return block, err
	}

	t.counts.Allocations++
	t.live.Put(block.Address(), block.Size)
	t.log(op, slog.Int("size", block.Size))

	return block, nil
}

func (t *TrackingAllocator) Allocate(size int) (Block, error) {
	block, err := t.inner.Allocate(size)
	return t.recordAllocation("Allocate", block, err)
}

// AllocateType requests typed memory from the tracked allocator if it supports it, and untyped
// memory for pointer-free types otherwise
func (t *TrackingAllocator) AllocateType(typ reflect.Type) (Block, error) {
	block, err := AllocateFor(t.inner, typ)
	return t.recordAllocation("AllocateType", block, err)
}

func (t *TrackingAllocator) AllocateAll() (Block, error) {
	block, err := t.inner.AllocateAll()
	return t.recordAllocation("AllocateAll", block, err)
}

func (t *TrackingAllocator) Deallocate(block Block) error {
	err := t.inner.Deallocate(block)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err != nil {
		t.counts.DeallocationFailures++
		t.log("Deallocate", slog.Int("size", block.Size), slog.Any("error", err))
		return err
	}

	size, live := t.live.Get(block.Address())
	if !live {
		t.logger.LogAttrs(context.Background(), slog.LevelWarn, "deallocated a block that was not handed out by this allocator",
			slog.String("allocator", t.name),
			slog.Int("size", block.Size),
		)
	} else if size != block.Size {
		t.logger.LogAttrs(context.Background(), slog.LevelWarn, "deallocated block size does not match allocation",
			slog.String("allocator", t.name),
			slog.Int("allocatedSize", size),
			slog.Int("size", block.Size),
		)
	}

	t.counts.Deallocations++
	t.live.Delete(block.Address())
	t.log("Deallocate", slog.Int("size", block.Size))

	return nil
}

func (t *TrackingAllocator) DeallocateAll() error {
	err := t.inner.DeallocateAll()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err != nil {
		t.counts.DeallocationFailures++
		t.log("DeallocateAll", slog.Any("error", err))
		return err
	}

	t.counts.Deallocations += t.live.Count()
	t.live.Clear()
	t.log("DeallocateAll")

	return nil
}

func (t *TrackingAllocator) Expand(block *Block, delta int) error {
	if block == nil {
		return errors.Wrap(memutils.ErrNullPointer, "attempted to expand a nil block")
	}

	err := t.inner.Expand(block, delta)
	if err != nil {
		t.mutex.Lock()
		defer t.mutex.Unlock()

		t.counts.AllocationFailures++
		t.log("Expand", slog.Int("delta", delta), slog.Any("error", err))
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.live.Put(block.Address(), block.Size)
	t.log("Expand", slog.Int("delta", delta), slog.Int("size", block.Size))

	return nil
}

func (t *TrackingAllocator) Owns(block Block) (bool, error) {
	return t.inner.Owns(block)
}

// LiveBlocks returns the number of blocks handed out and not yet deallocated
func (t *TrackingAllocator) LiveBlocks() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.live.Count()
}

// IsLive returns true if the block was handed out by this allocator and not yet deallocated
func (t *TrackingAllocator) IsLive(block Block) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	size, live := t.live.Get(block.Address())
	return live && size == block.Size
}

// Counts returns the operation counts since the allocator was created
func (t *TrackingAllocator) Counts() memutils.OperationCounts {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.counts
}

// AddDetailedStatistics sums the live blocks of this allocator into the provided object
func (t *TrackingAllocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	t.live.Iter(func(address uintptr, size int) bool {
		stats.AddAllocation(size)
		return false
	})
}

// BuildStatsString writes the allocator's operation counts and live block statistics as json
func (t *TrackingAllocator) BuildStatsString(writer *jwriter.Writer) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	t.AddDetailedStatistics(&stats)
	counts := t.Counts()

	obj := writer.Object()
	defer obj.End()

	obj.Name("Name").String(t.name)

	countsObj := obj.Name("Operations").Object()
	counts.PrintJson(&countsObj)
	countsObj.End()

	statsObj := obj.Name("Live").Object()
	stats.PrintJson(&statsObj)
	statsObj.End()
}

// ReportUnreleased logs an error entry for every block that is still live and returns how many
// there were
func (t *TrackingAllocator) ReportUnreleased() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	t.live.Iter(func(address uintptr, size int) bool {
		t.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed block",
			slog.String("allocator", t.name),
			slog.Any("address", address),
			slog.Int("size", size),
		)
		return false
	})

	return t.live.Count()
}
