package memory

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/ltd-go/ltd/internal/utils"
	"github.com/ltd-go/ltd/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

const (
	// defaultArenaAlignment is the alignment used when ArenaOptions.Alignment is left at 0. It is
	// enough for every value the ownership layer places in raw memory.
	defaultArenaAlignment uint = 8
)

// ArenaOptions contains the settings used to create an ArenaAllocator
type ArenaOptions struct {
	// Size is the number of bytes in the arena's region. It is required.
	Size int
	// Alignment is the alignment of every block handed out by the arena. It must be a power of two,
	// and 0 selects 8 bytes.
	Alignment uint
	// ExternallySynchronized ensures that the arena will not be synchronized internally. The consumer
	// must guarantee it is used from only one goroutine at a time.
	ExternallySynchronized bool
	// Logger receives unreleased-memory and corruption reports. It may be nil.
	Logger *slog.Logger
}

// ArenaAllocator is a bump allocator over a single fixed region. On unix systems the region is an
// anonymous mapping outside of the Go heap, so the arena never hands out typed memory: values
// holding Go pointers cannot be placed in it.
//
// Blocks are carved from the region in order. Deallocating the most recent block rewinds the bump
// offset past any trailing blocks that were already deallocated. Deallocating any other block only
// retires it; its space returns when everything above it has been deallocated too, or on
// DeallocateAll.
type ArenaAllocator struct {
	mutex  utils.OptionalMutex
	logger *slog.Logger

	region    []byte
	unmap     func([]byte) error
	alignment uint

	// offset is the first byte past the most recent live block and its debug margin
	offset int
	// live maps the offset of every live block to its size
	live *swiss.Map[int, int]
}

var _ Allocator = &ArenaAllocator{}

// NewArena maps a region of options.Size bytes and prepares it for allocation
func NewArena(options ArenaOptions) (*ArenaAllocator, error) {
	if options.Size <= 0 {
		return nil, errors.Newf("arena size must be positive, but was %d", options.Size)
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = defaultArenaAlignment
	}
	err := memutils.CheckPow2(alignment, "ArenaOptions.Alignment")
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = discardLogger
	}

	region, unmap, err := mapRegion(options.Size)
	if err != nil {
		return nil, err
	}

	return &ArenaAllocator{
		mutex:     utils.OptionalMutex{UseMutex: !options.ExternallySynchronized},
		logger:    logger,
		region:    region,
		unmap:     unmap,
		alignment: alignment,
		live:      swiss.NewMap[int, int](42),
	}, nil
}

// Size returns the number of bytes in the arena's region, or 0 once the arena is closed
func (a *ArenaAllocator) Size() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return len(a.region)
}

func (a *ArenaAllocator) base() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(a.region))
}

func (a *ArenaAllocator) Allocate(size int) (Block, error) {
	if size <= 0 {
		return Block{}, errors.Wrapf(memutils.ErrAllocationFailure, "invalid allocation size %d", size)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region == nil {
		return Block{}, errors.Wrap(memutils.ErrAllocationFailure, "the arena has been closed")
	}

	start := memutils.AlignUp(a.offset, a.alignment)
	if start+size+memutils.DebugMargin > len(a.region) {
		return Block{}, errors.Wrapf(memutils.ErrAllocationFailure, "arena exhausted: requested %d bytes with %d available", size, a.available())
	}

	return a.commit(start, size), nil
}

func (a *ArenaAllocator) AllocateAll() (Block, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region == nil {
		return Block{}, errors.Wrap(memutils.ErrAllocationFailure, "the arena has been closed")
	}

	size := a.available()
	if size <= 0 {
		return Block{}, errors.Wrap(memutils.ErrAllocationFailure, "arena exhausted")
	}

	return a.commit(memutils.AlignUp(a.offset, a.alignment), size), nil
}

func (a *ArenaAllocator) available() int {
	return len(a.region) - memutils.AlignUp(a.offset, a.alignment) - memutils.DebugMargin
}

func (a *ArenaAllocator) commit(start, size int) Block {
	memutils.DebugCheckPow2(a.alignment, "arena alignment")
	memutils.WriteMagicValue(a.base(), start+size)

	a.live.Put(start, size)
	a.offset = start + size + memutils.DebugMargin

	memutils.DebugValidate(validateFunc(a.validate))

	return Block{Ptr: unsafe.Add(a.base(), start), Size: size}
}

// offsetOf returns the offset of ptr within the region, if it falls inside it
func (a *ArenaAllocator) offsetOf(ptr unsafe.Pointer) (int, bool) {
	if a.region == nil {
		return 0, false
	}

	offset := int(uintptr(ptr) - uintptr(a.base()))
	if uintptr(ptr) < uintptr(a.base()) || offset >= len(a.region) {
		return 0, false
	}

	return offset, true
}

// liveBlock returns the offset of block if it is a live block of this arena with a matching size
func (a *ArenaAllocator) liveBlock(block Block) (int, bool) {
	offset, inRegion := a.offsetOf(block.Ptr)
	if !inRegion {
		return 0, false
	}

	size, live := a.live.Get(offset)
	if !live || size != block.Size {
		return 0, false
	}

	return offset, true
}

func (a *ArenaAllocator) Deallocate(block Block) error {
	if block.IsNull() {
		return errors.Wrap(memutils.ErrNullPointer, "attempted to deallocate a null block")
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	offset, live := a.liveBlock(block)
	if !live {
		return errors.Wrapf(memutils.ErrDeallocationFailure, "the block at %#x (%d bytes) is not a live block of this arena", block.Address(), block.Size)
	}

	if !memutils.ValidateMagicValue(a.base(), offset+block.Size) {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[CORRUPTION] debug margin overwritten",
			slog.Int("offset", offset),
			slog.Int("size", block.Size),
		)
	}

	a.live.Delete(offset)
	if offset+block.Size+memutils.DebugMargin == a.offset {
		a.offset = a.topEnd()
	}

	memutils.DebugValidate(validateFunc(a.validate))
	return nil
}

// topEnd returns the end of the highest live block, including its debug margin
func (a *ArenaAllocator) topEnd() int {
	end := 0
	a.live.Iter(func(offset int, size int) bool {
		if offset+size+memutils.DebugMargin > end {
			end = offset + size + memutils.DebugMargin
		}
		return false
	})

	return end
}

func (a *ArenaAllocator) DeallocateAll() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region == nil {
		return errors.Wrap(memutils.ErrDeallocationFailure, "the arena has been closed")
	}

	a.live.Clear()
	a.offset = 0
	return nil
}

func (a *ArenaAllocator) Expand(block *Block, delta int) error {
	if block == nil || block.IsNull() {
		return errors.Wrap(memutils.ErrNullPointer, "attempted to expand a null block")
	}
	if delta < 0 {
		return errors.Wrapf(memutils.ErrInvalidOperation, "cannot expand a block by a negative delta %d", delta)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	offset, live := a.liveBlock(*block)
	if !live {
		return errors.Wrapf(memutils.ErrAllocationFailure, "the block at %#x (%d bytes) is not a live block of this arena", block.Address(), block.Size)
	}
	if offset+block.Size+memutils.DebugMargin != a.offset {
		return errors.Wrap(memutils.ErrAllocationFailure, "only the most recently allocated block can be expanded")
	}

	newSize := block.Size + delta
	if offset+newSize+memutils.DebugMargin > len(a.region) {
		return errors.Wrapf(memutils.ErrAllocationFailure, "arena exhausted: cannot expand block by %d bytes", delta)
	}

	memutils.WriteMagicValue(a.base(), offset+newSize)
	a.live.Put(offset, newSize)
	a.offset = offset + newSize + memutils.DebugMargin
	block.Size = newSize

	memutils.DebugValidate(validateFunc(a.validate))
	return nil
}

func (a *ArenaAllocator) Owns(block Block) (bool, error) {
	if block.IsNull() {
		return false, nil
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	_, live := a.liveBlock(block)
	return live, nil
}

// sortedBlocks returns the offsets of all live blocks in ascending order
func (a *ArenaAllocator) sortedBlocks() []int {
	offsets := make([]int, 0, a.live.Count())
	a.live.Iter(func(offset int, size int) bool {
		offsets = append(offsets, offset)
		return false
	})
	slices.Sort(offsets)

	return offsets
}

// visitRegions calls handleRegion for each live block and each unused range in address order
func (a *ArenaAllocator) visitRegions(handleRegion func(offset, size int, free bool)) {
	cursor := 0
	for _, offset := range a.sortedBlocks() {
		size, _ := a.live.Get(offset)
		if offset > cursor {
			handleRegion(cursor, offset-cursor, true)
		}
		handleRegion(offset, size, false)
		cursor = offset + size
	}

	if cursor < len(a.region) {
		handleRegion(cursor, len(a.region)-cursor, true)
	}
}

// AddDetailedStatistics sums the arena's statistics into the provided object. Debug margins are
// counted as part of the unused ranges that follow each block.
func (a *ArenaAllocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region == nil {
		return
	}

	stats.BlockCount++
	stats.BlockBytes += len(a.region)
	a.visitRegions(func(offset, size int, free bool) {
		if free {
			stats.AddUnusedRange(size)
		} else {
			stats.AddAllocation(size)
		}
	})
}

// PrintDetailedMap writes every block and unused range of the arena as json
func (a *ArenaAllocator) PrintDetailedMap(writer *jwriter.Writer) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddDetailedStatistics(&stats)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	obj := writer.Object()
	defer obj.End()

	stats.PrintJson(&obj)

	regions := obj.Name("Regions").Array()
	defer regions.End()

	if a.region == nil {
		return
	}

	a.visitRegions(func(offset, size int, free bool) {
		region := regions.Object()
		region.Name("Offset").Int(offset)
		region.Name("Size").Int(size)
		if free {
			region.Name("Type").String("Free")
		} else {
			region.Name("Type").String("Block")
		}
		region.End()
	})
}

// CheckCorruption verifies the debug margin after every live block. The margins are only written
// when built with the debug_mem_utils build tag; otherwise this always succeeds.
func (a *ArenaAllocator) CheckCorruption() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region == nil {
		return nil
	}

	var err error
	a.live.Iter(func(offset int, size int) bool {
		if !memutils.ValidateMagicValue(a.base(), offset+size) {
			err = errors.Newf("memory corruption detected after block at offset %d", offset)
			return true
		}
		return false
	})

	return err
}

// Validate performs internal consistency checks on the arena's bookkeeping
func (a *ArenaAllocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.validate()
}

func (a *ArenaAllocator) validate() error {
	if a.region == nil {
		if a.live.Count() > 0 {
			return errors.New("closed arena still tracks live blocks")
		}
		return nil
	}

	cursor := 0
	for _, offset := range a.sortedBlocks() {
		size, _ := a.live.Get(offset)
		if offset < cursor {
			return errors.Newf("block at offset %d overlaps the previous block", offset)
		}
		if !memutils.IsAligned(offset, a.alignment) {
			return errors.Newf("block at offset %d is not aligned to %d", offset, a.alignment)
		}
		cursor = offset + size + memutils.DebugMargin
	}

	if cursor > a.offset {
		return errors.Newf("live blocks extend to %d, past the bump offset %d", cursor, a.offset)
	}
	if a.offset > len(a.region) {
		return errors.Newf("bump offset %d is past the end of the region (%d bytes)", a.offset, len(a.region))
	}

	return nil
}

// Close releases the arena's region. Any block still live is reported as unreleased memory, and
// the region is kept so those blocks remain usable.
func (a *ArenaAllocator) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region == nil {
		return nil
	}

	if a.live.Count() > 0 {
		a.live.Iter(func(offset int, size int) bool {
			a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed arena block",
				slog.Int("offset", offset),
				slog.Int("size", size),
			)
			return false
		})

		return errors.Newf("%d blocks were not deallocated before the arena was closed", a.live.Count())
	}

	err := a.unmap(a.region)
	if err != nil {
		return errors.Wrap(err, "failed to unmap arena region")
	}

	a.region = nil
	a.offset = 0
	return nil
}

type validateFunc func() error

func (f validateFunc) Validate() error { return f() }
