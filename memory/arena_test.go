package memory_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/memutils"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newArena(t *testing.T, size int) *memory.ArenaAllocator {
	arena, err := memory.NewArena(memory.ArenaOptions{Size: size})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, arena.DeallocateAll())
		require.NoError(t, arena.Close())
	})

	return arena
}

// stride is the distance between the starts of two consecutive blocks of the provided size
func stride(size int) int {
	return memutils.AlignUp(size+memutils.DebugMargin, 8)
}

func TestArenaOptions(t *testing.T) {
	_, err := memory.NewArena(memory.ArenaOptions{})
	require.Error(t, err)

	_, err = memory.NewArena(memory.ArenaOptions{Size: 64, Alignment: 12})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
}

func TestArenaBumpAllocate(t *testing.T) {
	arena := newArena(t, 1024)
	require.Equal(t, 1024, arena.Size())

	first, err := arena.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, 10, first.Size)
	require.Zero(t, first.Address()%8)

	second, err := arena.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, first.Address()+uintptr(stride(10)), second.Address())

	owns, err := arena.Owns(first)
	require.NoError(t, err)
	require.True(t, owns)

	heapBlock, err := memory.HeapAllocator{}.Allocate(10)
	require.NoError(t, err)
	owns, err = arena.Owns(heapBlock)
	require.NoError(t, err)
	require.False(t, owns)

	owns, err = arena.Owns(memory.Block{})
	require.NoError(t, err)
	require.False(t, owns)

	require.NoError(t, arena.Validate())
}

func TestArenaRewind(t *testing.T) {
	arena := newArena(t, 1024)

	first, err := arena.Allocate(16)
	require.NoError(t, err)
	second, err := arena.Allocate(16)
	require.NoError(t, err)

	// Releasing the most recent block makes its space available again
	require.NoError(t, arena.Deallocate(second))
	third, err := arena.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, second.Address(), third.Address())

	// Releasing an older block only retires it
	require.NoError(t, arena.Deallocate(first))
	fourth, err := arena.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, third.Address()+uintptr(stride(16)), fourth.Address())

	// Once everything above the retired block is gone, the arena rewinds to the start
	require.NoError(t, arena.Deallocate(fourth))
	require.NoError(t, arena.Deallocate(third))
	fifth, err := arena.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, first.Address(), fifth.Address())
	require.NoError(t, arena.Deallocate(fifth))

	require.NoError(t, arena.Validate())
}

func TestArenaDeallocateErrors(t *testing.T) {
	arena := newArena(t, 256)

	block, err := arena.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, arena.Deallocate(block))

	err = arena.Deallocate(block)
	require.True(t, errors.Is(err, memutils.ErrDeallocationFailure))

	err = arena.Deallocate(memory.Block{})
	require.True(t, errors.Is(err, memutils.ErrNullPointer))

	heapBlock, err := memory.HeapAllocator{}.Allocate(16)
	require.NoError(t, err)
	err = arena.Deallocate(heapBlock)
	require.True(t, errors.Is(err, memutils.ErrDeallocationFailure))
}

func TestArenaExhaustion(t *testing.T) {
	arena := newArena(t, 64)

	block, err := arena.Allocate(64 - memutils.DebugMargin)
	require.NoError(t, err)

	_, err = arena.Allocate(1)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	_, err = arena.AllocateAll()
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	require.NoError(t, arena.Deallocate(block))
	_, err = arena.Allocate(-1)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))
}

func TestArenaAllocateAll(t *testing.T) {
	arena := newArena(t, 128)

	first, err := arena.Allocate(10)
	require.NoError(t, err)

	rest, err := arena.AllocateAll()
	require.NoError(t, err)
	require.Equal(t, 128-stride(10)-memutils.DebugMargin, rest.Size)
	require.Equal(t, first.Address()+uintptr(stride(10)), rest.Address())

	_, err = arena.Allocate(1)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	require.NoError(t, arena.Deallocate(rest))
	again, err := arena.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, rest.Address(), again.Address())
}

func TestArenaExpand(t *testing.T) {
	arena := newArena(t, 256)

	block, err := arena.Allocate(8)
	require.NoError(t, err)

	require.NoError(t, arena.Expand(&block, 8))
	require.Equal(t, 16, block.Size)

	owns, err := arena.Owns(block)
	require.NoError(t, err)
	require.True(t, owns)

	next, err := arena.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, block.Address()+uintptr(stride(16)), next.Address())

	err = arena.Expand(&block, 8)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))
	require.Equal(t, 16, block.Size)

	err = arena.Expand(&next, 1024)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))
	require.Equal(t, 8, next.Size)

	err = arena.Expand(&next, -1)
	require.True(t, errors.Is(err, memutils.ErrInvalidOperation))

	err = arena.Expand(nil, 8)
	require.True(t, errors.Is(err, memutils.ErrNullPointer))

	require.NoError(t, arena.Validate())
}

func TestArenaDeallocateAll(t *testing.T) {
	arena := newArena(t, 256)

	first, err := arena.Allocate(32)
	require.NoError(t, err)
	_, err = arena.Allocate(32)
	require.NoError(t, err)

	require.NoError(t, arena.DeallocateAll())

	owns, err := arena.Owns(first)
	require.NoError(t, err)
	require.False(t, owns)

	again, err := arena.Allocate(32)
	require.NoError(t, err)
	require.Equal(t, first.Address(), again.Address())
}

func TestArenaStatistics(t *testing.T) {
	arena := newArena(t, 256)

	_, err := arena.Allocate(16)
	require.NoError(t, err)
	_, err = arena.Allocate(32)
	require.NoError(t, err)

	var stats memutils.DetailedStatistics
	stats.Clear()
	arena.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.Statistics{
		BlockCount:      1,
		BlockBytes:      256,
		AllocationCount: 2,
		AllocationBytes: 48,
	}, stats.Statistics)
	require.Equal(t, 16, stats.AllocationSizeMin)
	require.Equal(t, 32, stats.AllocationSizeMax)
	require.GreaterOrEqual(t, stats.UnusedRangeCount, 1)

	writer := jwriter.NewWriter()
	arena.PrintDetailedMap(&writer)
	require.NoError(t, writer.Error())

	output := string(writer.Bytes())
	require.Contains(t, output, `"AllocationCount":2`)
	require.Contains(t, output, `{"Offset":0,"Size":16,"Type":"Block"}`)
	require.Contains(t, output, `"Type":"Free"`)
}

func TestArenaCheckCorruption(t *testing.T) {
	arena := newArena(t, 256)

	_, err := arena.Allocate(24)
	require.NoError(t, err)

	require.NoError(t, arena.CheckCorruption())
}

func TestArenaClose(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	arena, err := memory.NewArena(memory.ArenaOptions{Size: 128, Logger: logger})
	require.NoError(t, err)

	block, err := arena.Allocate(16)
	require.NoError(t, err)

	require.Error(t, arena.Close())
	require.Contains(t, logs.String(), "[UNRELEASED MEMORY]")

	require.NoError(t, arena.Deallocate(block))
	require.NoError(t, arena.Close())
	require.NoError(t, arena.Close())
	require.Equal(t, 0, arena.Size())

	_, err = arena.Allocate(8)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))
	require.True(t, errors.Is(arena.DeallocateAll(), memutils.ErrDeallocationFailure))
}

func TestArenaConcurrent(t *testing.T) {
	arena := newArena(t, 64*1024)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				block, err := arena.Allocate(24)
				require.NoError(t, err)
				block.Bytes()[0] = byte(i)
				require.NoError(t, arena.Deallocate(block))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, arena.Validate())

	var stats memutils.DetailedStatistics
	stats.Clear()
	arena.AddDetailedStatistics(&stats)
	require.Equal(t, 0, stats.AllocationCount)

	block, err := arena.Allocate(8)
	require.NoError(t, err)
	require.NoError(t, arena.Deallocate(block))
}
