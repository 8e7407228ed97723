package memory_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/ltd-go/ltd/memory"
	mock_memory "github.com/ltd-go/ltd/memory/mocks"
	"github.com/ltd-go/ltd/memutils"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func TestTrackingCountsOperations(t *testing.T) {
	tracking := memory.NewTracking(memory.HeapAllocator{}, memory.TrackingOptions{Name: "heap"})

	first, err := tracking.Allocate(16)
	require.NoError(t, err)
	second, err := tracking.AllocateType(reflect.TypeOf(&struct{ next *int }{}))
	require.NoError(t, err)

	require.Equal(t, 2, tracking.LiveBlocks())
	require.True(t, tracking.IsLive(first))
	require.True(t, tracking.IsLive(second))

	require.NoError(t, tracking.Deallocate(first))
	require.False(t, tracking.IsLive(first))
	require.Equal(t, 1, tracking.LiveBlocks())

	_, err = tracking.Allocate(0)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	require.Equal(t, memutils.OperationCounts{
		Allocations:        2,
		Deallocations:      1,
		AllocationFailures: 1,
	}, tracking.Counts())

	require.NoError(t, tracking.Deallocate(second))
	require.Equal(t, 0, tracking.ReportUnreleased())
}

func TestTrackingRejectsPointerTypesOnUntypedAllocator(t *testing.T) {
	arena, err := memory.NewArena(memory.ArenaOptions{Size: 256})
	require.NoError(t, err)
	defer func() { require.NoError(t, arena.Close()) }()

	tracking := memory.NewTracking(arena, memory.TrackingOptions{})

	_, err = tracking.AllocateType(reflect.TypeOf(struct{ name string }{}))
	require.True(t, errors.Is(err, memutils.ErrInvalidOperation))

	block, err := tracking.AllocateType(reflect.TypeOf(struct{ a, b int64 }{}))
	require.NoError(t, err)
	require.Equal(t, 16, block.Size)

	owns, err := tracking.Owns(block)
	require.NoError(t, err)
	require.True(t, owns)

	require.NoError(t, tracking.Deallocate(block))
	require.Equal(t, 1, tracking.Counts().AllocationFailures)
}

func TestTrackingDeallocationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mock_memory.NewMockAllocator(ctrl)

	block := memory.Block{Ptr: reflect.ValueOf(new(int64)).UnsafePointer(), Size: 8}
	inner.EXPECT().Allocate(8).Return(block, nil)
	inner.EXPECT().Deallocate(block).Return(memutils.ErrDeallocationFailure)

	tracking := memory.NewTracking(inner, memory.TrackingOptions{Name: "mock"})

	allocated, err := tracking.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, block, allocated)

	err = tracking.Deallocate(allocated)
	require.True(t, errors.Is(err, memutils.ErrDeallocationFailure))

	require.True(t, tracking.IsLive(block))
	require.Equal(t, 1, tracking.Counts().DeallocationFailures)
}

func TestTrackingWarnsOnUnknownBlock(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	tracking := memory.NewTracking(memory.HeapAllocator{}, memory.TrackingOptions{Logger: logger})

	block, err := memory.HeapAllocator{}.Allocate(8)
	require.NoError(t, err)

	require.NoError(t, tracking.Deallocate(block))
	require.Contains(t, logs.String(), "not handed out by this allocator")
}

func TestTrackingExpandAndDeallocateAll(t *testing.T) {
	arena, err := memory.NewArena(memory.ArenaOptions{Size: 512})
	require.NoError(t, err)
	defer func() { require.NoError(t, arena.Close()) }()

	tracking := memory.NewTracking(arena, memory.TrackingOptions{ExternallySynchronized: true})

	_, err = tracking.Allocate(8)
	require.NoError(t, err)
	block, err := tracking.Allocate(8)
	require.NoError(t, err)

	require.NoError(t, tracking.Expand(&block, 24))
	require.True(t, tracking.IsLive(block))

	err = tracking.Expand(nil, 8)
	require.True(t, errors.Is(err, memutils.ErrNullPointer))

	require.NoError(t, tracking.DeallocateAll())
	require.Equal(t, 0, tracking.LiveBlocks())
	require.Equal(t, 2, tracking.Counts().Deallocations)
}

func TestTrackingReportUnreleased(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	tracking := memory.NewTracking(memory.HeapAllocator{}, memory.TrackingOptions{Name: "leaky", Logger: logger})

	block, err := tracking.Allocate(32)
	require.NoError(t, err)

	require.Equal(t, 1, tracking.ReportUnreleased())
	require.Contains(t, logs.String(), "[UNRELEASED MEMORY]")
	require.Contains(t, logs.String(), "allocator=leaky")

	writer := jwriter.NewWriter()
	tracking.BuildStatsString(&writer)
	require.NoError(t, writer.Error())
	require.JSONEq(t, `{
		"Name": "leaky",
		"Operations": {"Allocations": 1, "Deallocations": 0, "AllocationFailures": 0, "DeallocationFailures": 0},
		"Live": {
			"BlockCount": 0, "AllocationCount": 1, "UnusedRangeCount": 0,
			"BlockBytes": 0, "AllocationBytes": 32,
			"AllocationSizeMin": 32, "AllocationSizeMax": 32
		}
	}`, string(writer.Bytes()))

	require.NoError(t, tracking.Deallocate(block))
}

func TestNewTrackingNilPanics(t *testing.T) {
	require.Panics(t, func() {
		memory.NewTracking(nil, memory.TrackingOptions{})
	})
}
