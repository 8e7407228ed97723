package memory_test

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/memutils"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocate(t *testing.T) {
	var allocator memory.HeapAllocator

	block, err := allocator.Allocate(24)
	require.NoError(t, err)
	require.False(t, block.IsNull())
	require.Equal(t, 24, block.Size)
	require.Zero(t, block.Address()%8)

	data := block.Bytes()
	require.Len(t, data, 24)
	data[23] = 0xFF
	require.Equal(t, byte(0xFF), block.Bytes()[23])

	require.NoError(t, allocator.Deallocate(block))
}

func TestHeapAllocateInvalidSize(t *testing.T) {
	var allocator memory.HeapAllocator

	_, err := allocator.Allocate(0)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	_, err = allocator.Allocate(-4)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))
}

func TestHeapAllocateType(t *testing.T) {
	type withPointers struct {
		Name  string
		Count int
	}

	var allocator memory.HeapAllocator
	typ := reflect.TypeOf(withPointers{})

	block, err := allocator.AllocateType(typ)
	require.NoError(t, err)
	require.Equal(t, int(typ.Size()), block.Size)

	value := (*withPointers)(block.Ptr)
	value.Name = "typed"
	value.Count = 3
	require.Equal(t, withPointers{Name: "typed", Count: 3}, *value)

	_, err = allocator.AllocateType(reflect.TypeOf(struct{}{}))
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))
}

func TestHeapUnsupportedOperations(t *testing.T) {
	var allocator memory.HeapAllocator

	_, err := allocator.AllocateAll()
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	require.True(t, errors.Is(allocator.DeallocateAll(), memutils.ErrDeallocationFailure))

	block, err := allocator.Allocate(8)
	require.NoError(t, err)
	require.True(t, errors.Is(allocator.Expand(&block, 8), memutils.ErrAllocationFailure))
	require.Equal(t, 8, block.Size)

	owns, err := allocator.Owns(block)
	require.False(t, owns)
	require.True(t, errors.Is(err, memutils.ErrInvalidOperation))

	require.True(t, errors.Is(allocator.Deallocate(memory.Block{}), memutils.ErrNullPointer))
}

func TestNeverAllocator(t *testing.T) {
	var allocator memory.NeverAllocator

	_, err := allocator.Allocate(8)
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	_, err = allocator.AllocateAll()
	require.True(t, errors.Is(err, memutils.ErrAllocationFailure))

	heapBlock, err := memory.HeapAllocator{}.Allocate(8)
	require.NoError(t, err)

	require.True(t, errors.Is(allocator.Deallocate(heapBlock), memutils.ErrDeallocationFailure))
	require.True(t, errors.Is(allocator.Deallocate(memory.Block{}), memutils.ErrNullPointer))
	require.True(t, errors.Is(allocator.DeallocateAll(), memutils.ErrDeallocationFailure))
	require.True(t, errors.Is(allocator.Expand(&heapBlock, 8), memutils.ErrAllocationFailure))

	owns, err := allocator.Owns(heapBlock)
	require.NoError(t, err)
	require.False(t, owns)
}
