package object

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/refcount"
)

// Layout describes where a reference counter and the value it tracks sit inside one allocator
// block. Construction and finalization both read the same Layout, so the block handed back to the
// allocator always matches the block that was requested.
type Layout struct {
	CounterOffset int
	PointeeOffset int
	Size          int
}

// cell is the block layout used for co-allocated values. The counter occupies the low address.
type cell[T any] struct {
	counter refcount.Counter
	value   T
}

// LayoutOf returns the co-allocated layout of a counter followed by a T
func LayoutOf[T any]() Layout {
	var c cell[T]
	return Layout{
		CounterOffset: int(unsafe.Offsetof(c.counter)),
		PointeeOffset: int(unsafe.Offsetof(c.value)),
		Size:          int(unsafe.Sizeof(c)),
	}
}

// LayoutOfCounter returns the layout of a block that holds nothing but a counter
func LayoutOfCounter() Layout {
	return Layout{
		CounterOffset: 0,
		PointeeOffset: refcount.Size,
		Size:          refcount.Size,
	}
}

func cellType[T any]() reflect.Type {
	return reflect.TypeOf((*cell[T])(nil)).Elem()
}

var counterType = reflect.TypeOf(refcount.Counter{})

// blockOf returns the block described by layout that holds counter
func blockOf(counter *refcount.Counter, layout Layout) memory.Block {
	return memory.Block{
		Ptr:  unsafe.Add(unsafe.Pointer(counter), -layout.CounterOffset),
		Size: layout.Size,
	}
}

// placeCounter returns the counter described by layout inside block
func placeCounter(block memory.Block, layout Layout) *refcount.Counter {
	if block.Size < layout.Size {
		panic(fmt.Sprintf("attempting to place a %d-byte layout in a %d-byte block", layout.Size, block.Size))
	}

	return (*refcount.Counter)(unsafe.Add(block.Ptr, layout.CounterOffset))
}
