package memory

import "unsafe"

// Block is a region of memory issued by an Allocator. A successful allocation always produces a
// block at least as large as the requested size.
type Block struct {
	Ptr  unsafe.Pointer
	Size int
}

// IsNull returns true if the block does not refer to any memory
func (b Block) IsNull() bool {
	return b.Ptr == nil || b.Size == 0
}

// Address returns the numeric address of the start of the block
func (b Block) Address() uintptr {
	return uintptr(b.Ptr)
}

// Bytes views the block as a byte slice. Writing through the slice into a block that holds typed Go
// values corrupts them.
func (b Block) Bytes() []byte {
	if b.IsNull() {
		return nil
	}

	return unsafe.Slice((*byte)(b.Ptr), b.Size)
}
