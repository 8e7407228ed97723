// Package object provides shared ownership of values placed in allocator memory.
//
// An Object is the single owning handle of a value. It is created by Make, which places the value
// and its reference counter in one allocator block, or by Wrap, which adopts a value constructed
// elsewhere. Pointers are derived handles obtained from an Object. Each live Pointer holds one
// share of responsibility for returning the memory, but not a guarantee that the value is still
// usable: once the Object is released, every Pointer reports IsValid() == false and must not be
// dereferenced, while the memory is only reclaimed when the last Pointer is cleared.
//
// Go has no destructors, so handles are released explicitly with Object.Release and
// Pointer.Clear. Handles are not safe for concurrent use of the same instance; distinct handles to
// the same value may be used and released from any goroutine. The value's own fields are not
// synchronized.
package object
