// Package memory provides the allocator capability used by the ownership layer, along with several
// allocator implementations.
//
// An Allocator hands out Blocks of raw memory and takes them back. Allocators are composable: the
// TrackingAllocator and the allocators in the instrument package decorate another allocator, and
// the ArenaAllocator can be placed underneath any of them.
//
// Memory returned by Allocate is untyped. The Go garbage collector does not scan it, so values
// holding Go pointers must not be placed in it. Allocators that can hand out typed Go memory
// additionally implement TypedAllocator; AllocateFor picks the right path for a given type.
//
// Unless a consumer names an allocator explicitly, the ownership layer uses Default(), which is the
// HeapAllocator until SetDefault installs a process-wide replacement. SetDefault may be called once,
// at startup.
package memory
