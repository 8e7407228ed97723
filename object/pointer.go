package object

import (
	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
	"github.com/ltd-go/ltd/refcount"
)

// Pointer is a derived handle to a value owned by an Object. Every non-empty Pointer holds one
// reference on the shared counter, which it gives back on Clear. A nil *Pointer behaves as an
// empty one.
//
// A Pointer that holds a reference is not necessarily usable: once the owning Object has been
// released, IsValid returns false and Get must not be dereferenced.
type Pointer[T any] struct {
	_ noCopy

	value   *T
	counter *refcount.Counter
	options Options[T]
}

// EmptyPointer returns a Pointer that references nothing
func EmptyPointer[T any]() *Pointer[T] {
	return &Pointer[T]{}
}

// From creates a Pointer that shares counter, adding a reference to it. options must describe the
// allocator the counter was obtained from, since the Pointer may end up finalizing the value.
func From[T any](value *T, counter *refcount.Counter, options Options[T]) (*Pointer[T], error) {
	if value == nil || counter == nil {
		return nil, errors.Wrap(memutils.ErrNullPointer, "a pointer requires both a value and a counter")
	}

	counter.Increment()
	return &Pointer[T]{
		value:   value,
		counter: counter,
		options: options.resolve(),
	}, nil
}

// IsValid returns true if the Pointer references a value whose owning Object has not been released
func (p *Pointer[T]) IsValid() bool {
	return p != nil && p.value != nil && p.counter != nil && p.counter.IsValid()
}

// IsNull returns true if the Pointer references nothing
func (p *Pointer[T]) IsNull() bool {
	return p == nil || p.value == nil
}

// Copy returns a new Pointer to the same value. Copying a Pointer that is not valid returns an empty
// Pointer and adds no reference.
func (p *Pointer[T]) Copy() *Pointer[T] {
	if !p.IsValid() {
		return EmptyPointer[T]()
	}

	p.counter.Increment()
	return &Pointer[T]{
		value:   p.value,
		counter: p.counter,
		options: p.options,
	}
}

// Move transfers the Pointer's reference to a new Pointer and leaves this one empty
func (p *Pointer[T]) Move() *Pointer[T] {
	if p == nil {
		return EmptyPointer[T]()
	}

	moved := &Pointer[T]{
		value:   p.value,
		counter: p.counter,
		options: p.options,
	}
	p.value = nil
	p.counter = nil

	return moved
}

// Get returns the referenced value. It is only safe to dereference when IsValid returned true and
// the owning Object cannot have been released since.
func (p *Pointer[T]) Get() *T {
	if p == nil {
		return nil
	}
	return p.value
}

// Clear gives back the Pointer's reference and empties it. The value is finalized if this was the
// last reference. Clearing an empty Pointer does nothing.
func (p *Pointer[T]) Clear() {
	if p == nil || p.counter == nil {
		return
	}

	value, counter := p.value, p.counter
	p.value = nil
	p.counter = nil

	if counter.Decrement() {
		finalize(value, counter, p.options)
	}
}

// ReleaseIfInvalid clears the Pointer if it still holds a reference to a value whose owning Object
// has been released. It returns true if it cleared the Pointer.
func (p *Pointer[T]) ReleaseIfInvalid() bool {
	if p == nil || p.counter == nil || p.counter.IsValid() {
		return false
	}

	p.Clear()
	return true
}
