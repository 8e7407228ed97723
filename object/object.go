package object

import (
	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memutils"
	"github.com/ltd-go/ltd/refcount"
)

// noCopy lets go vet's copylocks check flag handles that are copied by value
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Object is the owning handle of a value. There is exactly one Object per live value; it can be
// moved with Move but never copied. A nil *Object behaves as an empty one.
//
// An Object only acquires a reference counter when it is created by Make or when its first Pointer
// is requested. Releasing an Object that has live Pointers invalidates them, and the value is
// destroyed when the last of them is cleared.
type Object[T any] struct {
	_ noCopy

	value   *T
	counter *refcount.Counter
	options Options[T]
}

// Empty returns an Object that owns nothing
func Empty[T any]() *Object[T] {
	return &Object[T]{}
}

// Wrap adopts a value that was constructed elsewhere, using the default options
func Wrap[T any](value *T) *Object[T] {
	return WrapWith(value, Options[T]{})
}

// WrapWith adopts a value that was constructed elsewhere. No counter is allocated until the first
// call to Pointer. When the Object is released, options.Deleter is called with coAllocated == false.
func WrapWith[T any](value *T, options Options[T]) *Object[T] {
	return &Object[T]{
		value:   value,
		options: options.resolve(),
	}
}

// Pointer returns a new derived handle to the Object's value. If the Object has no counter yet, one
// is allocated from the Object's allocator; on failure the Object is left unchanged.
func (o *Object[T]) Pointer() (*Pointer[T], error) {
	if o.IsNull() {
		return nil, errors.Wrap(memutils.ErrNullPointer, "attempted to derive a pointer from an empty object")
	}

	if o.counter == nil {
		counter, err := allocateCounter(o.options.Allocator)
		if err != nil {
			return nil, err
		}
		o.counter = counter
	}

	o.counter.Increment()
	return &Pointer[T]{
		value:   o.value,
		counter: o.counter,
		options: o.options,
	}, nil
}

// IsNull returns true if the Object owns nothing, e.g. after it was moved or released
func (o *Object[T]) IsNull() bool {
	return o == nil || o.value == nil
}

// IsValid returns true if the Object owns a value. It does not consult the counter.
func (o *Object[T]) IsValid() bool {
	return !o.IsNull()
}

// Get returns the owned value, or nil
func (o *Object[T]) Get() *T {
	if o == nil {
		return nil
	}
	return o.value
}

// Counter returns the Object's reference counter, or nil if none has been created. Bits
// refcount.FirstUserBit through refcount.MaxBit of its flag word are free for the caller's use.
func (o *Object[T]) Counter() *refcount.Counter {
	if o == nil {
		return nil
	}
	return o.counter
}

// Move transfers ownership to a new Object and leaves this one empty
func (o *Object[T]) Move() *Object[T] {
	if o == nil {
		return Empty[T]()
	}

	moved := &Object[T]{
		value:   o.value,
		counter: o.counter,
		options: o.options,
	}
	o.value = nil
	o.counter = nil

	return moved
}

// Release gives up ownership of the value. Without a counter the value is handed straight to the
// deleter. Otherwise the counter is invalidated so that every Pointer observes the release, and the
// value is finalized if no Pointer is left. Releasing an empty Object does nothing.
func (o *Object[T]) Release() {
	if o.IsNull() {
		return
	}

	value, counter := o.value, o.counter
	o.value = nil
	o.counter = nil

	if counter == nil {
		o.options.Deleter.Delete(value, false)
		return
	}

	// The Object's own share keeps the counter alive until the decrement below
	counter.Invalidate()
	if counter.Decrement() {
		finalize(value, counter, o.options)
	}
}
