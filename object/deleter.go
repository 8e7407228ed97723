package object

// Deleter destroys a value whose last handle was released. When coAllocated is true the value lives
// inside the block that is about to be returned to the allocator, and the deleter must only run the
// value's own teardown. Otherwise the value was constructed elsewhere and the deleter is responsible
// for releasing it in whatever way it was obtained.
type Deleter[T any] interface {
	Delete(value *T, coAllocated bool)
}

// DeleterFunc adapts a function to the Deleter interface
type DeleterFunc[T any] func(value *T, coAllocated bool)

func (f DeleterFunc[T]) Delete(value *T, coAllocated bool) {
	f(value, coAllocated)
}

// Destructor is implemented by values that hold resources which must be released when their owner
// lets go of them
type Destructor interface {
	Destruct()
}

// DefaultDeleter calls Destruct on values implementing Destructor. Co-allocated values are then
// zeroed in place, so that nothing they refer to is kept alive by the block.
type DefaultDeleter[T any] struct{}

func (DefaultDeleter[T]) Delete(value *T, coAllocated bool) {
	destructor, ok := any(value).(Destructor)
	if ok {
		destructor.Destruct()
	}

	if coAllocated {
		var zero T
		*value = zero
	}
}
