// Package window has the fixed capacity FIFO buffers used by the monitors.
package window

// FIFO is a fixed capacity first in first out buffer. Pushing on a full buffer
// evicts the oldest element. The zero value is not usable, use New.
type FIFO[T any] struct {
	items []T
	head  int
	size  int
}

// New returns a FIFO that holds at most capacity elements.
func New[T any](capacity int) *FIFO[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO[T]{items: make([]T, capacity)}
}

// Push appends v and returns the evicted element, if any.
func (f *FIFO[T]) Push(v T) (evicted T, ok bool) {
	if f.size == len(f.items) {
		evicted, ok = f.items[f.head], true
		f.items[f.head] = v
		f.head = (f.head + 1) % len(f.items)
		return evicted, ok
	}

	f.items[(f.head+f.size)%len(f.items)] = v
	f.size++
	return evicted, false
}

// Pop removes the oldest element.
func (f *FIFO[T]) Pop() (v T, ok bool) {
	if f.size == 0 {
		return v, false
	}
	var zero T
	v = f.items[f.head]
	f.items[f.head] = zero
	f.head = (f.head + 1) % len(f.items)
	f.size--
	return v, true
}

// At returns the i-th element, 0 is the oldest.
func (f *FIFO[T]) At(i int) T { return f.items[(f.head+i)%len(f.items)] }

// Oldest returns the oldest element.
func (f *FIFO[T]) Oldest() (v T, ok bool) {
	if f.size == 0 {
		return v, false
	}
	return f.items[f.head], true
}

// Newest returns the last pushed element.
func (f *FIFO[T]) Newest() (v T, ok bool) {
	if f.size == 0 {
		return v, false
	}
	return f.At(f.size - 1), true
}

func (f *FIFO[T]) Len() int { return f.size }
func (f *FIFO[T]) Cap() int { return len(f.items) }
func (f *FIFO[T]) Full() bool { return f.size == len(f.items) }

// Values returns a copy of the elements, oldest first.
func (f *FIFO[T]) Values() []T {
	vs := make([]T, 0, f.size)
	for i := 0; i < f.size; i++ {
		vs = append(vs, f.At(i))
	}
	return vs
}

// Reset empties the buffer keeping its capacity.
func (f *FIFO[T]) Reset() {
	var zero T
	for i := range f.items {
		f.items[i] = zero
	}
	f.head, f.size = 0, 0
}
