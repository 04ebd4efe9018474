package queue

// Ring is a fixed-capacity FIFO ring buffer. It is not safe for concurrent
// use; callers serialize access with their own lock.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

// NewRing creates an empty ring holding at most capacity items.
// A negative capacity is treated as zero.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// PushBack appends v and reports whether there was room for it.
func (r *Ring[T]) PushBack(v T) bool {
	if r.size == len(r.items) {
		return false
	}
	r.items[(r.head+r.size)%len(r.items)] = v
	r.size++
	return true
}

// PopFront removes and returns the oldest item.
func (r *Ring[T]) PopFront() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	v := r.items[r.head]
	r.items[r.head] = zero // release the reference
	r.head = (r.head + 1) % len(r.items)
	r.size--
	return v, true
}

// Front returns the oldest item without removing it.
func (r *Ring[T]) Front() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.items[r.head], true
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Full reports whether the ring is at capacity.
func (r *Ring[T]) Full() bool { return r.size == len(r.items) }

// Empty reports whether the ring holds no items.
func (r *Ring[T]) Empty() bool { return r.size == 0 }

// grow doubles the capacity, keeping order. Used by Queue.
func (r *Ring[T]) grow() {
	n := len(r.items) * 2
	if n == 0 {
		n = 8
	}
	items := make([]T, n)
	for i := 0; i < r.size; i++ {
		items[i] = r.items[(r.head+i)%len(r.items)]
	}
	r.items = items
	r.head = 0
}
