// Package queue provides the FIFO containers used by channels and executors.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe unbounded queue.
type Queue[T any] struct {
	mu    sync.Mutex
	items Ring[T]
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range items {
		if q.items.Full() {
			q.items.grow()
		}
		q.items.PushBack(item)
	}
}

// Pop removes and returns the first item. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.PopFront()
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Empty()
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = Ring[T]{}
}

// Drain returns all items in order and clears the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]T, 0, q.items.Len())
	for {
		item, ok := q.items.PopFront()
		if !ok {
			return result
		}
		result = append(result, item)
	}
}
