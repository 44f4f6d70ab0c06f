// Package queue holds pending telemetry between the tick loop and the
// storage workers. The loop pushes per-frame samples and run events; a
// worker drains everything in one batch on its interval.
package queue

import (
	"sync"
)

// Queue is a mutex-guarded FIFO. Safe for one producer and one consumer on
// different goroutines, which is all the engine needs.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether nothing is queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// GetAndEmpty takes the whole batch, leaving the queue empty. The returned
// slice is owned by the caller; a failed flush can Push it back.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = make([]T, 0, cap(q.items))
	return batch
}
