package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
)

var (
	// ErrQueueClosed is returned by Push after Close, and by Pop once the
	// queue is closed and empty.
	ErrQueueClosed = stderrors.New("scheduler: queue closed")
	// ErrQueueFull is returned by Push on a bounded queue at capacity.
	ErrQueueFull = stderrors.New("scheduler: queue full")
)

// Queue is a FIFO safe for any number of producers and consumers. Push never
// blocks; Pop blocks until an item is available, the queue is closed and
// empty, or ctx is done. A capacity of zero means unbounded.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	ready    chan struct{}
	closed   bool
	capacity int
}

// NewQueue creates a queue. capacity <= 0 makes it unbounded.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{ready: make(chan struct{}), capacity: capacity}
}

// Push appends v and wakes waiting consumers.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, v)
	close(q.ready)
	q.ready = make(chan struct{})
	return nil
}

// Pop removes and returns the oldest item.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if v, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryPop removes and returns the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true
}

// Close stops admission and wakes every waiting consumer. Items already
// queued remain poppable. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// DrainAll removes and returns every queued item.
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the configured capacity, 0 for unbounded.
func (q *Queue[T]) Capacity() int {
	return q.capacity
}
