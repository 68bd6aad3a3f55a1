package client

import "sync"

// Waiter receives the outcome of the refresh it queued behind. A nil value
// means the refresh succeeded and the caller may replay its request.
type Waiter chan error

// RefreshQueue collects callers that hit a 401 while a refresh was already
// in flight. The session releases every queued waiter together once that
// refresh settles. Release order is up to the implementation.
type RefreshQueue interface {
	Push(w Waiter)
	Drain() []Waiter
	Len() int
}

// SliceQueue is the default RefreshQueue.
type SliceQueue struct {
	mu      sync.Mutex
	waiters []Waiter
}

// NewSliceQueue returns an empty SliceQueue.
func NewSliceQueue() *SliceQueue {
	return &SliceQueue{}
}

func (q *SliceQueue) Push(w Waiter) {
	q.mu.Lock()
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()
}

// Drain empties the queue and returns what it held.
func (q *SliceQueue) Drain() []Waiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.waiters
	q.waiters = nil
	return out
}

func (q *SliceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
