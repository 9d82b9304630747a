// Package queue holds completion queues on which callbacks are delivered.
package queue

import "sync"

// Queue describes entity that has ability to run callbacks on behalf of a consumer.
type Queue interface {
	// Dispatch schedules fn for execution.
	Dispatch(fn func())
}

// ImmediateQueue runs callbacks synchronously on the dispatching goroutine.
type ImmediateQueue struct{}

func NewImmediateQueue() ImmediateQueue { return ImmediateQueue{} }

// Dispatch runs fn before returning.
func (q ImmediateQueue) Dispatch(fn func()) { fn() }

// SerialQueue runs callbacks one at a time, in dispatch order, on a single
// worker goroutine. Safe for concurrent use.
type SerialQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func NewSerialQueue() *SerialQueue { return &SerialQueue{} }

// Dispatch appends fn to the queue and makes sure a worker is draining it.
// Callbacks dispatched from different goroutines never run concurrently.
func (q *SerialQueue) Dispatch(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}

	q.running = true
	q.mu.Unlock()

	go q.drain()
}

// drain runs queued callbacks until the queue is empty.
func (q *SerialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}

		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}
