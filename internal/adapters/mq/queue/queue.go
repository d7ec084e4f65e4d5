// Package queue holds pending pet mutations for the single state writer.
package queue

import (
	"context"
	"sync"

	"github.com/okian/couplepet/internal/domain/model"
	"github.com/okian/couplepet/pkg/metrics"
)

const defaultQueueCapacity = 64

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds m to the queue.
	// Returns false if the queue is full or closed and m was not enqueued.
	Enqueue(ctx context.Context, m model.Mutation) bool

	// Dequeue returns the channel the writer drains. It is closed by Close
	// once pending mutations have been received.
	Dequeue() <-chan model.Mutation

	Len() int
	Cap() int

	// Close stops accepting mutations.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	mutations chan model.Mutation
	capacity  int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.mutations = make(chan model.Mutation, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m model.Mutation) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	select {
	case q.mutations <- m:
		metrics.UpdateQueueSize(len(q.mutations))
		return true
	default:
		metrics.RecordQueueRejected()
		return false
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue() <-chan model.Mutation {
	return q.mutations
}

// Len returns the number of pending mutations.
func (q *InMemoryQueue) Len() int {
	n := len(q.mutations)
	metrics.UpdateQueueSize(n)
	return n
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close implements Queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.mutations)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
