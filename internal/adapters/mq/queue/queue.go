// Package queue holds fired alerts between the ingestion loop and the
// notification workers.
//
// Enqueue never blocks: the ingestion loop must keep reading datagrams while
// a slow endpoint is being called, so alerts beyond capacity are dropped.
package queue

import (
	"context"
	"sync"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/pkg/metrics"
)

const defaultQueueCapacity = 64

// Drop reasons reported to metrics.
const (
	reasonClosed    = "closed"
	reasonFull      = "queue_full"
	reasonCancelled = "context_cancelled"
)

// Alert is the payload type flowing through the queue.
type Alert = model.Alert

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an alert to the queue.
	// Returns false if the queue is full or closed and the alert was dropped.
	Enqueue(ctx context.Context, a Alert) bool

	// Dequeue returns a channel that will receive alerts as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Alert

	// Len returns the current number of queued alerts.
	Len(ctx context.Context) int

	// Close stops accepting alerts. Already queued alerts remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	alerts   chan Alert
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.alerts = make(chan Alert, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds an alert to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, a Alert) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject(reasonClosed)
		return false
	}
	if ctx.Err() != nil {
		q.reject(reasonCancelled)
		return false
	}

	select {
	case q.alerts <- a:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.alerts))
		return true
	default:
		q.reject(reasonFull)
		return false
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueEnqueueError(reason)
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns a channel that will receive alerts as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Alert {
	out := make(chan Alert)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-q.alerts:
				if !ok {
					return
				}
				select {
				case out <- a:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.alerts))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued alerts.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.alerts)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting alerts.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.alerts)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
