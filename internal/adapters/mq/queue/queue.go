// Package queue carries playback snapshots from the tick path to the frame
// workers. Enqueue never blocks: when the queue is full the oldest queued
// snapshot is dropped and counted, so the newest state always reaches a
// worker and a slow consumer cannot stall the timer.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 64
)

// Job is one snapshot waiting to be composed.
type Job struct {
	ID         string
	Seq        uint64
	Snapshot   playback.Snapshot
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a snapshot to the queue. When the queue is full it
	// evicts the oldest queued job instead of waiting for room.
	Enqueue(ctx context.Context, s playback.Snapshot) (Job, error)

	// Dequeue returns the channel jobs are delivered on. The channel is
	// closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	seq      atomic.Uint64
	dropped  atomic.Uint64

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

	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue wraps the snapshot in a Job with a fresh id and sequence number.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s playback.Snapshot) (Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return Job{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return Job{}, fmt.Errorf("enqueue: %w", err)
	}

	job := Job{
		ID:         uuid.NewString(),
		Seq:        q.seq.Add(1),
		Snapshot:   s,
		EnqueuedAt: time.Now(),
	}

	for {
		select {
		case q.jobs <- job:
			metrics.RecordQueueEnqueue()
			q.observe()
			return job, nil
		default:
		}
		select {
		case <-q.jobs:
			q.dropped.Add(1)
			metrics.RecordFrameDropped("queue_full")
		default:
		}
	}
}

// Dropped returns how many queued jobs were evicted to make room.
func (q *InMemoryQueue) Dropped() uint64 { return q.dropped.Load() }

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				q.observe()
				select {
				case out <- job:
					metrics.RecordQueueDequeue()
				case <-ctx.Done():
					metrics.RecordFrameDropped("cancelled")
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.observe()
}

// Close stops accepting jobs. Jobs already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.jobs)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}
