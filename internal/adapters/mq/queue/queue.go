// Package queue buffers rank-up command batches between the rank-up engine
// and the command workers.
package queue

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultShards        = 1
)

// Batch is the ordered list of commands one rank-up produced.
type Batch struct {
	ID       ulid.ULID
	UID      uuid.UUID
	Commands []string
	Enqueued time.Time
}

// Queue provides non-blocking enqueue and per-shard channel dequeue.
type Queue interface {
	// Enqueue adds a batch or fails with ErrFull or ErrClosed.
	Enqueue(ctx context.Context, b Batch) error
	// Dequeue returns the channel of shard. It is closed when the queue closes.
	Dequeue(shard int) <-chan Batch
	// Shards returns the number of lanes.
	Shards() int
	// Len returns the number of queued batches.
	Len() int
	// Close stops accepting batches. Queued batches can still be drained.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with one buffered channel per shard.
type InMemoryQueue struct {
	lanes    []chan Batch
	capacity int
	shards   int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		shards:   defaultShards,
	}
	for _, opt := range opts {
		opt(q)
	}

	per := q.capacity / q.shards
	if per < 1 {
		per = 1
	}
	q.lanes = make([]chan Batch, q.shards)
	for i := range q.lanes {
		q.lanes[i] = make(chan Batch, per)
	}

	metrics.UpdateQueueCapacity(per * q.shards)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) shardOf(uid uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write(uid[:])
	return int(h.Sum32() % uint32(len(q.lanes)))
}

// Enqueue adds a batch to the lane of its player without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, b Batch) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}
	if b.ID.IsZero() {
		b.ID = ulid.Make()
	}
	if b.Enqueued.IsZero() {
		b.Enqueued = time.Now()
	}

	select {
	case q.lanes[q.shardOf(b.UID)] <- b:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(q.Len())
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return ErrFull
	}
}

// Dispatch queues commands for uid as one batch.
func (q *InMemoryQueue) Dispatch(ctx context.Context, uid uuid.UUID, commands []string) error {
	return q.Enqueue(ctx, Batch{UID: uid, Commands: slices.Clone(commands)})
}

// Dequeue returns the channel of shard.
func (q *InMemoryQueue) Dequeue(shard int) <-chan Batch {
	return q.lanes[shard]
}

// Shards returns the number of lanes.
func (q *InMemoryQueue) Shards() int {
	return len(q.lanes)
}

// Len returns the current number of queued batches.
func (q *InMemoryQueue) Len() int {
	n := 0
	for _, l := range q.lanes {
		n += len(l)
	}
	return n
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	for _, l := range q.lanes {
		close(l)
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
