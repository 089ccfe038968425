package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of queued batches across all shards.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithShards sets how many independent lanes the queue has. Batches of one
// player always use the same lane.
func WithShards(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.shards = n
		}
	}
}
