// Package worker executes queued rank-up command batches.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/mq/queue"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/google/uuid"
)

const poolShutdownTimeout = 30 * time.Second

// Executor runs one command on behalf of a player.
type Executor interface {
	Execute(ctx context.Context, uid uuid.UUID, command string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, uid uuid.UUID, command string) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, uid uuid.UUID, command string) error {
	return f(ctx, uid, command)
}

// LogExecutor writes each command to the log. It stands in for a game
// server console when none is attached.
type LogExecutor struct {
	Logger logger.Logger
}

// Execute logs the command.
func (e LogExecutor) Execute(ctx context.Context, uid uuid.UUID, command string) error {
	e.Logger.Info(ctx, "dispatch command", logger.String("uid", uid.String()), logger.String("command", command))
	return nil
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(shard int) <-chan queue.Batch
	Shards() int
}

// Worker executes batches until its lane closes or it is told to stop.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker executes the batches of one queue shard in order.
type InMemoryWorker struct {
	queue Queue
	shard int
	exec  Executor
	name  string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading shard.
func NewInMemoryWorker(q Queue, shard int, exec Executor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		shard:    shard,
		exec:     exec,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run executes batches until the lane is closed and drained, ctx ends or
// Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	lane := w.queue.Dequeue(w.shard)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-lane:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, b)
		}
	}
}

// Shutdown stops the worker without draining its lane.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs every command of b in order. A failing command does not stop
// the ones after it.
func (w *InMemoryWorker) process(ctx context.Context, b queue.Batch) {
	start := time.Now()
	defer func() {
		metrics.RecordCommandLatency(time.Since(start))
	}()

	for _, cmd := range b.Commands {
		if err := w.exec.Execute(ctx, b.UID, cmd); err != nil {
			metrics.RecordCommandError()
			w.logger.Error(ctx, "command failed",
				logger.String("batch", b.ID.String()),
				logger.String("uid", b.UID.String()),
				logger.String("command", cmd),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordCommandExecuted()
	}
}

// Pool runs one worker per queue shard.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker for every shard of q.
func NewPool(q Queue, exec Executor, l logger.Logger) *Pool {
	if l == nil {
		l = logger.Nop()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, q.Shards()),
		queue:   q,
		logger:  l.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, i, exec,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(l),
		)
	}
	metrics.UpdateWorkerCount(len(p.workers))
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
// Workers still busy when ctx or the pool timeout ends are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(shutdownCtx)
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
	}
	return nil
}
