package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/mq/queue"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/mq/worker"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	uid uuid.UUID
	cmd string
}

type recordingExecutor struct {
	mu    sync.Mutex
	calls []call
	fail    map[string]error
	block   chan struct{}
	started chan struct{}
}

func (r *recordingExecutor) Execute(_ context.Context, uid uuid.UUID, cmd string) error {
	if r.block != nil {
		r.started <- struct{}{}
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{uid: uid, cmd: cmd})
	return r.fail[cmd]
}

func (r *recordingExecutor) commandsFor(uid uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if c.uid == uid {
			out = append(out, c.cmd)
		}
	}
	return out
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a sharded queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000), queue.WithShards(4))
		exec := &recordingExecutor{fail: map[string]error{"boom": errors.New("unknown command")}}
		pool := worker.NewPool(q, exec, logger.Nop())
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When several players dispatch batches", func() {
			a, b := uuid.New(), uuid.New()
			for _, cmds := range [][]string{{"a1", "a2"}, {"boom", "a3"}, {"a4"}} {
				convey.So(q.Dispatch(ctx, a, cmds), convey.ShouldBeNil)
			}
			convey.So(q.Dispatch(ctx, b, []string{"b1"}), convey.ShouldBeNil)
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then each player's commands run in order and failures do not stop the batch", func() {
				convey.So(exec.commandsFor(a), convey.ShouldResemble, []string{"a1", "a2", "boom", "a3", "a4"})
				convey.So(exec.commandsFor(b), convey.ShouldResemble, []string{"b1"})
			})

			convey.Convey("Then the queue refuses new batches", func() {
				convey.So(errors.Is(q.Dispatch(ctx, a, []string{"late"}), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When nothing is queued", func() {
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	convey.Convey("Given a worker blocked inside a command", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		exec := &recordingExecutor{block: make(chan struct{}), started: make(chan struct{}, 1)}
		w := worker.NewInMemoryWorker(q, 0, exec, worker.WithName("w0"))
		go w.Run(ctx)

		convey.So(q.Dispatch(ctx, uuid.New(), []string{"slow"}), convey.ShouldBeNil)
		<-exec.started

		convey.Convey("When shutdown times out", func() {
			tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			err := w.Shutdown(tctx)

			convey.Convey("Then the timeout is reported and the worker exits once unblocked", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
				close(exec.block)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, 0, worker.ExecutorFunc(func(context.Context, uuid.UUID, string) error { return nil }))
		go w.Run(ctx)
		cancel()

		convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
	})
}
