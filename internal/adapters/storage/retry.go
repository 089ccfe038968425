package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/sethvargo/go-retry"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 50 * time.Millisecond
)

// Retrying retries persistence failures of the wrapped store with
// exponential backoff and records store metrics. ErrNotFound is returned
// as is.
type Retrying struct {
	next       Store
	maxRetries uint64
	base       time.Duration
	log        logger.Logger
}

var _ Store = (*Retrying)(nil)

// NewRetrying wraps next.
func NewRetrying(next Store, opts ...Option) *Retrying {
	r := &Retrying{
		next:       next,
		maxRetries: defaultMaxRetries,
		base:       defaultBaseDelay,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempt := 0
	b := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.base))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RecordStoreRetry()
			r.log.Warn(ctx, "retrying store operation",
				logger.String("op", op), logger.String("key", key), logger.Int("attempt", attempt))
		}
		err := fn(ctx)
		if err != nil && errors.Is(err, ErrPersistence) {
			return retry.RetryableError(err)
		}
		return err
	})
	metrics.RecordStoreLatency(op, time.Since(start))
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError(op)
	}
	return err
}

func (r *Retrying) Read(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := r.do(ctx, "read", key, func(ctx context.Context) error {
		var err error
		rec, err = r.next.Read(ctx, key)
		return err
	})
	return rec, err
}

func (r *Retrying) ReadAll(ctx context.Context, kind Kind) ([]Record, error) {
	var recs []Record
	err := r.do(ctx, "readall", string(kind), func(ctx context.Context) error {
		var err error
		recs, err = r.next.ReadAll(ctx, kind)
		return err
	})
	return recs, err
}

func (r *Retrying) Write(ctx context.Context, rec Record) error {
	return r.do(ctx, "write", rec.Key, func(ctx context.Context) error {
		return r.next.Write(ctx, rec)
	})
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete", key, func(ctx context.Context) error {
		return r.next.Delete(ctx, key)
	})
}

func (r *Retrying) Close() error {
	return r.next.Close()
}
