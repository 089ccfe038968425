package storage

import (
	"time"

	"github.com/MC-Prison/PrisonRanks/pkg/logger"
)

// Option configures a Retrying store.
type Option func(*Retrying)

// WithMaxRetries sets how many times a failed operation is retried.
func WithMaxRetries(n int) Option {
	return func(r *Retrying) {
		if n >= 0 {
			r.maxRetries = uint64(n)
		}
	}
}

// WithBaseDelay sets the first backoff delay; later delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrying) {
		if d > 0 {
			r.base = d
		}
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(l logger.Logger) Option {
	return func(r *Retrying) {
		if l != nil {
			r.log = l
		}
	}
}
