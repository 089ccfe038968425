// Package registry owns the in-memory rank, ladder and player indices and
// mirrors every mutation to the persistent store before committing it.
package registry

import (
	"context"

	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/google/uuid"
)

// JoinNotifier is told about newly created player records.
type JoinNotifier interface {
	FirstJoin(ctx context.Context, uid uuid.UUID)
}

type nopNotifier struct{}

func (nopNotifier) FirstJoin(context.Context, uuid.UUID) {}

type options struct {
	log      logger.Logger
	notifier JoinNotifier
}

func newOptions(opts []Option) options {
	o := options{log: logger.Nop(), notifier: nopNotifier{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a registry.
type Option func(*options)

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithJoinNotifier sets who hears about first joins. Only Players uses it.
func WithJoinNotifier(n JoinNotifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}
