package rankup

import "github.com/MC-Prison/PrisonRanks/pkg/logger"

// Option configures an Engine.
type Option func(*Engine)

// WithDispatcher sets where rank-up commands are sent.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) {
		if d != nil {
			e.dispatcher = d
		}
	}
}

// WithAnnouncer sets who hears about successful rank-ups.
func WithAnnouncer(a Announcer) Option {
	return func(e *Engine) {
		if a != nil {
			e.announcer = a
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
