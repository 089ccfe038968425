// Package notify fans player lifecycle events out to subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// EventType names an event.
type EventType string

// Event types.
const (
	FirstJoin EventType = "first_join"
	RankedUp  EventType = "ranked_up"
)

const subscriberBuffer = 100

// Event is delivered to every subscriber.
type Event struct {
	ID     ulid.ULID
	Type   EventType
	UID    uuid.UUID
	Ladder string
	Rank   string
	At     time.Time
}

// Broadcaster distributes events to subscribers without blocking the sender.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []chan Event
	log  logger.Logger
}

// NewBroadcaster creates a broadcaster. A nil logger discards drop warnings.
func NewBroadcaster(log logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Nop()
	}
	return &Broadcaster{log: log}
}

// Subscribe returns a buffered channel receiving every later event.
func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// FirstJoin announces a newly created player record.
func (b *Broadcaster) FirstJoin(ctx context.Context, uid uuid.UUID) {
	b.Broadcast(ctx, Event{Type: FirstJoin, UID: uid})
}

// RankedUp announces a successful promotion.
func (b *Broadcaster) RankedUp(ctx context.Context, uid uuid.UUID, ladder, rank string) {
	b.Broadcast(ctx, Event{Type: RankedUp, UID: uid, Ladder: ladder, Rank: rank})
}

// Broadcast stamps ev with an id and time and sends it to every subscriber.
// Subscribers with a full buffer miss the event.
func (b *Broadcaster) Broadcast(ctx context.Context, ev Event) {
	if ev.ID.IsZero() {
		ev.ID = ulid.Make()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn(ctx, "event dropped: subscriber buffer full",
				logger.String("event_id", ev.ID.String()),
				logger.String("event_type", string(ev.Type)),
			)
		}
	}
}
