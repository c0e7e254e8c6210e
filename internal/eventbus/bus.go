package eventbus

import (
	"context"
	"sync"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// Bus fans out thread list change notifications to per-user subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.UserID]map[chan schema.ThreadEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.UserID]map[chan schema.ThreadEvent]struct{}),
		log:   logger,
		depth: 64,
	}
}

// Subscribe registers a subscriber for the user and returns a channel + cancel.
func (b *Bus) Subscribe(userID schema.UserID) (<-chan schema.ThreadEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.ThreadEvent, b.depth)
	b.mu.Lock()
	userSubs := b.subs[userID]
	if userSubs == nil {
		userSubs = make(map[chan schema.ThreadEvent]struct{})
		b.subs[userID] = userSubs
	}
	userSubs[ch] = struct{}{}
	count := len(userSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("user", userID).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[userID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, userID)
				}
			}
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.With("user", userID).Debug("eventbus unsubscribe")
			}
		})
	}
}

// Publish notifies subscribers of the event's user. Slow subscribers drop events.
func (b *Bus) Publish(event schema.ThreadEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	userSubs := b.subs[event.UserID]
	subs := make([]chan schema.ThreadEvent, 0, len(userSubs))
	for sub := range userSubs {
		subs = append(subs, sub)
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("user", event.UserID).Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
