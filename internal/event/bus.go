package event

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type identifies the kind of event carried on the bus.
type Type string

const (
	TypeHealthUpdated     Type = "health:updated"
	TypeIncidentCreated   Type = "incident:created"
	TypeIncidentUpdated   Type = "incident:updated"
	TypeInsightsGenerated Type = "insight:generated"
)

// Event is a single bus message. Payload holds an immutable snapshot owned
// by the publisher; subscribers must not retain references into live state.
type Event struct {
	Type    Type
	At      time.Time
	Payload any
}

// Bus is a typed publish/subscribe channel for engine events. Publishing
// never blocks: subscribers that fall behind lose events rather than stall
// the monitor loop.
type Bus struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	dropped uint64
}

// NewBus constructs an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a subscriber with the given channel buffer and returns
// the receive channel plus a cancel function. The channel is closed on cancel
// or when the bus shuts down.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers without blocking.
func (b *Bus) Publish(eventType Type, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	evt := Event{
		Type:    eventType,
		At:      time.Now().UTC(),
		Payload: payload,
	}

	for _, sub := range b.subs {
		select {
		case sub <- evt:
		default:
			b.dropped++
			b.logger.Debug().
				Str("event", string(eventType)).
				Uint64("dropped_total", b.dropped).
				Msg("slow subscriber, event dropped")
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}

// Dropped reports how many events were lost to slow subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
