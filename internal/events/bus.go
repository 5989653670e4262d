package events

import (
	"sync"

	"github.com/sfcompute/sfc/internal/telemetry"
)

// Handler consumes one event. A handler error is reported and dispatch
// moves on to the next subscriber.
type Handler func(Event) error

// Bus fans events out synchronously on the publisher's goroutine, in the
// order handlers subscribed. The placement engine publishes state
// transitions through it and the CLI renders them; a handler that needs
// to block should hand off to its own goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish delivers e to every handler subscribed to its type.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(e); err != nil {
			telemetry.Warnf("event handler failed for %s: %v", e.Type, err)
		}
	}
}
