package events

import "time"

type EventType string

const (
	// EventPlacementState fires on every order-attempt state transition.
	// Payload is PlacementTransition.
	EventPlacementState EventType = "placement_state"

	// EventOrderUpdate fires when the fill poller or the order feed
	// observes a status change on a live order. Payload is OrderUpdate.
	EventOrderUpdate EventType = "order_update"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// PlacementTransition describes one step of the order-placement state
// machine, rendered by the CLI as progress output.
type PlacementTransition struct {
	State   string
	Message string
}

// OrderUpdate is a status observation for an order already on the book.
type OrderUpdate struct {
	OrderID string
	Status  string
}

func New(t EventType, payload any) Event {
	return Event{Type: t, Timestamp: time.Now(), Payload: payload}
}
