package marketplace

import (
	"time"

	"github.com/sfcompute/sfc/internal/core/window"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
	StatusExpired   OrderStatus = "expired"
)

// Pending reports whether the marketplace engine is still accepting or
// matching the order. Every other status is server-terminal.
func (s OrderStatus) Pending() bool { return s == StatusPending }

// Quote is an ephemeral market price estimate: the total price, in minor
// units, for the full window and quantity. Never persisted, never mutated.
type Quote struct {
	Side         string    `json:"side"`
	Price        int64     `json:"price"`
	Quantity     int64     `json:"quantity"` // nodes
	StartAt      string    `json:"start_at"` // "NOW" or RFC3339
	EndAt        time.Time `json:"end_at"`
	InstanceType string    `json:"instance_type,omitempty"`
	ContractID   string    `json:"contract_id,omitempty"`
	Zone         string    `json:"zone,omitempty"`
}

// StartInstant decodes the quote's start, which may be the NOW sentinel.
func (q *Quote) StartInstant() (window.Instant, error) {
	return window.Parse(q.StartAt)
}

// Order is the server-owned view of a placed order. The client only ever
// reads it; status moves pending → {open, rejected},
// open → {filled, cancelled, expired}.
type Order struct {
	ID             string      `json:"id"`
	Side           string      `json:"side"`
	Status         OrderStatus `json:"status"`
	Price          int64       `json:"price"`
	Quantity       int64       `json:"quantity"` // nodes
	StartAt        time.Time   `json:"start_at"`
	EndAt          time.Time   `json:"end_at"`
	InstanceType   string      `json:"instance_type,omitempty"`
	ContractID     string      `json:"contract_id,omitempty"`
	ExecutionPrice *int64      `json:"execution_price,omitempty"`
}

// CreateOrderRequest is the payload for POST /v0/orders. StartAt and
// EndAt are already grid-aligned by the caller; Price is the whole-window
// total in minor units.
type CreateOrderRequest struct {
	Side         string    `json:"side"`
	InstanceType string    `json:"instance_type,omitempty"`
	ContractID   string    `json:"contract_id,omitempty"`
	Quantity     int64     `json:"quantity"` // nodes
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Price        int64     `json:"price"`
	Standing     bool      `json:"standing,omitempty"`
	Zone         string    `json:"zone,omitempty"`
	ColocateWith string    `json:"colocate_with,omitempty"`
}

// QuoteParams is the query for GET /v0/quote. Min/MaxDurationSeconds is
// the tolerance window computed by the pricing resolver, not the user's
// literal duration.
type QuoteParams struct {
	Side               string
	InstanceType       string
	Zone               string
	ColocateWith       string
	Quantity           int64 // nodes
	MinStartAt         window.Instant
	MaxStartAt         window.Instant
	MinDurationSeconds int64
	MaxDurationSeconds int64
}
