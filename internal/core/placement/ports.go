package placement

import (
	"context"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/pricing"
)

// OrderAPI abstracts the marketplace order endpoints the engine needs.
// Satisfied by *marketplace.Client.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req marketplace.CreateOrderRequest) (*marketplace.Order, error)
	GetOrder(ctx context.Context, id string) (*marketplace.Order, error)
}

// Quoter abstracts the pricing resolver.
// Satisfied by *pricing.Resolver.
type Quoter interface {
	Quote(ctx context.Context, req pricing.Request) (*marketplace.Quote, error)
}

// Confirmer shows the priced order to the user and returns their
// decision. It is skipped entirely in pre-authorized ("yes") mode.
type Confirmer func(Summary) (bool, error)
