// Package pricing turns a loosely specified window into a market quote.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/money"
	"github.com/sfcompute/sfc/internal/core/window"
)

// QuoteGetter abstracts the marketplace quote endpoint.
// Satisfied by *marketplace.Client.
type QuoteGetter interface {
	GetQuote(ctx context.Context, p marketplace.QuoteParams) (*marketplace.Quote, error)
}

// Request describes the window the user wants priced. Quantity is nodes.
type Request struct {
	Side            string
	InstanceType    string
	Zone            string
	ColocateWith    string
	Quantity        int64
	StartAt         window.Instant
	DurationSeconds int64
}

type Resolver struct {
	client QuoteGetter
	group  singleflight.Group
}

func NewResolver(client QuoteGetter) *Resolver {
	return &Resolver{client: client}
}

// DurationWindow widens a desired duration into the −10%/+10% tolerance
// window used for price discovery, so thin exact-duration liquidity still
// yields a representative price. The upper bound is always at least one
// hour past the desired duration.
func DurationWindow(d int64) (min, max int64) {
	tolerance := (d + 9) / 10 // ceil(0.1·d)
	min = d - tolerance
	if min < 1 {
		min = 1
	}
	max = d + tolerance
	if max < d+3600 {
		max = d + 3600
	}
	return min, max
}

// Quote fetches a market quote for the request. A nil quote with nil
// error means the market has no data; the caller decides whether to fall
// back or abort. Concurrent identical requests share one HTTP call.
func (r *Resolver) Quote(ctx context.Context, req Request) (*marketplace.Quote, error) {
	minDur, maxDur := DurationWindow(req.DurationSeconds)

	params := marketplace.QuoteParams{
		Side:               req.Side,
		InstanceType:       req.InstanceType,
		Zone:               req.Zone,
		ColocateWith:       req.ColocateWith,
		Quantity:           req.Quantity,
		MinStartAt:         req.StartAt,
		MaxStartAt:         req.StartAt,
		MinDurationSeconds: minDur,
		MaxDurationSeconds: maxDur,
	}

	key := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%d-%d",
		params.Side, params.InstanceType, params.Zone, params.ColocateWith,
		params.Quantity, params.MinStartAt, minDur, maxDur)

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.client.GetQuote(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	quote, _ := v.(*marketplace.Quote)
	return quote, nil
}

// PerGPUHour derives the quote's per-GPU-hour rate. A NOW start resolves
// to the next whole minute first — using "this instant" would inflate the
// rate on very short windows.
func PerGPUHour(q *marketplace.Quote, gpusPerNode int64, now time.Time) (decimal.Decimal, error) {
	start, err := q.StartInstant()
	if err != nil {
		return decimal.Zero, err
	}
	resolved := window.ResolveStart(start, now)
	seconds := int64(q.EndAt.Sub(resolved) / time.Second)
	if seconds <= 0 {
		return decimal.Zero, fmt.Errorf("quote window is empty: start=%s end=%s", resolved, q.EndAt)
	}
	return money.PerGPUHour(q.Price, q.Quantity, gpusPerNode, seconds), nil
}
