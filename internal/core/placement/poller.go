package placement

import (
	"context"
	"errors"
	"time"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/telemetry"
)

// ErrPollExhausted means every poll attempt saw the order still pending
// (or not yet visible). The order may or may not exist server-side; the
// caller must surface this as an ambiguous outcome, not success or failure.
var ErrPollExhausted = errors.New("order still pending after polling")

// OrderGetter is the read-only slice of the order API the poller needs.
type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (*marketplace.Order, error)
}

// Poller drives a freshly submitted order out of the transient pending
// status with a fixed-interval, attempt-bounded read loop. At most one
// poll request is in flight; there is no backoff and no worker pool.
type Poller struct {
	api      OrderGetter
	interval time.Duration
	attempts int
	clock    Clock
}

func NewPoller(api OrderGetter, interval time.Duration, attempts int, clock Clock) *Poller {
	if clock == nil {
		clock = RealClock()
	}
	return &Poller{api: api, interval: interval, attempts: attempts, clock: clock}
}

// Wait polls until the order leaves pending or the attempt budget runs
// out. A transient lookup failure (order not yet visible, transport
// hiccup) is retried against the same budget; a 401 aborts immediately.
func (p *Poller) Wait(ctx context.Context, id string) (*marketplace.Order, error) {
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			if err := p.clock.Sleep(ctx, p.interval); err != nil {
				return nil, err
			}
		}

		telemetry.Metrics.PollAttempts.Inc()
		order, err := p.api.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, marketplace.ErrSessionExpired) {
				return nil, err
			}
			telemetry.Debugf("poll %d/%d: %s not visible yet: %v", attempt+1, p.attempts, id, err)
			continue
		}
		if !order.Status.Pending() {
			return order, nil
		}
		telemetry.Debugf("poll %d/%d: %s still pending", attempt+1, p.attempts, id)
	}
	return nil, ErrPollExhausted
}
