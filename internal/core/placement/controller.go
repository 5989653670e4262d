// Package placement turns user intent into a submitted order and drives
// it to a terminal state: quote → confirm → submit → poll.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/money"
	"github.com/sfcompute/sfc/internal/core/pricing"
	"github.com/sfcompute/sfc/internal/core/window"
	"github.com/sfcompute/sfc/internal/events"
	"github.com/sfcompute/sfc/internal/telemetry"
)

// Local validation and precondition failures. All fail before any network
// call, with no partial side effects.
var (
	ErrNoQuote = errors.New("no market quote available for the requested window")

	errBadSide     = errors.New("side must be buy or sell")
	errBadGPUs     = errors.New("gpu count must be a positive multiple of the node size")
	errBadDuration = errors.New("duration must be positive")
	errBadPrice    = errors.New("price must be a positive whole amount")
	errEmptyWindow = errors.New("start must be before end")
	errNoSelector  = errors.New("an instance type or contract id is required")
)

// Config carries the platform constants and poll tuning. Injected, never
// read from globals, so tests can run with different platform scales.
type Config struct {
	GPUsPerNode  int64
	Scale        int64 // minor units per dollar, display only
	PollInterval time.Duration
	PollAttempts int
	Clock        Clock
}

// Controller is a single-use state machine for one order attempt. It
// issues one outstanding network request at a time and never retries a
// submission on its own.
type Controller struct {
	cfg     Config
	api     OrderAPI
	quoter  Quoter
	confirm Confirmer
	bus     *events.Bus
	poller  *Poller
}

func NewController(cfg Config, api OrderAPI, quoter Quoter, confirm Confirmer, bus *events.Bus) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	return &Controller{
		cfg:     cfg,
		api:     api,
		quoter:  quoter,
		confirm: confirm,
		bus:     bus,
		poller:  NewPoller(api, cfg.PollInterval, cfg.PollAttempts, cfg.Clock),
	}
}

// Run executes the attempt. Local validation failures come back as an
// error; everything that happens after the first network call comes back
// as a terminal Outcome.
func (c *Controller) Run(ctx context.Context, intent Intent) (Outcome, error) {
	nodes, err := c.validate(intent)
	if err != nil {
		return Outcome{}, err
	}

	rate, quoted, outcome, err := c.resolveRate(ctx, intent, nodes)
	if err != nil || outcome != nil {
		if outcome != nil {
			return *outcome, nil
		}
		return Outcome{}, err
	}

	if !intent.AutoConfirm && c.confirm != nil {
		c.publish(StateAwaitingConfirmation, "waiting for confirmation")
		ok, err := c.confirm(c.summarize(intent, nodes, rate, quoted))
		if err != nil {
			return Outcome{}, fmt.Errorf("confirmation: %w", err)
		}
		if !ok {
			// user said no: local terminal state, zero network calls
			return Outcome{Kind: OutcomeCancelled, Message: "order cancelled before submission"}, nil
		}
	}

	order, out := c.submit(ctx, intent, nodes, rate)
	if out != nil {
		return *out, nil
	}

	return c.poll(ctx, order), nil
}

func (c *Controller) validate(intent Intent) (int64, error) {
	if intent.Side != marketplace.SideBuy && intent.Side != marketplace.SideSell {
		return 0, errBadSide
	}
	if intent.InstanceType == "" && intent.ContractID == "" {
		return 0, errNoSelector
	}
	if intent.GPUs <= 0 || intent.GPUs%c.cfg.GPUsPerNode != 0 {
		return 0, fmt.Errorf("%w (%d gpus per node)", errBadGPUs, c.cfg.GPUsPerNode)
	}
	if intent.EndAt == nil && intent.DurationSeconds <= 0 {
		return 0, errBadDuration
	}
	if intent.LimitPrice != nil && *intent.LimitPrice <= 0 {
		return 0, errBadPrice
	}
	if intent.EndAt != nil {
		// a window that is already over must fail here, before the quote
		// call — not at submit time after a network round trip
		start := window.ResolveStart(intent.Start, c.cfg.Clock.Now())
		if !window.ResolveEnd(*intent.EndAt).After(start) {
			return 0, fmt.Errorf("%w (end %s has already passed)",
				errEmptyWindow, intent.EndAt.Format(time.RFC3339))
		}
	}
	return intent.GPUs / c.cfg.GPUsPerNode, nil
}

// resolveRate produces the per-GPU-hour rate in minor units. An explicit
// limit price skips quoting entirely.
func (c *Controller) resolveRate(ctx context.Context, intent Intent, nodes int64) (decimal.Decimal, bool, *Outcome, error) {
	if intent.LimitPrice != nil {
		return decimal.NewFromInt(*intent.LimitPrice), false, nil, nil
	}

	c.publish(StateQuoting, "fetching market quote")
	quote, err := c.quoter.Quote(ctx, pricing.Request{
		Side:            intent.Side,
		InstanceType:    intent.InstanceType,
		Zone:            intent.Zone,
		ColocateWith:    intent.ColocateWith,
		Quantity:        nodes,
		StartAt:         intent.Start,
		DurationSeconds: c.provisionalDuration(intent),
	})
	if err != nil {
		out := c.classifyFailure(err, "quote")
		return decimal.Zero, false, &out, nil
	}
	if quote == nil {
		if intent.NoQuoteFloor == nil {
			// the engine never invents a price
			return decimal.Zero, false, nil, ErrNoQuote
		}
		telemetry.Warnf("no quote; falling back to caller-supplied floor price")
		return decimal.NewFromInt(*intent.NoQuoteFloor), false, nil, nil
	}

	rate, err := pricing.PerGPUHour(quote, c.cfg.GPUsPerNode, c.cfg.Clock.Now())
	if err != nil {
		return decimal.Zero, false, nil, fmt.Errorf("derive rate: %w", err)
	}
	return rate, true, nil, nil
}

// provisionalDuration is the duration used for quoting only. Submission
// recomputes the window from a fresh start resolution.
func (c *Controller) provisionalDuration(intent Intent) int64 {
	if intent.EndAt == nil {
		return intent.DurationSeconds
	}
	start := window.ResolveStart(intent.Start, c.cfg.Clock.Now())
	return int64(window.ResolveEnd(*intent.EndAt).Sub(start) / time.Second)
}

func (c *Controller) summarize(intent Intent, nodes int64, rate decimal.Decimal, quoted bool) Summary {
	now := c.cfg.Clock.Now()
	startAt := window.ResolveStart(intent.Start, now)
	endAt := c.resolveEnd(intent, startAt)
	durSecs := int64(endAt.Sub(startAt) / time.Second)
	return Summary{
		Side:            intent.Side,
		InstanceType:    intent.InstanceType,
		GPUs:            intent.GPUs,
		Nodes:           nodes,
		RatePerGPUHour:  rate,
		Total:           money.TotalPrice(rate, nodes, c.cfg.GPUsPerNode, durSecs),
		StartAt:         startAt,
		EndAt:           endAt,
		DurationSeconds: durSecs,
		Quoted:          quoted,
	}
}

func (c *Controller) resolveEnd(intent Intent, startAt time.Time) time.Time {
	if intent.EndAt != nil {
		return window.ResolveEnd(*intent.EndAt)
	}
	return window.ResolveEnd(startAt.Add(time.Duration(intent.DurationSeconds) * time.Second))
}

// submit re-resolves the start instant immediately before the network
// call — the user may have sat on the confirmation prompt for a long
// time, and a stale start must never be transmitted.
func (c *Controller) submit(ctx context.Context, intent Intent, nodes int64, rate decimal.Decimal) (*marketplace.Order, *Outcome) {
	now := c.cfg.Clock.Now()
	startAt := window.ResolveStart(intent.Start, now)
	endAt := c.resolveEnd(intent, startAt)
	durSecs := int64(endAt.Sub(startAt) / time.Second)
	if durSecs <= 0 {
		return nil, &Outcome{Kind: OutcomeError, Err: errEmptyWindow,
			Message: fmt.Sprintf("start %s is not before end %s", startAt.Format(time.RFC3339), endAt.Format(time.RFC3339))}
	}

	total := money.TotalPrice(rate, nodes, c.cfg.GPUsPerNode, durSecs)
	if total <= 0 || nodes <= 0 {
		return nil, &Outcome{Kind: OutcomeError, Err: errBadPrice,
			Message: "computed total price is not a positive amount"}
	}

	c.publish(StateSubmitting, fmt.Sprintf("submitting %s for %d gpus, total %s",
		intent.Side, intent.GPUs, money.FormatAmount(total, c.cfg.Scale)))

	order, err := c.api.CreateOrder(ctx, marketplace.CreateOrderRequest{
		Side:         intent.Side,
		InstanceType: intent.InstanceType,
		ContractID:   intent.ContractID,
		Quantity:     nodes,
		StartAt:      startAt,
		EndAt:        endAt,
		Price:        total,
		Standing:     intent.Standing,
		Zone:         intent.Zone,
		ColocateWith: intent.ColocateWith,
	})
	if err != nil {
		out := c.classifyFailure(err, "submit")
		return nil, &out
	}
	return order, nil
}

func (c *Controller) poll(ctx context.Context, order *marketplace.Order) Outcome {
	c.publish(StatePolling, "order "+order.ID+" placed, waiting for the market")

	final, err := c.poller.Wait(ctx, order.ID)
	switch {
	case errors.Is(err, ErrPollExhausted):
		return Outcome{Kind: OutcomeAmbiguous, Order: order,
			Message: "order " + order.ID + " is still pending and possibly placed — check `sfc orders list`"}
	case errors.Is(err, marketplace.ErrSessionExpired):
		return Outcome{Kind: OutcomeSessionExpired, Order: order, Err: err, Message: err.Error()}
	case err != nil:
		return Outcome{Kind: OutcomeError, Order: order, Err: err,
			Message: "lost track of order " + order.ID + ": " + err.Error()}
	}

	return c.terminalFromStatus(final)
}

func (c *Controller) terminalFromStatus(order *marketplace.Order) Outcome {
	out := Outcome{Order: order}
	switch order.Status {
	case marketplace.StatusFilled:
		out.Kind = OutcomeFilled
		out.Message = "order " + order.ID + " filled"
		if order.ExecutionPrice != nil {
			out.Message += " at " + money.FormatAmount(*order.ExecutionPrice, c.cfg.Scale)
		}
	case marketplace.StatusOpen:
		out.Kind = OutcomeOpen
		out.Message = "order " + order.ID + " is open on the book"
	case marketplace.StatusCancelled:
		out.Kind = OutcomeCancelled
		out.Message = "order " + order.ID + " was cancelled"
	case marketplace.StatusRejected:
		out.Kind = OutcomeRejected
		out.Message = "order " + order.ID + " was rejected by the marketplace"
	case marketplace.StatusExpired:
		out.Kind = OutcomeExpired
		out.Message = "order " + order.ID + " expired before matching"
	default:
		out.Kind = OutcomeAmbiguous
		out.Message = "order " + order.ID + " is in an unexpected state: " + string(order.Status)
	}
	return out
}

// classifyFailure maps a network-call error onto the terminal taxonomy:
// 401 session-expired, recognized 400 codes to specific messages,
// unrecognized 400s to the raw server detail, everything else (5xx,
// connectivity) to a non-retried Error.
func (c *Controller) classifyFailure(err error, phase string) Outcome {
	if errors.Is(err, marketplace.ErrSessionExpired) {
		return Outcome{Kind: OutcomeSessionExpired, Err: err, Message: err.Error()}
	}
	if apiErr, ok := marketplace.AsAPIError(err); ok {
		if apiErr.Status == 400 {
			if apiErr.Code == marketplace.CodeInsufficientBalance {
				return Outcome{Kind: OutcomeRejected, Err: err,
					Message: "insufficient funds to cover this order — add funds and try again"}
			}
			return Outcome{Kind: OutcomeRejected, Err: err,
				Message: "marketplace rejected the " + phase + ": " + apiErr.Message}
		}
		return Outcome{Kind: OutcomeError, Err: err,
			Message: "marketplace " + phase + " failed: " + apiErr.Message}
	}
	return Outcome{Kind: OutcomeError, Err: err,
		Message: "could not reach the marketplace during " + phase + ": " + err.Error()}
}

func (c *Controller) publish(state State, msg string) {
	telemetry.Debugf("placement: %s: %s", state, msg)
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.New(events.EventPlacementState, events.PlacementTransition{
		State:   string(state),
		Message: msg,
	}))
}
