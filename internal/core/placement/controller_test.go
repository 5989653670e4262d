package placement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/pricing"
	"github.com/sfcompute/sfc/internal/core/window"
)

var testNow = time.Date(2026, 3, 14, 10, 23, 42, 0, time.UTC)

type fakeAPI struct {
	createReq   *marketplace.CreateOrderRequest
	createResp  *marketplace.Order
	createErr   error
	createCalls int

	statuses []marketplace.OrderStatus
	getCalls int
}

func (f *fakeAPI) CreateOrder(_ context.Context, req marketplace.CreateOrderRequest) (*marketplace.Order, error) {
	f.createCalls++
	f.createReq = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &marketplace.Order{
		ID: "ord_test", Side: req.Side, Status: marketplace.StatusPending,
		Price: req.Price, Quantity: req.Quantity, StartAt: req.StartAt, EndAt: req.EndAt,
	}, nil
}

func (f *fakeAPI) GetOrder(_ context.Context, id string) (*marketplace.Order, error) {
	i := f.getCalls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.getCalls++
	return &marketplace.Order{ID: id, Status: f.statuses[i]}, nil
}

type fakeQuoter struct {
	quote *marketplace.Quote
	err   error
	calls int
}

func (f *fakeQuoter) Quote(_ context.Context, _ pricing.Request) (*marketplace.Quote, error) {
	f.calls++
	return f.quote, f.err
}

func newTestController(api *fakeAPI, quoter *fakeQuoter, confirm Confirmer) (*Controller, *fakeClock) {
	clock := &fakeClock{now: testNow}
	return NewController(Config{
		GPUsPerNode:  8,
		Scale:        10_000,
		PollInterval: 500 * time.Millisecond,
		PollAttempts: 10,
		Clock:        clock,
	}, api, quoter, confirm, nil), clock
}

func limitIntent(priceCC int64) Intent {
	return Intent{
		Side:            marketplace.SideBuy,
		InstanceType:    "h100i",
		GPUs:            16,
		Start:           window.Now(),
		DurationSeconds: 3600,
		LimitPrice:      &priceCC,
		AutoConfirm:     true,
	}
}

func TestExplicitPriceSkipsQuoting(t *testing.T) {
	api := &fakeAPI{statuses: []marketplace.OrderStatus{marketplace.StatusOpen}}
	quoter := &fakeQuoter{}
	ctrl, _ := newTestController(api, quoter, nil)

	// $2.50/GPU/hr in centicents
	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)

	assert.Equal(t, 0, quoter.calls)
	assert.Equal(t, OutcomeOpen, outcome.Kind)

	req := api.createReq
	require.NotNil(t, req)

	// start re-resolved to the next whole minute, end pushed to the
	// next hour boundary
	assert.Equal(t, time.Date(2026, 3, 14, 10, 24, 0, 0, time.UTC), req.StartAt)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), req.EndAt)

	// 25_000cc × 2 nodes × 8 gpus × 1.6h, ceiling exact
	assert.Equal(t, int64(640_000), req.Price)
	assert.Equal(t, int64(2), req.Quantity)
}

func TestNoQuoteAndNoFallbackAborts(t *testing.T) {
	api := &fakeAPI{}
	quoter := &fakeQuoter{quote: nil}
	ctrl, _ := newTestController(api, quoter, nil)

	intent := limitIntent(0)
	intent.LimitPrice = nil

	_, err := ctrl.Run(context.Background(), intent)
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.Equal(t, 1, quoter.calls)
	assert.Equal(t, 0, api.createCalls, "must not submit a fabricated price")
}

func TestNoQuoteWithFloorSubmits(t *testing.T) {
	api := &fakeAPI{statuses: []marketplace.OrderStatus{marketplace.StatusOpen}}
	quoter := &fakeQuoter{quote: nil}
	ctrl, _ := newTestController(api, quoter, nil)

	floor := int64(10_000)
	intent := limitIntent(0)
	intent.LimitPrice = nil
	intent.NoQuoteFloor = &floor

	outcome, err := ctrl.Run(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpen, outcome.Kind)
	assert.Equal(t, 1, api.createCalls)
}

func TestQuotedRateFeedsSubmittedTotal(t *testing.T) {
	// market quote: 2 nodes from NOW for exactly one hour, total $40
	quoter := &fakeQuoter{quote: &marketplace.Quote{
		Side: marketplace.SideBuy, Price: 400_000, Quantity: 2,
		StartAt: "NOW",
		EndAt:   time.Date(2026, 3, 14, 11, 24, 0, 0, time.UTC),
	}}
	api := &fakeAPI{statuses: []marketplace.OrderStatus{marketplace.StatusFilled}}
	ctrl, _ := newTestController(api, quoter, nil)

	intent := limitIntent(0)
	intent.LimitPrice = nil

	outcome, err := ctrl.Run(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, outcome.Kind)
	assert.Equal(t, 1, quoter.calls)

	// quote rate is 400_000 / (2×8×1h) = 25_000cc per GPU-hour; the
	// submitted window is 1.6h after end-of-hour rounding
	require.NotNil(t, api.createReq)
	assert.Equal(t, int64(640_000), api.createReq.Price)
}

func TestInsufficientFundsIsRejectedWithoutPolling(t *testing.T) {
	api := &fakeAPI{createErr: &marketplace.APIError{
		Status: 400, Code: marketplace.CodeInsufficientBalance, Message: "balance too low",
	}}
	ctrl, _ := newTestController(api, &fakeQuoter{}, nil)

	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Kind)
	assert.Contains(t, outcome.Message, "insufficient funds")
	assert.Equal(t, 0, api.getCalls, "no poll after a rejection")
}

func TestUnrecognized400CarriesServerDetail(t *testing.T) {
	api := &fakeAPI{createErr: &marketplace.APIError{
		Status: 400, Code: "window_too_small", Message: "minimum reservation is one hour",
	}}
	ctrl, _ := newTestController(api, &fakeQuoter{}, nil)

	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Kind)
	assert.Contains(t, outcome.Message, "minimum reservation is one hour")
}

func TestSessionExpiryIsNotARejection(t *testing.T) {
	api := &fakeAPI{createErr: marketplace.ErrSessionExpired}
	ctrl, _ := newTestController(api, &fakeQuoter{}, nil)

	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSessionExpired, outcome.Kind)
}

func TestServerFaultIsErrorNotRejected(t *testing.T) {
	api := &fakeAPI{createErr: &marketplace.APIError{Status: 503, Message: "unavailable"}}
	ctrl, _ := newTestController(api, &fakeQuoter{}, nil)

	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, outcome.Kind)
	assert.Equal(t, 1, api.createCalls, "never auto-retried")
}

func TestPendingThenOpenTerminatesOpen(t *testing.T) {
	api := &fakeAPI{statuses: []marketplace.OrderStatus{
		marketplace.StatusPending, marketplace.StatusPending, marketplace.StatusOpen,
	}}
	ctrl, _ := newTestController(api, &fakeQuoter{}, nil)

	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpen, outcome.Kind, "open is not filled")
	assert.Equal(t, 3, api.getCalls)
}

func TestPollExhaustionIsAmbiguous(t *testing.T) {
	api := &fakeAPI{statuses: []marketplace.OrderStatus{marketplace.StatusPending}}
	ctrl, _ := newTestController(api, &fakeQuoter{}, nil)

	outcome, err := ctrl.Run(context.Background(), limitIntent(25_000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAmbiguous, outcome.Kind)
	assert.NotEqual(t, OutcomeOpen, outcome.Kind)
	assert.NotEqual(t, OutcomeError, outcome.Kind)
	assert.Contains(t, outcome.Message, "orders list")
	assert.Equal(t, 10, api.getCalls)
}

func TestDeclinedConfirmationMakesNoNetworkCalls(t *testing.T) {
	api := &fakeAPI{}
	quoter := &fakeQuoter{}
	decline := func(Summary) (bool, error) { return false, nil }
	ctrl, _ := newTestController(api, quoter, decline)

	intent := limitIntent(25_000)
	intent.AutoConfirm = false

	outcome, err := ctrl.Run(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome.Kind)
	assert.Equal(t, 0, api.createCalls)
	assert.Equal(t, 0, quoter.calls)
	assert.Equal(t, 0, api.getCalls)
}

func TestStartReResolvedAfterSlowConfirmation(t *testing.T) {
	api := &fakeAPI{statuses: []marketplace.OrderStatus{marketplace.StatusOpen}}
	var ctrl *Controller
	var clock *fakeClock

	// the user thinks for 40 minutes before saying yes
	slowYes := func(Summary) (bool, error) {
		clock.now = clock.now.Add(40 * time.Minute)
		return true, nil
	}
	ctrl, clock = newTestController(api, &fakeQuoter{}, slowYes)

	intent := limitIntent(25_000)
	intent.AutoConfirm = false

	_, err := ctrl.Run(context.Background(), intent)
	require.NoError(t, err)
	require.NotNil(t, api.createReq)

	// 10:23:42 + 40m = 11:03:42, so the submitted start is 11:04, not
	// the 10:24 that was current at confirmation time
	assert.Equal(t, time.Date(2026, 3, 14, 11, 4, 0, 0, time.UTC), api.createReq.StartAt)
}

func TestPastEndFailsBeforeQuoting(t *testing.T) {
	api := &fakeAPI{}
	quoter := &fakeQuoter{}
	ctrl, _ := newTestController(api, quoter, nil)

	// an end an hour in the past, with no limit price so the quoted path
	// would be taken if validation let it through
	past := testNow.Add(-time.Hour)
	intent := limitIntent(0)
	intent.LimitPrice = nil
	intent.DurationSeconds = 0
	intent.EndAt = &past

	_, err := ctrl.Run(context.Background(), intent)
	require.Error(t, err)
	assert.Equal(t, 0, quoter.calls, "an already-over window must not be quoted")
	assert.Equal(t, 0, api.createCalls)
}

func TestLocalValidationFailsBeforeAnyNetworkCall(t *testing.T) {
	api := &fakeAPI{}
	quoter := &fakeQuoter{}
	ctrl, _ := newTestController(api, quoter, nil)

	bad := []Intent{
		func() Intent { i := limitIntent(25_000); i.GPUs = 12; return i }(),  // not a node multiple
		func() Intent { i := limitIntent(25_000); i.GPUs = 0; return i }(),   // zero
		func() Intent { i := limitIntent(25_000); i.Side = "hold"; return i }(),
		func() Intent { i := limitIntent(0); return i }(),                    // non-positive price
		func() Intent { i := limitIntent(25_000); i.DurationSeconds = 0; return i }(),
		func() Intent { i := limitIntent(25_000); i.InstanceType = ""; return i }(),
	}
	for n, intent := range bad {
		_, err := ctrl.Run(context.Background(), intent)
		assert.Error(t, err, "case %d", n)
	}
	assert.Equal(t, 0, api.createCalls)
	assert.Equal(t, 0, quoter.calls)
}
