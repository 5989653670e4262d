package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok_test")
}

func TestCreateOrderSendsAuthAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotKey string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-Idempotency-Key")
		json.NewEncoder(w).Encode(Order{ID: "ord_1", Status: StatusPending})
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Side: SideBuy, InstanceType: "h100i", Quantity: 1,
		StartAt: time.Now(), EndAt: time.Now().Add(time.Hour), Price: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord_1", order.ID)
	assert.True(t, order.Status.Pending())
	assert.Equal(t, "Bearer tok_test", gotAuth)
	assert.NotEmpty(t, gotKey)
}

func TestCreateOrder400CarriesCode(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code": CodeInsufficientBalance, "message": "balance too low",
		})
	})

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, CodeInsufficientBalance, apiErr.Code)
	assert.Contains(t, apiErr.Message, "balance too low")
}

func TestAnyEndpoint401IsSessionExpired(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = client.GetOrder(context.Background(), "ord_x")
	assert.ErrorIs(t, err, ErrSessionExpired)

	err = client.CancelOrder(context.Background(), "ord_x")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestCancelOrderRequiresPendingObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"object": "pending"})
	})
	require.NoError(t, client.CancelOrder(context.Background(), "ord_1"))

	client = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// a 2xx that does not acknowledge the cancellation request
		json.NewEncoder(w).Encode(map[string]string{"object": "order"})
	})
	err := client.CancelOrder(context.Background(), "ord_1")
	assert.ErrorIs(t, err, ErrCancelNotAccepted)
}

func TestCancelOrderClassifies400Codes(t *testing.T) {
	respond := func(code string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"code": code, "message": code})
		}
	}

	err := newTestServer(t, respond(CodeOrderNotFound)).CancelOrder(context.Background(), "ord_1")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	err = newTestServer(t, respond(CodeAlreadyCancelled)).CancelOrder(context.Background(), "ord_1")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	// unknown code falls through as a plain API error
	err = newTestServer(t, respond("engine_busy")).CancelOrder(context.Background(), "ord_1")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "engine_busy", apiErr.Code)
}

func TestGetQuoteNullQuote(t *testing.T) {
	var gotQuery map[string]string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"quote": null}`))
	})

	quote, err := client.GetQuote(context.Background(), QuoteParams{
		Side: SideBuy, InstanceType: "h100i", Quantity: 2,
		MinDurationSeconds: 3240, MaxDurationSeconds: 7200,
	})
	require.NoError(t, err)
	assert.Nil(t, quote)
	assert.Equal(t, "buy", gotQuery["side"])
	assert.Equal(t, "2", gotQuery["quantity"])
	assert.Equal(t, "3240", gotQuery["min_duration"])
	assert.Equal(t, "7200", gotQuery["max_duration"])
	assert.Equal(t, "NOW", gotQuery["min_start_date"])
}

func TestListOrders(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []Order{
			{ID: "ord_1", Status: StatusOpen},
			{ID: "ord_2", Status: StatusFilled},
		}})
	})

	orders, err := client.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, StatusOpen, orders[0].Status)
}
