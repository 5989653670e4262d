package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sfcompute/sfc/internal/telemetry"
)

// CreateOrder submits a new order. The idempotency key guards against a
// duplicate submit if the request is retried at the transport layer.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	header := http.Header{}
	header.Set("X-Idempotency-Key", uuid.NewString())

	body, status, err := c.post(ctx, "/v0/orders", req, header)
	if err != nil {
		telemetry.Metrics.OrderErrors.Inc()
		return nil, err
	}
	if err := classify(status, body); err != nil {
		telemetry.Metrics.OrderErrors.Inc()
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	telemetry.Metrics.OrdersSent.Inc()
	telemetry.Infof("marketplace: order placed side=%s qty=%d price=%d -> %s",
		req.Side, req.Quantity, req.Price, order.ID)

	return &order, nil
}

// GetOrder reads a single order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	body, status, err := c.get(ctx, "/v0/orders/"+id)
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &order, nil
}

// ListOrders returns the account's orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	body, status, err := c.get(ctx, "/v0/orders")
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, err
	}

	var resp struct {
		Data []Order `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	return resp.Data, nil
}

// CancelOrder asks the marketplace to cancel an existing order. Success
// means the cancellation request was accepted (object == "pending"), not
// that the order is already cancelled — the engine may still be matching.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	body, status, err := c.delete(ctx, "/v0/orders/"+id)
	if err != nil {
		return err
	}
	if err := classify(status, body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			switch apiErr.Code {
			case CodeOrderNotFound:
				return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
			case CodeAlreadyCancelled:
				return fmt.Errorf("%w: %s", ErrAlreadyCancelled, id)
			}
		}
		return err
	}

	var resp struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unmarshal cancel response: %w", err)
	}
	if resp.Object != "pending" {
		return fmt.Errorf("%w: got object %q", ErrCancelNotAccepted, resp.Object)
	}

	telemetry.Infof("marketplace: cancellation accepted for %s", id)
	return nil
}
