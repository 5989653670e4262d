// Package orderfeed streams order status events over the marketplace
// websocket for `sfc orders watch`. When the socket is unavailable the
// caller falls back to plain polling.
package orderfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sfcompute/sfc/internal/events"
	"github.com/sfcompute/sfc/internal/telemetry"
)

// Client holds one websocket connection for one watch invocation.
//
// Gorilla/websocket supports one concurrent reader and one concurrent
// writer, so all writes are serialized through mu. There is no automatic
// reconnect: a dropped socket ends the watch and the command reports it.
type Client struct {
	url   string
	token string
	bus   *events.Bus

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]bool
}

func NewClient(wsURL, token string, bus *events.Bus) *Client {
	return &Client{
		url:   wsURL,
		token: token,
		bus:   bus,
		subs:  make(map[string]bool),
	}
}

// Connect dials the feed and starts the read loop. The loop exits when
// ctx is cancelled or the connection drops.
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial order feed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(ctx)
	return nil
}

// Subscribe registers interest in an order id on the live connection.
func (c *Client) Subscribe(orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[orderID] {
		return nil
	}
	c.subs[orderID] = true

	if c.conn == nil {
		return nil
	}
	return c.conn.WriteJSON(map[string]any{
		"action":    "subscribe",
		"order_ids": []string{orderID},
	})
}

type feedMessage struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// readLoop is the connection's single reader. It snapshots the conn once
// under the mutex and uses the local for its whole life, so a concurrent
// Close never leaves it reading through a nil field.
func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	defer c.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				telemetry.Warnf("order feed closed: %v", err)
			}
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			telemetry.Debugf("order feed: skipping malformed frame: %v", err)
			continue
		}
		if msg.OrderID == "" {
			continue
		}

		c.bus.Publish(events.New(events.EventOrderUpdate, events.OrderUpdate{
			OrderID: msg.OrderID,
			Status:  msg.Status,
		}))
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}
