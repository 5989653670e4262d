package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
)

type BalanceResponse struct {
	Available int64 `json:"available"` // minor units
	Reserved  int64 `json:"reserved"`
}

func (c *Client) GetBalance(ctx context.Context) (*BalanceResponse, error) {
	body, status, err := c.get(ctx, "/v0/balance")
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, err
	}

	var resp BalanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal balance: %w", err)
	}
	return &resp, nil
}
