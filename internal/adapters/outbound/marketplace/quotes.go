package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sfcompute/sfc/internal/telemetry"
)

// GetQuote asks the marketplace for a representative price. A nil quote
// with a nil error is a valid outcome: the market has no data for the
// requested window. No fallback price is invented here.
func (c *Client) GetQuote(ctx context.Context, p QuoteParams) (*Quote, error) {
	q := url.Values{}
	q.Set("side", p.Side)
	if p.InstanceType != "" {
		q.Set("instance_type", p.InstanceType)
	}
	if p.Zone != "" {
		q.Set("zone", p.Zone)
	}
	if p.ColocateWith != "" {
		q.Set("colocate_with", p.ColocateWith)
	}
	q.Set("quantity", strconv.FormatInt(p.Quantity, 10))
	q.Set("min_start_date", p.MinStartAt.String())
	q.Set("max_start_date", p.MaxStartAt.String())
	q.Set("min_duration", strconv.FormatInt(p.MinDurationSeconds, 10))
	q.Set("max_duration", strconv.FormatInt(p.MaxDurationSeconds, 10))

	body, status, err := c.do(ctx, c.quoteClient, http.MethodGet, "/v0/quote?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, err
	}

	var resp struct {
		Quote *Quote `json:"quote"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}

	telemetry.Metrics.QuotesFetched.Inc()
	if resp.Quote == nil {
		telemetry.Debugf("marketplace: no quote for %s %s x%d", p.Side, p.InstanceType, p.Quantity)
	}
	return resp.Quote, nil
}
