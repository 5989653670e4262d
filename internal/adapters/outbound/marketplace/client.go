package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sfcompute/sfc/internal/telemetry"
	"golang.org/x/time/rate"
)

const (
	// Order create/cancel use a short timeout: a timeout is surfaced as
	// an error, never silently retried with a new price.
	apiTimeout = 15 * time.Second

	// Price discovery can take minutes when exact-duration supply is
	// thin, so quote reads get their own generous budget.
	quoteTimeout = 10 * time.Minute
)

type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	quoteClient  *http.Client
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: apiTimeout},
		quoteClient:  &http.Client{Timeout: quoteTimeout},
		readLimiter:  rate.NewLimiter(rate.Limit(20), 20),
		writeLimiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body any, header http.Header) ([]byte, int, error) {
	lim := c.readLimiter
	if method != http.MethodGet {
		lim = c.writeLimiter
	}
	if err := lim.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Metrics.APILatency.Record(time.Since(start))
	telemetry.Debugf("marketplace: %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	return respBody, resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	return c.do(ctx, c.httpClient, http.MethodGet, path, nil, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, header http.Header) ([]byte, int, error) {
	return c.do(ctx, c.httpClient, http.MethodPost, path, body, header)
}

func (c *Client) delete(ctx context.Context, path string) ([]byte, int, error) {
	return c.do(ctx, c.httpClient, http.MethodDelete, path, nil, nil)
}

// classify turns a non-2xx status into a typed error. 401 is special:
// it means re-authenticate, not retry, everywhere in the flow.
func classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusUnauthorized {
		return ErrSessionExpired
	}

	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &detail)
	if detail.Message == "" {
		detail.Message = string(body)
	}
	return &APIError{Status: status, Code: detail.Code, Message: detail.Message}
}
