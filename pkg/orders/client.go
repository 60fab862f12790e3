// Package orders provides the client for the upstream order API, which
// returns orders as free-form text strings.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-agent/internal/resilience"
)

// Client defines the order API operations.
type Client interface {
	// FetchOrders returns every raw order string the API exposes.
	FetchOrders(ctx context.Context) ([]string, error)
	// FetchOrder returns one raw order by ID, or "" (no error) when the
	// order does not exist.
	FetchOrder(ctx context.Context, orderID string) (string, error)
}

// Option configures the orders client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new order API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "http://localhost:5001",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ordersResponse struct {
	Status    string   `json:"status"`
	RawOrders []string `json:"raw_orders"`
}

type orderResponse struct {
	Status   string `json:"status"`
	RawOrder string `json:"raw_order"`
}

func (c *httpClient) FetchOrders(ctx context.Context) ([]string, error) {
	url := c.baseURL + "/api/orders"
	zap.L().Debug("orders: fetching", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "orders: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "orders: fetch orders")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.New(fmt.Sprintf("orders: fetch orders: HTTP %d", resp.StatusCode))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "orders: read body")
	}

	var parsed ordersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "orders: decode response")
	}

	zap.L().Info("orders: fetched", zap.Int("count", len(parsed.RawOrders)))
	return parsed.RawOrders, nil
}

func (c *httpClient) FetchOrder(ctx context.Context, orderID string) (string, error) {
	url := fmt.Sprintf("%s/api/order/%s", c.baseURL, orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "orders: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "orders: fetch order %s", orderID)
	}
	defer resp.Body.Close()

	// Not found is an answer, not an error.
	if resp.StatusCode == http.StatusNotFound {
		zap.L().Debug("orders: order not found", zap.String("order_id", orderID))
		return "", nil
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.New(fmt.Sprintf("orders: fetch order %s: HTTP %d", orderID, resp.StatusCode))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "orders: read body")
	}

	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "orders: decode response")
	}

	return parsed.RawOrder, nil
}
