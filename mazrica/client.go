package mazrica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the public Senses open API endpoint.
	DefaultBaseURL = "https://senses-open-api.mazrica.com/v1"

	// DefaultRateInterval keeps the client under the documented ceiling of
	// 3 requests per second.
	DefaultRateInterval = 334 * time.Millisecond

	// DefaultPageSize is the records-per-page used when paginating deals.
	DefaultPageSize = 100
)

// APIError is a non-2xx response from the Mazrica API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mazrica api error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the Mazrica open API. All requests are serialized through
// a fixed-interval rate limiter; HTTP 429 responses are retried after a
// short pause.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pageSize   int
	maxRetries int

	mu           sync.Mutex
	rateInterval time.Duration
	lastRequest  time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateInterval sets the minimum delay between consecutive requests.
// Zero disables rate limiting.
func WithRateInterval(d time.Duration) Option {
	return func(c *Client) { c.rateInterval = d }
}

// WithPageSize sets the page size used by FetchDealsWithProducts.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a client. The API key is required.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mazrica api key is required")
	}

	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   http.DefaultClient,
		pageSize:     DefaultPageSize,
		maxRetries:   3,
		rateInterval: DefaultRateInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// waitForRateLimit blocks until the fixed interval since the previous
// request has elapsed, or the context is cancelled.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	var wait time.Duration
	if c.rateInterval > 0 && !c.lastRequest.IsZero() {
		if elapsed := time.Since(c.lastRequest); elapsed < c.rateInterval {
			wait = c.rateInterval - elapsed
		}
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	for attempt := 0; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}

		u := c.baseURL + endpoint
		if len(params) > 0 {
			u += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("mazrica request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= c.maxRetries {
				return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
			}
			// Back off and retry; the limiter alone is not enough when other
			// consumers share the same key.
			backoff := time.Second << attempt
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// DealsPage is one page of the deal listing endpoint.
type DealsPage struct {
	Deals      []*Deal `json:"deals"`
	TotalCount int     `json:"totalCount"`
	Page       int     `json:"page"`
}

// GetDealTypes lists the deal types visible to the API key.
func (c *Client) GetDealTypes(ctx context.Context) ([]DealType, error) {
	var out struct {
		DealTypes []DealType `json:"dealTypes"`
	}
	if err := c.get(ctx, "/deal_types", nil, &out); err != nil {
		return nil, err
	}
	return out.DealTypes, nil
}

// GetDeals fetches one page of deals sorted by update time, newest first.
// A dealTypeID of 0 means no type filter.
func (c *Client) GetDeals(ctx context.Context, dealTypeID int64, page, limit int) (*DealsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "-updatedAt")
	if dealTypeID > 0 {
		params.Set("dealTypeId", strconv.FormatInt(dealTypeID, 10))
	}

	var out DealsPage
	if err := c.get(ctx, "/deals", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchDealsWithProducts retrieves every deal (line items included),
// following pagination until totalCount is exhausted.
func (c *Client) FetchDealsWithProducts(ctx context.Context, dealTypeID int64) ([]*Deal, error) {
	var deals []*Deal

	for page := 1; ; page++ {
		result, err := c.GetDeals(ctx, dealTypeID, page, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch deals page %d: %w", page, err)
		}
		if len(result.Deals) == 0 {
			break
		}

		deals = append(deals, result.Deals...)

		if page*c.pageSize >= result.TotalCount {
			break
		}
	}

	return deals, nil
}
