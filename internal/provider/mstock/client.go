package mstock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.mstock.trade/openapi/typea"
	defaultExchange = "NSE"

	defaultQuoteTimeout   = 5 * time.Second
	defaultHistoryTimeout = 10 * time.Second
	defaultLookback       = 7 * 24 * time.Hour
)

// ErrMissingCredentials is returned by NewClient without an API key or token.
var ErrMissingCredentials = errors.New("mstock: api key and access token are required")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=mstock_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the MStock "type A" REST API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// exchange qualifies every instrument, e.g. NSE.
	exchange string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header is sent with each request, including the auth header.
	header http.Header

	quoteTimeout   time.Duration
	historyTimeout time.Duration
	lookback       time.Duration
	now            func() time.Time
}

// ClientOption is a configuration option for the MStock client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithExchange sets the exchange segment used for quotes and token lookup.
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		if exchange != "" {
			c.exchange = strings.ToUpper(exchange)
		}
	}
}

// WithTimeouts sets the per-call deadlines for quote calls and for the
// scriptmaster/historical calls.
func WithTimeouts(quote, history time.Duration) ClientOption {
	return func(c *Client) {
		if quote > 0 {
			c.quoteTimeout = quote
		}
		if history > 0 {
			c.historyTimeout = history
		}
	}
}

// WithLookback sets how far back historical candles are requested.
func WithLookback(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.lookback = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new MStock client for the given credentials.
func NewClient(apiKey, accessToken string, options ...ClientOption) (*Client, error) {
	if apiKey == "" || accessToken == "" {
		return nil, ErrMissingCredentials
	}
	var client = &Client{
		baseURL:        defaultBaseURL,
		exchange:       defaultExchange,
		httpClient:     http.DefaultClient,
		header:         http.Header{},
		quoteTimeout:   defaultQuoteTimeout,
		historyTimeout: defaultHistoryTimeout,
		lookback:       defaultLookback,
		now:            time.Now,
	}
	client.header.Set("User-Agent", "Mozilla/5.0")
	client.header.Set("Accept", "*/*")
	client.header.Set("Cache-Control", "no-cache")
	client.header.Set("X-Mirae-Version", "1")
	client.header.Set("Authorization", fmt.Sprintf("token %s:%s", apiKey, accessToken))
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Name identifies the provider in logs and results.
func (c *Client) Name() string { return "MStock" }

// instrument is the exchange-qualified key used by the quote endpoints.
func (c *Client) instrument(symbol string) string {
	return c.exchange + ":" + strings.ToUpper(symbol)
}

// do performs a request under its own deadline and returns the body. Non-2xx
// answers come back as a *StatusError alongside the body.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader, timeout time.Duration, contentType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return b, nil
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return b, &StatusError{Code: res.StatusCode, Body: snippet(b), auth: true}
	default:
		return b, &StatusError{Code: res.StatusCode, Body: snippet(b)}
	}
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code int
	Body string
	auth bool
}

func (e *StatusError) Error() string {
	if e.auth {
		return fmt.Sprintf("unauthorized: http %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
