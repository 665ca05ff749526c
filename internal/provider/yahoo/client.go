// Package yahoo is a minimal client for the public Yahoo Finance v8 chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"tradeassist/internal/normalize"
	"tradeassist/internal/provider"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultSuffix  = ".NS"

	defaultQuoteTimeout   = 5 * time.Second
	defaultHistoryTimeout = 10 * time.Second
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches chart data for exchange-suffixed tickers.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// suffix is appended to every symbol, e.g. ".NS".
	suffix string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header is sent with each request.
	header http.Header

	quoteTimeout   time.Duration
	historyTimeout time.Duration
}

// ClientOption is a configuration option for the Yahoo client.
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

// WithSuffix sets the exchange suffix used to build tickers.
func WithSuffix(suffix string) ClientOption {
	return func(c *Client) {
		c.suffix = suffix
	}
}

// WithTimeouts sets the per-call deadlines for the daily snapshot calls and
// for chart/history calls.
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

// NewClient creates a new Yahoo chart client.
func NewClient(options ...ClientOption) *Client {
	var client = &Client{
		baseURL:    defaultBaseURL,
		suffix:     defaultSuffix,
		httpClient: http.DefaultClient,
		header:     http.Header{},

		quoteTimeout:   defaultQuoteTimeout,
		historyTimeout: defaultHistoryTimeout,
	}
	client.header.Set("User-Agent", "Mozilla/5.0")
	client.header.Set("Accept", "application/json")
	for _, option := range options {
		option(client)
	}
	return client
}

// Name identifies the provider in logs and results.
func (c *Client) Name() string { return "Yahoo" }

// Ticker derives the Yahoo ticker for a canonical symbol.
func (c *Client) Ticker(symbol string) string {
	return normalize.Symbol(symbol) + c.suffix
}

// Quote returns the close of the latest daily bar.
func (c *Client) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	bar, err := c.lastDaily(ctx, symbol)
	if err != nil {
		return provider.Quote{}, err
	}
	return provider.Quote{LastPrice: bar.Close}, nil
}

// OHLC returns the latest daily bar.
func (c *Client) OHLC(ctx context.Context, symbol string) (provider.OHLC, error) {
	bar, err := c.lastDaily(ctx, symbol)
	if err != nil {
		return provider.OHLC{}, err
	}
	return dailyOHLC(bar), nil
}

// Snapshot returns the quote and the daily bar from one chart call.
func (c *Client) Snapshot(ctx context.Context, symbol string) (provider.Quote, provider.OHLC, error) {
	bar, err := c.lastDaily(ctx, symbol)
	if err != nil {
		return provider.Quote{}, provider.OHLC{}, err
	}
	return provider.Quote{LastPrice: bar.Close}, dailyOHLC(bar), nil
}

func dailyOHLC(bar provider.Bar) provider.OHLC {
	return provider.OHLC{Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close}
}

func (c *Client) lastDaily(ctx context.Context, symbol string) (provider.Bar, error) {
	bars, err := c.chart(ctx, symbol, "1d", "1d", c.quoteTimeout)
	if err != nil {
		return provider.Bar{}, err
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close.Valid {
			return bars[i], nil
		}
	}
	return provider.Bar{}, fmt.Errorf("yahoo %s: no close: %w", c.Ticker(symbol), provider.ErrNoData)
}

// Bars fetches bars for a canonical timeframe using the mapped interval and
// range.
func (c *Client) Bars(ctx context.Context, symbol string, tf provider.Timeframe) ([]provider.Bar, error) {
	interval, err := Interval(tf)
	if err != nil {
		return nil, err
	}
	return c.Chart(ctx, symbol, interval, Range(tf))
}

// Chart calls /v8/finance/chart/{ticker} with a raw Yahoo interval and range.
func (c *Client) Chart(ctx context.Context, symbol, interval, rng string) ([]provider.Bar, error) {
	return c.chart(ctx, symbol, interval, rng, c.historyTimeout)
}

func (c *Client) chart(ctx context.Context, symbol, interval, rng string, timeout time.Duration) ([]provider.Bar, error) {
	ticker := c.Ticker(symbol)

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", rng)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("yahoo %s: unknown ticker: %w", ticker, provider.ErrNoData)
	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return nil, fmt.Errorf("unexpected status code: %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	var body chartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding chart response: %w", err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s: %s: %s", ticker, body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, provider.ErrNoData)
	}
	bars := body.Chart.Result[0].bars()
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, provider.ErrNoData)
	}
	return bars, nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []null.Float `json:"open"`
			High   []null.Float `json:"high"`
			Low    []null.Float `json:"low"`
			Close  []null.Float `json:"close"`
			Volume []null.Float `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// bars zips the parallel arrays. Short arrays leave the missing fields null.
func (r chartResult) bars() []provider.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	at := func(xs []null.Float, i int) null.Float {
		if i < len(xs) {
			return xs[i]
		}
		return null.Float{}
	}
	out := make([]provider.Bar, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		out[i] = provider.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
		}
	}
	return out
}
