package mstock

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"tradeassist/internal/provider"
)

// ErrTokenNotFound is returned when the scriptmaster has no matching row.
var ErrTokenNotFound = errors.New("instrument token not found")

// rangeLayout is how from/to are written in the historical query string.
// The '+' is literal; the API reads it as the date/time separator.
const rangeLayout = "2006-01-02+15:04:05"

var resolutions = map[provider.Timeframe]string{
	provider.Timeframe1m:  "1minute",
	provider.Timeframe3m:  "3minute",
	provider.Timeframe5m:  "5minute",
	provider.Timeframe10m: "10minute",
	provider.Timeframe15m: "15minute",
	provider.Timeframe30m: "30minute",
	provider.Timeframe1h:  "60minute",
	provider.Timeframe1d:  "1day",
}

// Resolution maps a timeframe token to the API's resolution vocabulary.
func Resolution(tf provider.Timeframe) (string, error) {
	r, ok := resolutions[tf]
	if !ok {
		return "", fmt.Errorf("%w: %q", provider.ErrUnsupportedTimeframe, tf)
	}
	return r, nil
}

// InstrumentToken downloads the scriptmaster CSV and returns the token of the
// row whose tradingsymbol and exchange match, case-insensitively.
func (c *Client) InstrumentToken(ctx context.Context, symbol string) (int64, error) {
	b, err := c.do(ctx, http.MethodGet, c.baseURL+"/instruments/scriptmaster", http.NoBody, c.historyTimeout, "")
	if err != nil {
		return 0, fmt.Errorf("mstock scriptmaster: %w", err)
	}
	return findToken(bytes.NewReader(b), symbol, c.exchange)
}

func findToken(r io.Reader, symbol, exchange string) (int64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading scriptmaster header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	symCol, ok1 := col["tradingsymbol"]
	exCol, ok2 := col["exchange"]
	tokCol, ok3 := col["instrument_token"]
	if !ok1 || !ok2 || !ok3 {
		return 0, fmt.Errorf("scriptmaster: missing columns in header %v", header)
	}
	need := max(symCol, exCol, tokCol)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading scriptmaster: %w", err)
		}
		if len(rec) <= need {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(rec[symCol]), symbol) ||
			!strings.EqualFold(strings.TrimSpace(rec[exCol]), exchange) {
			continue
		}
		return parseToken(rec[tokCol])
	}
	return 0, fmt.Errorf("%w: %s", ErrTokenNotFound, symbol)
}

// parseToken accepts "12345" as well as float-formatted "12345.0".
func parseToken(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("decoding instrument token %q: %w", s, err)
	}
	return int64(f), nil
}

type historyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Candles [][]any `json:"candles"`
	} `json:"data"`
}

// Bars fetches historical candles for the lookback window ending now.
func (c *Client) Bars(ctx context.Context, symbol string, tf provider.Timeframe) ([]provider.Bar, error) {
	res, err := Resolution(tf)
	if err != nil {
		return nil, err
	}
	token, err := c.InstrumentToken(ctx, symbol)
	if err != nil {
		return nil, err
	}

	to := c.now()
	from := to.Add(-c.lookback)
	u := fmt.Sprintf("%s/instruments/historical/%d/%s?from=%s&to=%s",
		c.baseURL, token, res, from.Format(rangeLayout), to.Format(rangeLayout))

	b, err := c.do(ctx, http.MethodGet, u, http.NoBody, c.historyTimeout, "")
	if err != nil {
		return nil, fmt.Errorf("mstock historical %s: %w", symbol, err)
	}

	var body historyResponse
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding historical response: %w", err)
	}
	if len(body.Data.Candles) == 0 {
		return nil, fmt.Errorf("mstock historical %s: %w", symbol, provider.ErrNoData)
	}

	bars := make([]provider.Bar, 0, len(body.Data.Candles))
	for i, row := range body.Data.Candles {
		bar, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("decoding candle %d: %w", i, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseCandle reads a [time, open, high, low, close, volume] row.
func parseCandle(row []any) (provider.Bar, error) {
	if len(row) < 6 {
		return provider.Bar{}, fmt.Errorf("expected 6 columns, got %d", len(row))
	}
	ts, err := parseTime(row[0])
	if err != nil {
		return provider.Bar{}, err
	}
	bar := provider.Bar{Time: ts}
	for i, dst := range []*null.Float{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
		v, err := number(row[i+1])
		if err != nil {
			return provider.Bar{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		*dst = v
	}
	return bar, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("decoding epoch %q: %w", x, err)
		}
		if n > 1_000_000_000_000 { // ms
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected time type: %T", v)
	}
}
