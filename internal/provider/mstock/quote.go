package mstock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"

	"tradeassist/internal/provider"
)

// ltpKeys is the order in which price keys are consulted in an LTP object.
// The precedence is inherited and has not been verified against live traffic.
var ltpKeys = []string{"last_price", "ltp", "lastPrice"}

// envelope is the common response wrapper of the quote endpoints.
type envelope struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

// Quote fetches the last traded price.
func (c *Client) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	key := c.instrument(symbol)
	raw, err := c.quoteData(ctx, "ltp", key)
	if err != nil {
		return provider.Quote{}, err
	}
	price, err := parseLTP(raw)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("decoding ltp for %s: %w", key, err)
	}
	return provider.Quote{LastPrice: null.FloatFrom(price)}, nil
}

// OHLC fetches the current day's open/high/low/close.
func (c *Client) OHLC(ctx context.Context, symbol string) (provider.OHLC, error) {
	key := c.instrument(symbol)
	raw, err := c.quoteData(ctx, "ohlc", key)
	if err != nil {
		return provider.OHLC{}, err
	}

	var entry struct {
		OHLC map[string]any `json:"ohlc"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entry); err != nil {
		return provider.OHLC{}, fmt.Errorf("decoding ohlc for %s: %w", key, err)
	}
	if len(entry.OHLC) == 0 {
		return provider.OHLC{}, fmt.Errorf("ohlc for %s: %w", key, provider.ErrNoData)
	}

	var out provider.OHLC
	fields := []struct {
		name string
		dst  *null.Float
	}{
		{"open", &out.Open},
		{"high", &out.High},
		{"low", &out.Low},
		{"close", &out.Close},
	}
	for _, f := range fields {
		v, err := number(entry.OHLC[f.name])
		if err != nil {
			return provider.OHLC{}, fmt.Errorf("decoding ohlc %s for %s: %w", f.name, key, err)
		}
		*f.dst = v
	}
	return out, nil
}

// quoteData calls /instruments/quote/{kind}/ and returns the payload stored
// under the instrument key.
func (c *Client) quoteData(ctx context.Context, kind, key string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/instruments/quote/%s/?i=%s", c.baseURL, kind, url.QueryEscape(key))
	b, err := c.do(ctx, http.MethodGet, u, http.NoBody, c.quoteTimeout, "")
	if err != nil {
		return nil, fmt.Errorf("mstock %s %s: %w", kind, key, err)
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", kind, err)
	}
	if strings.EqualFold(env.Status, "error") {
		return nil, fmt.Errorf("mstock %s %s: provider error: %s", kind, key, env.Message)
	}
	raw, ok := env.Data[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("mstock %s %s: %w", kind, key, provider.ErrNoData)
	}
	return raw, nil
}

// parseLTP accepts either an object carrying one of ltpKeys or a bare
// number/numeric string.
func parseLTP(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch x := v.(type) {
	case map[string]any:
		for _, k := range ltpKeys {
			if !truthy(x[k]) {
				continue
			}
			p, err := number(x[k])
			if err != nil {
				return 0, fmt.Errorf("%s: %w", k, err)
			}
			return p.Float64, nil
		}
		return 0, fmt.Errorf("price field: %w", provider.ErrNoData)
	case json.Number, string:
		p, err := number(x)
		if err != nil {
			return 0, err
		}
		if !p.Valid {
			return 0, provider.ErrNoData
		}
		return p.Float64, nil
	default:
		return 0, fmt.Errorf("unexpected type: %T", v)
	}
}

// truthy treats null, zero, empty strings and booleans as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil, bool:
		return false
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case string:
		return strings.TrimSpace(x) != ""
	default:
		return true
	}
}

// number converts a decoded JSON value into a nullable float.
func number(v any) (null.Float, error) {
	switch x := v.(type) {
	case nil:
		return null.Float{}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return null.Float{}, err
		}
		return null.FloatFrom(f), nil
	case float64:
		return null.FloatFrom(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return null.Float{}, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return null.Float{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return null.Float{}, fmt.Errorf("non-finite number %q", s)
		}
		return null.FloatFrom(f), nil
	default:
		return null.Float{}, fmt.Errorf("unexpected type: %T", v)
	}
}
