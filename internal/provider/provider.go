package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

// ErrNoData is returned when a provider answered but had nothing usable.
var ErrNoData = errors.New("no data")

// ErrUnsupportedTimeframe is returned for timeframe tokens outside the fixed set.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// Quote is the normalized last-traded-price shape returned by all providers.
// A null LastPrice means no provider could produce a price.
type Quote struct {
	LastPrice null.Float `json:"last_price"`
}

// OHLC is the most recent daily bar. Fields are nulled individually.
type OHLC struct {
	Open  null.Float `json:"open"`
	High  null.Float `json:"high"`
	Low   null.Float `json:"low"`
	Close null.Float `json:"close"`
}

// Empty reports whether no field is set.
func (o OHLC) Empty() bool {
	return !o.Open.Valid && !o.High.Valid && !o.Low.Valid && !o.Close.Valid
}

// Bar is a raw provider bar before normalization; any price may be missing.
type Bar struct {
	Time   time.Time  `json:"time"`
	Open   null.Float `json:"open"`
	High   null.Float `json:"high"`
	Low    null.Float `json:"low"`
	Close  null.Float `json:"close"`
	Volume null.Float `json:"volume"`
}

// Candle is one row of the canonical series.
type Candle struct {
	Time   time.Time  `json:"time"`
	Open   float64    `json:"open"`
	High   float64    `json:"high"`
	Low    float64    `json:"low"`
	Close  float64    `json:"close"`
	Volume float64    `json:"volume"`
	EMA7   float64    `json:"EMA7"`
	EMA21  float64    `json:"EMA21"`
	VWAP   null.Float `json:"VWAP"`
}

// Series is strictly increasing by Time.
type Series []Candle

// Closes returns the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Tail returns the last n rows (or all of them when shorter).
func (s Series) Tail(n int) Series {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Timeframe is a coarse bar granularity token understood by every provider.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe10m Timeframe = "10m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

var timeframes = map[Timeframe]struct{}{
	Timeframe1m: {}, Timeframe3m: {}, Timeframe5m: {}, Timeframe10m: {},
	Timeframe15m: {}, Timeframe30m: {}, Timeframe1h: {}, Timeframe1d: {},
}

// ParseTimeframe validates a timeframe token.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframes[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, s)
	}
	return tf, nil
}

// Intraday reports whether the timeframe is below one day.
func (t Timeframe) Intraday() bool { return t != Timeframe1d }

// Provider is the capability set shared by the primary and fallback sources.
// Implementations return an error for any transport, auth or shape problem;
// degrading to null results is the caller's job.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
	OHLC(ctx context.Context, symbol string) (OHLC, error)
	Bars(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error)
}
