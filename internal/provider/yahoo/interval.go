package yahoo

import (
	"fmt"
	"strings"

	"tradeassist/internal/provider"
)

// Yahoo has no 3m or 10m bars; those map down to the next finer interval.
var intervals = map[provider.Timeframe]string{
	provider.Timeframe1m:  "1m",
	provider.Timeframe3m:  "1m",
	provider.Timeframe5m:  "5m",
	provider.Timeframe10m: "5m",
	provider.Timeframe15m: "15m",
	provider.Timeframe30m: "30m",
	provider.Timeframe1h:  "60m",
	provider.Timeframe1d:  "1d",
}

// native are the intervals the chart endpoint accepts as-is.
var native = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true,
	"90m": true, "1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

var intraday = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true, "1h": true,
}

// Interval maps a canonical timeframe to a Yahoo interval.
func Interval(tf provider.Timeframe) (string, error) {
	i, ok := intervals[tf]
	if !ok {
		return "", fmt.Errorf("%w: %q", provider.ErrUnsupportedTimeframe, tf)
	}
	return i, nil
}

// Range is the lookback requested for a timeframe: a week of intraday bars
// or a month of daily ones.
func Range(tf provider.Timeframe) string {
	if tf.Intraday() {
		return "7d"
	}
	return "1mo"
}

// ParseInterval accepts either a canonical timeframe token or a native Yahoo
// interval and returns the Yahoo interval.
func ParseInterval(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if tf, err := provider.ParseTimeframe(s); err == nil {
		return Interval(tf)
	}
	if native[s] {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", provider.ErrUnsupportedTimeframe, s)
}

// DefaultPeriod is the chart range used when the caller gives none.
func DefaultPeriod(interval string) string {
	if intraday[interval] {
		return "7d"
	}
	return "1y"
}
