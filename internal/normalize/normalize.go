// Package normalize maps provider-specific shapes into the canonical schema.
package normalize

import (
	"sort"
	"strings"

	"tradeassist/internal/indicator"
	"tradeassist/internal/provider"
)

const (
	FastEMASpan = 7
	SlowEMASpan = 21
)

// exchangeSuffixes are provider ticker suffixes that never belong to the
// canonical symbol.
var exchangeSuffixes = []string{".NS", ".BO"}

// Symbol returns the canonical form of a ticker: trimmed, upper-cased and
// without a provider exchange suffix.
func Symbol(s string) string {
	sym := strings.ToUpper(strings.TrimSpace(s))
	for _, suf := range exchangeSuffixes {
		if strings.HasSuffix(sym, suf) && len(sym) > len(suf) {
			return strings.TrimSuffix(sym, suf)
		}
	}
	return sym
}

// Series converts raw bars into the canonical series.
// Rules:
//   - bars without a close are dropped
//   - rows are ordered by time; for equal timestamps the later input wins
//   - a missing open/high/low takes the close, a missing volume is zero
//   - EMA7, EMA21 and VWAP are appended
func Series(bars []provider.Bar) provider.Series {
	latest := make(map[int64]int, len(bars))
	rows := make(provider.Series, 0, len(bars))
	for _, b := range bars {
		if !b.Close.Valid {
			continue
		}
		c := provider.Candle{
			Time:   b.Time,
			Open:   b.Open.ValueOrZero(),
			High:   b.High.ValueOrZero(),
			Low:    b.Low.ValueOrZero(),
			Close:  b.Close.Float64,
			Volume: b.Volume.ValueOrZero(),
		}
		if !b.Open.Valid {
			c.Open = c.Close
		}
		if !b.High.Valid {
			c.High = c.Close
		}
		if !b.Low.Valid {
			c.Low = c.Close
		}

		key := b.Time.UnixNano()
		if idx, ok := latest[key]; ok {
			rows[idx] = c
			continue
		}
		latest[key] = len(rows)
		rows = append(rows, c)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	WithIndicators(rows)
	return rows
}

// WithIndicators fills EMA7, EMA21 and VWAP in place.
func WithIndicators(s provider.Series) {
	closes := s.Closes()
	volumes := make([]float64, len(s))
	for i, c := range s {
		volumes[i] = c.Volume
	}
	fast := indicator.EMA(closes, FastEMASpan)
	slow := indicator.EMA(closes, SlowEMASpan)
	vwap := indicator.VWAP(closes, volumes)
	for i := range s {
		s[i].EMA7 = fast[i]
		s[i].EMA21 = slow[i]
		s[i].VWAP = vwap[i]
	}
}
