// Package indicator holds the technical indicators computed on canonical
// candle series. All functions are pure and length-preserving.
package indicator

import (
	"math"

	"github.com/guregu/null/v6"
)

// EMA returns the exponential moving average of values over span periods,
// using alpha = 2/(span+1) and seeding with the first value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// VWAP returns the cumulative volume-weighted average price. Rows where the
// cumulative volume is still zero are null.
func VWAP(closes, volumes []float64) []null.Float {
	out := make([]null.Float, len(closes))
	var pv, vol float64
	for i := range closes {
		v := 0.0
		if i < len(volumes) && !math.IsNaN(volumes[i]) {
			v = volumes[i]
		}
		pv += closes[i] * v
		vol += v
		if vol == 0 {
			continue
		}
		out[i] = null.FloatFrom(pv / vol)
	}
	return out
}

// Cross marks an EMA crossover on a single row.
type Cross struct {
	Buy  bool `json:"buy"`
	Sell bool `json:"sell"`
}

// EMACrossover flags rows where fast crosses above (Buy) or below (Sell) slow.
// The first row never carries a signal.
func EMACrossover(fast, slow []float64) []Cross {
	n := min(len(fast), len(slow))
	out := make([]Cross, n)
	for i := 1; i < n; i++ {
		out[i].Buy = fast[i] > slow[i] && fast[i-1] <= slow[i-1]
		out[i].Sell = fast[i] < slow[i] && fast[i-1] >= slow[i-1]
	}
	return out
}
