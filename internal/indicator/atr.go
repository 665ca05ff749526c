package indicator

import (
	"errors"
	"math"

	"github.com/guregu/null/v6"
)

const (
	DefaultATRPeriod   = 10
	DefaultSensitivity = 1.0
)

var ErrInvalidParams = errors.New("atr period and sensitivity must be positive")

// Actions emitted on the bar where the close crosses the trailing stop.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Signal is the per-row output of the ATR trailing stop.
type Signal struct {
	ATR      null.Float `json:"atr"`
	Stop     null.Float `json:"stop"`
	Position int        `json:"position"`
	Action   string     `json:"action"`
}

// TrueRange uses the previous close; the first row is high-low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR is the Wilder-smoothed average true range, seeded with the simple mean
// of the first period true ranges. Rows before that are null.
func ATR(high, low, close []float64, period int) []null.Float {
	out := make([]null.Float, len(close))
	if period <= 0 || len(close) < period {
		return out
	}
	tr := TrueRange(high, low, close)
	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period-1] = null.FloatFrom(atr)
	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = null.FloatFrom(atr)
	}
	return out
}

// ATRTrailingStop ratchets a stop at close ± sensitivity*ATR and reports the
// position and crossing actions for each row.
func ATRTrailingStop(high, low, close []float64, period int, sensitivity float64) ([]Signal, error) {
	if period <= 0 || sensitivity <= 0 {
		return nil, ErrInvalidParams
	}
	atr := ATR(high, low, close, period)
	out := make([]Signal, len(close))

	var (
		stop     float64
		hasStop  bool
		position int
	)
	for i, src := range close {
		out[i].ATR = atr[i]
		if !atr[i].Valid {
			continue
		}
		loss := sensitivity * atr[i].Float64
		if !hasStop {
			stop = src - loss
			hasStop = true
			out[i].Stop = null.FloatFrom(stop)
			continue
		}

		prev, prevSrc := stop, close[i-1]
		switch {
		case src > prev && prevSrc > prev:
			stop = math.Max(prev, src-loss)
		case src < prev && prevSrc < prev:
			stop = math.Min(prev, src+loss)
		case src > prev:
			stop = src - loss
		default:
			stop = src + loss
		}

		switch {
		case prevSrc < prev && src > prev:
			position = 1
		case prevSrc > prev && src < prev:
			position = -1
		}

		out[i].Stop = null.FloatFrom(stop)
		out[i].Position = position
		if src > stop && prevSrc <= prev {
			out[i].Action = ActionBuy
		} else if src < stop && prevSrc >= prev {
			out[i].Action = ActionSell
		}
	}
	return out, nil
}
