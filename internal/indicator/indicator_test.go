package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEMA_SeededWithFirstValue(t *testing.T) {
	t.Parallel()

	got := EMA([]float64{10, 20, 30}, 3)

	// alpha = 0.5
	require.InDelta(t, 10.0, got[0], 1e-9)
	require.InDelta(t, 15.0, got[1], 1e-9)
	require.InDelta(t, 22.5, got[2], 1e-9)
}

func TestEMA_Empty(t *testing.T) {
	t.Parallel()
	require.Empty(t, EMA(nil, 7))
}

func TestVWAP_NullUntilVolumeAppears(t *testing.T) {
	t.Parallel()

	got := VWAP([]float64{10, 11, 12, 13}, []float64{0, 0, 2, 2})

	require.False(t, got[0].Valid)
	require.False(t, got[1].Valid)
	require.True(t, got[2].Valid)
	require.InDelta(t, 12.0, got[2].Float64, 1e-9)
	require.InDelta(t, 12.5, got[3].Float64, 1e-9)
}

func TestEMACrossover_FlagsTransitionsOnly(t *testing.T) {
	t.Parallel()

	fast := []float64{1, 2, 3, 3, 1}
	slow := []float64{2, 2, 2, 2, 2}

	got := EMACrossover(fast, slow)

	require.Len(t, got, 5)
	require.False(t, got[0].Buy || got[0].Sell)
	require.False(t, got[1].Buy) // equal is not above
	require.True(t, got[2].Buy)
	require.False(t, got[3].Buy)
	require.True(t, got[4].Sell)
}

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	t.Parallel()

	tr := TrueRange([]float64{10, 12}, []float64{8, 11}, []float64{9, 11.5})

	require.InDelta(t, 2.0, tr[0], 1e-9)
	require.InDelta(t, 3.0, tr[1], 1e-9) // high - previous close
}

func TestATR_SeedAndSmoothing(t *testing.T) {
	t.Parallel()

	high := []float64{11, 11, 11, 11}
	low := []float64{9, 9, 9, 7}
	closes := []float64{10, 10, 10, 10}

	got := ATR(high, low, closes, 2)

	require.False(t, got[0].Valid)
	require.InDelta(t, 2.0, got[1].Float64, 1e-9)
	require.InDelta(t, 2.0, got[2].Float64, 1e-9)
	require.InDelta(t, 3.0, got[3].Float64, 1e-9)
}

func TestATRTrailingStop_RejectsBadParams(t *testing.T) {
	t.Parallel()

	_, err := ATRTrailingStop(nil, nil, nil, 0, 1)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = ATRTrailingStop(nil, nil, nil, 10, 0)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestATRTrailingStop_FlipsOnReversal(t *testing.T) {
	t.Parallel()

	// Arrange: a steady rise followed by a sharp drop and recovery.
	closes := []float64{100, 101, 102, 103, 104, 105, 95, 94, 110}
	high := make([]float64, len(closes))
	low := make([]float64, len(closes))
	for i, c := range closes {
		high[i] = c + 0.5
		low[i] = c - 0.5
	}

	// Act
	got, err := ATRTrailingStop(high, low, closes, 2, 1.0)
	require.NoError(t, err)
	require.Len(t, got, len(closes))

	// Assert: the stop starts once ATR is defined.
	require.False(t, got[0].Stop.Valid)
	require.True(t, got[1].Stop.Valid)

	// Assert: the stop trails below price during the rise.
	for i := 2; i <= 5; i++ {
		require.Less(t, got[i].Stop.Float64, closes[i])
		require.GreaterOrEqual(t, got[i].Stop.Float64, got[i-1].Stop.Float64)
	}

	// Assert: the drop below the stop is a SELL and flips short.
	require.Equal(t, ActionSell, got[6].Action)
	require.Equal(t, -1, got[6].Position)
	require.Greater(t, got[6].Stop.Float64, closes[6])

	// Assert: the recovery above the stop is a BUY and flips long.
	require.Equal(t, ActionBuy, got[8].Action)
	require.Equal(t, 1, got[8].Position)
}
