package ranked_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tradeassist/internal/provider"
	"tradeassist/internal/provider/mstock"
	"tradeassist/internal/provider/ranked"
	"tradeassist/internal/provider/ratelimit"
	"tradeassist/internal/provider/yahoo"
)

type fakeProvider struct {
	name  string
	quote provider.Quote
	ohlc  provider.OHLC
	bars  []provider.Bar
	err   error
	qErr  error
	oErr  error
	calls int

	// ctxErr records the context state seen by the last Quote call.
	ctxErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Quote(ctx context.Context, _ string) (provider.Quote, error) {
	f.calls++
	f.ctxErr = ctx.Err()
	if f.qErr != nil {
		return provider.Quote{}, f.qErr
	}
	return f.quote, f.err
}

func (f *fakeProvider) OHLC(context.Context, string) (provider.OHLC, error) {
	f.calls++
	if f.oErr != nil {
		return provider.OHLC{}, f.oErr
	}
	return f.ohlc, f.err
}

func (f *fakeProvider) Bars(context.Context, string, provider.Timeframe) ([]provider.Bar, error) {
	f.calls++
	return f.bars, f.err
}

// stalledProvider answers only when its context ends.
type stalledProvider struct{ fakeProvider }

func (s *stalledProvider) Quote(ctx context.Context, _ string) (provider.Quote, error) {
	s.calls++
	<-ctx.Done()
	return provider.Quote{}, ctx.Err()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestQuote_PrimaryWins(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "MStock", quote: provider.Quote{LastPrice: null.FloatFrom(10)}}
	fallback := &fakeProvider{name: "Yahoo"}

	res := ranked.New(quietLogger(), primary, fallback).Quote(t.Context(), "TCS")

	require.True(t, res.OK())
	require.Equal(t, "MStock", res.Source)
	require.InDelta(t, 10.0, res.Value.LastPrice.Float64, 1e-9)
	require.Zero(t, fallback.calls)
}

func TestQuote_NullPriceFallsThrough(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "MStock"}
	fallback := &fakeProvider{name: "Yahoo", quote: provider.Quote{LastPrice: null.FloatFrom(11)}}

	res := ranked.New(quietLogger(), primary, fallback).Quote(t.Context(), "TCS")

	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.Equal(t, 1, fallback.calls)
}

func TestQuote_AllFail(t *testing.T) {
	t.Parallel()

	errA := errors.New("auth failed")
	primary := &fakeProvider{name: "MStock", err: errA}
	fallback := &fakeProvider{name: "Yahoo", err: provider.ErrNoData}

	res := ranked.New(quietLogger(), primary, fallback).Quote(t.Context(), "TCS")

	require.False(t, res.OK())
	require.False(t, res.Value.LastPrice.Valid)
	require.Empty(t, res.Source)
	require.ErrorIs(t, res.Err, errA)
	require.ErrorIs(t, res.Err, provider.ErrNoData)
}

func TestOHLC_EmptyBarFallsThrough(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "MStock"}
	fallback := &fakeProvider{name: "Yahoo", ohlc: provider.OHLC{Close: null.FloatFrom(5)}}

	res := ranked.New(quietLogger(), primary, fallback).OHLC(t.Context(), "TCS")

	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.False(t, res.Value.Open.Valid)
}

func TestSnapshot_NeverMixesSources(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{
		name:  "MStock",
		quote: provider.Quote{LastPrice: null.FloatFrom(100)},
		oErr:  errors.New("ohlc missing"),
	}
	fallback := &fakeProvider{
		name:  "Yahoo",
		quote: provider.Quote{LastPrice: null.FloatFrom(99)},
		ohlc:  provider.OHLC{Open: null.FloatFrom(98), Close: null.FloatFrom(99)},
	}

	res := ranked.New(quietLogger(), primary, fallback).Snapshot(t.Context(), "TCS")

	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.InDelta(t, 99.0, res.Value.Quote.LastPrice.Float64, 1e-9)
	require.InDelta(t, 98.0, res.Value.OHLC.Open.Float64, 1e-9)
}

func TestSeries(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 3, 3, 9, 15, 0, 0, time.UTC)
	primary := &fakeProvider{name: "MStock", bars: []provider.Bar{{Time: t0}}}
	fallback := &fakeProvider{name: "Yahoo", bars: []provider.Bar{
		{Time: t0.Add(time.Minute), Close: null.FloatFrom(2), Volume: null.FloatFrom(1)},
		{Time: t0, Close: null.FloatFrom(1), Volume: null.FloatFrom(1)},
	}}

	res := ranked.New(quietLogger(), primary, fallback).Series(t.Context(), "TCS", provider.Timeframe1m)

	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.Len(t, res.Value, 2)
	require.True(t, res.Value[0].Time.Before(res.Value[1].Time))
}

func TestSeries_UnsupportedTimeframe(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "MStock"}

	res := ranked.New(quietLogger(), primary).Series(t.Context(), "TCS", provider.Timeframe("4h"))

	require.ErrorIs(t, res.Err, provider.ErrUnsupportedTimeframe)
	require.NotNil(t, res.Value)
	require.Empty(t, res.Value)
	require.Zero(t, primary.calls)
}

func TestSeries_AllFailIsEmpty(t *testing.T) {
	t.Parallel()

	res := ranked.New(quietLogger(),
		&fakeProvider{name: "MStock", err: errors.New("down")},
		&fakeProvider{name: "Yahoo", err: errors.New("down too")},
	).Series(t.Context(), "TCS", provider.Timeframe5m)

	require.Error(t, res.Err)
	require.NotNil(t, res.Value)
	require.Empty(t, res.Value)
}

func TestNoProviders(t *testing.T) {
	t.Parallel()

	res := ranked.New(quietLogger()).Quote(t.Context(), "TCS")

	require.Error(t, res.Err)
}

func TestCancelledContextStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	primary := &fakeProvider{name: "MStock", quote: provider.Quote{LastPrice: null.FloatFrom(1)}}

	res := ranked.New(quietLogger(), primary).Quote(ctx, "TCS")

	require.ErrorIs(t, res.Err, context.Canceled)
	require.Zero(t, primary.calls)
}

func TestQuote_FallsBackToSuffixedTickerOnce(t *testing.T) {
	t.Parallel()

	// Arrange: a broker that rejects the token and a chart API that counts hits.
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":"error","message":"invalid token"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(broker.Close)

	var hits atomic.Int32
	charts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/TCS.NS" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = io.WriteString(w, `{"chart":{"result":[{"timestamp":[1718000000],"indicators":{"quote":[{"open":[1],"high":[2],"low":[0.5],"close":[1.5],"volume":[10]}]}}]}}`)
	}))
	t.Cleanup(charts.Close)

	primary, err := mstock.NewClient("key", "bad", mstock.WithBaseURL(broker.URL), mstock.WithHTTPClient(broker.Client()))
	require.NoError(t, err)
	fallback := yahoo.NewClient(yahoo.WithBaseURL(charts.URL), yahoo.WithHTTPClient(charts.Client()))

	// Act
	res := ranked.New(quietLogger(), primary, fallback).Quote(t.Context(), "tcs")

	// Assert
	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.InDelta(t, 1.5, res.Value.LastPrice.Float64, 1e-9)
	require.EqualValues(t, 1, hits.Load())
}

func TestQuote_ThrottledPrimaryFallsBack(t *testing.T) {
	t.Parallel()

	// Arrange: one token per minute on the primary, spent by the first call
	primary := &fakeProvider{name: "MStock", quote: provider.Quote{LastPrice: null.FloatFrom(10)}}
	fallback := &fakeProvider{name: "Yahoo", quote: provider.Quote{LastPrice: null.FloatFrom(11)}}
	chain := ranked.New(quietLogger(), ratelimit.Wrap(primary, 1, 1, time.Minute), fallback)
	require.Equal(t, "MStock", chain.Quote(t.Context(), "TCS").Source)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	// Act
	start := time.Now()
	res := chain.Quote(ctx, "TCS")

	// Assert
	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.InDelta(t, 11.0, res.Value.LastPrice.Float64, 1e-9)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, fallback.calls)
	require.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestQuote_FallbackRunsAfterDeadline(t *testing.T) {
	t.Parallel()

	// Arrange: the primary holds the request until its deadline passes
	primary := &stalledProvider{fakeProvider{name: "MStock"}}
	fallback := &fakeProvider{name: "Yahoo", quote: provider.Quote{LastPrice: null.FloatFrom(12)}}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	// Act
	res := ranked.New(quietLogger(), primary, fallback).Quote(ctx, "TCS")

	// Assert
	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.Equal(t, 1, fallback.calls)
	require.NoError(t, fallback.ctxErr)
}

func TestQuote_ZeroBudgetStopsAtDeadline(t *testing.T) {
	t.Parallel()

	primary := &stalledProvider{fakeProvider{name: "MStock"}}
	fallback := &fakeProvider{name: "Yahoo", quote: provider.Quote{LastPrice: null.FloatFrom(12)}}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	res := ranked.New(quietLogger(), primary, fallback).WithFallbackBudget(0).Quote(ctx, "TCS")

	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Zero(t, fallback.calls)
}

func TestSnapshot_YahooUsesOneChartCall(t *testing.T) {
	t.Parallel()

	// Arrange
	var hits atomic.Int32
	charts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"chart":{"result":[{"timestamp":[1718000000],"indicators":{"quote":[{"open":[1],"high":[2],"low":[0.5],"close":[1.5],"volume":[10]}]}}]}}`)
	}))
	t.Cleanup(charts.Close)

	primary := &fakeProvider{name: "MStock", err: errors.New("down")}
	fallback := yahoo.NewClient(yahoo.WithBaseURL(charts.URL), yahoo.WithHTTPClient(charts.Client()))

	// Act
	res := ranked.New(quietLogger(), primary, fallback).Snapshot(t.Context(), "TCS")

	// Assert
	require.True(t, res.OK())
	require.Equal(t, "Yahoo", res.Source)
	require.InDelta(t, 1.5, res.Value.Quote.LastPrice.Float64, 1e-9)
	require.InDelta(t, 1.0, res.Value.OHLC.Open.Float64, 1e-9)
	require.EqualValues(t, 1, hits.Load())
}
