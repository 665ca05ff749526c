// Package ranked tries an ordered list of providers until one of them answers.
package ranked

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tradeassist/internal/normalize"
	"tradeassist/internal/provider"
)

// Result carries the value of the first provider that succeeded. When every
// provider failed, Value is the zero canonical value and Err joins each
// provider's error.
type Result[T any] struct {
	Value  T
	Source string
	Err    error
}

// OK reports whether some provider answered.
func (r Result[T]) OK() bool { return r.Err == nil }

// Snapshot is a quote and a daily bar taken from the same provider.
type Snapshot struct {
	Quote provider.Quote `json:"quote"`
	OHLC  provider.OHLC  `json:"ohlc"`
}

// DefaultFallbackBudget bounds a fallback attempt that starts after the
// request deadline has already passed.
const DefaultFallbackBudget = 10 * time.Second

// snapshotter is implemented by providers that serve a quote and a daily bar
// in one call.
type snapshotter interface {
	Snapshot(ctx context.Context, symbol string) (provider.Quote, provider.OHLC, error)
}

// Chain is an ordered provider list. The zero value has no providers.
type Chain struct {
	providers []provider.Provider
	log       logrus.FieldLogger
	budget    time.Duration
}

func New(log logrus.FieldLogger, providers ...provider.Provider) *Chain {
	return &Chain{providers: providers, log: log, budget: DefaultFallbackBudget}
}

// WithFallbackBudget sets how long a fallback may run once the caller's
// deadline has expired. Zero stops the chain at the deadline.
func (c *Chain) WithFallbackBudget(d time.Duration) *Chain {
	c.budget = d
	return c
}

// Names lists the providers in the order they are tried.
func (c *Chain) Names() []string {
	out := make([]string, len(c.providers))
	for i, p := range c.providers {
		out[i] = p.Name()
	}
	return out
}

// Quote returns the first non-null last price.
func (c *Chain) Quote(ctx context.Context, symbol string) Result[provider.Quote] {
	return first(ctx, c, "quote", symbol, func(ctx context.Context, p provider.Provider) (provider.Quote, error) {
		q, err := p.Quote(ctx, symbol)
		if err != nil {
			return provider.Quote{}, err
		}
		if !q.LastPrice.Valid {
			return provider.Quote{}, provider.ErrNoData
		}
		return q, nil
	})
}

// OHLC returns the first non-empty daily bar.
func (c *Chain) OHLC(ctx context.Context, symbol string) Result[provider.OHLC] {
	return first(ctx, c, "ohlc", symbol, func(ctx context.Context, p provider.Provider) (provider.OHLC, error) {
		o, err := p.OHLC(ctx, symbol)
		if err != nil {
			return provider.OHLC{}, err
		}
		if o.Empty() {
			return provider.OHLC{}, provider.ErrNoData
		}
		return o, nil
	})
}

// Snapshot asks each provider for both a quote and a daily bar and keeps the
// first provider for which both succeed. Mixing sources is not allowed.
func (c *Chain) Snapshot(ctx context.Context, symbol string) Result[Snapshot] {
	return first(ctx, c, "snapshot", symbol, func(ctx context.Context, p provider.Provider) (Snapshot, error) {
		if sp, ok := p.(snapshotter); ok {
			q, o, err := sp.Snapshot(ctx, symbol)
			if err != nil {
				return Snapshot{}, err
			}
			return checkSnapshot(q, o)
		}
		q, err := p.Quote(ctx, symbol)
		if err != nil {
			return Snapshot{}, fmt.Errorf("quote: %w", err)
		}
		if !q.LastPrice.Valid {
			return Snapshot{}, fmt.Errorf("quote: %w", provider.ErrNoData)
		}
		o, err := p.OHLC(ctx, symbol)
		if err != nil {
			return Snapshot{}, fmt.Errorf("ohlc: %w", err)
		}
		return checkSnapshot(q, o)
	})
}

func checkSnapshot(q provider.Quote, o provider.OHLC) (Snapshot, error) {
	if !q.LastPrice.Valid {
		return Snapshot{}, fmt.Errorf("quote: %w", provider.ErrNoData)
	}
	if o.Empty() {
		return Snapshot{}, fmt.Errorf("ohlc: %w", provider.ErrNoData)
	}
	return Snapshot{Quote: q, OHLC: o}, nil
}

// Series returns the first non-empty canonical series. An unsupported
// timeframe fails before any provider is called.
func (c *Chain) Series(ctx context.Context, symbol string, tf provider.Timeframe) Result[provider.Series] {
	if _, err := provider.ParseTimeframe(string(tf)); err != nil {
		return Result[provider.Series]{Value: provider.Series{}, Err: err}
	}
	res := first(ctx, c, "series", symbol, func(ctx context.Context, p provider.Provider) (provider.Series, error) {
		bars, err := p.Bars(ctx, symbol, tf)
		if err != nil {
			return nil, err
		}
		s := normalize.Series(bars)
		if len(s) == 0 {
			return nil, provider.ErrNoData
		}
		return s, nil
	})
	if res.Value == nil {
		res.Value = provider.Series{}
	}
	return res
}

// attempt returns the context for the i-th provider. A caller that went away
// stops the chain. A deadline that expired during an earlier attempt gives
// the next provider a fresh budget instead.
func (c *Chain) attempt(ctx context.Context, i int) (context.Context, context.CancelFunc, error) {
	err := ctx.Err()
	switch {
	case err == nil:
		return ctx, func() {}, nil
	case i > 0 && c.budget > 0 && errors.Is(err, context.DeadlineExceeded):
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.budget)
		return actx, cancel, nil
	default:
		return nil, nil, err
	}
}

func first[T any](ctx context.Context, c *Chain, op, symbol string, fn func(context.Context, provider.Provider) (T, error)) Result[T] {
	var errs []error
	for i, p := range c.providers {
		actx, cancel, err := c.attempt(ctx, i)
		if err != nil {
			errs = append(errs, err)
			break
		}
		log := c.log.WithFields(logrus.Fields{"provider": p.Name(), "symbol": symbol, "op": op})
		v, err := fn(actx, p)
		cancel()
		if err == nil {
			if len(errs) > 0 {
				log.Info("served by fallback provider")
			}
			return Result[T]{Value: v, Source: p.Name()}
		}
		log.WithError(err).Warn("provider failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	var zero T
	return Result[T]{Value: zero, Err: errors.Join(errs...)}
}
