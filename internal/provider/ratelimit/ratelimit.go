// Package ratelimit throttles outbound calls to a market data provider.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradeassist/internal/provider"
)

// ErrThrottled is returned when no token becomes available in time.
var ErrThrottled = errors.New("rate limited")

// TokenBucket refills at rate tokens per second up to burst.
type TokenBucket struct {
	rate     float64
	capacity float64
	now      func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket starts full so an initial burst passes without waiting.
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	rate := float64(perMinute) / 60
	if rate <= 0 {
		rate = 1e-7
	}
	return &TokenBucket{
		rate:     rate,
		capacity: float64(burst),
		now:      time.Now,
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// reserve takes a token if one is available, otherwise returns how long
// until the next one.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.rate)
		tb.last = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
	return max(wait, time.Millisecond)
}

// Wait blocks until a token is available. It gives up with ErrThrottled
// when the next token is further away than maxWait or than ctx's deadline.
func (tb *TokenBucket) Wait(ctx context.Context, maxWait time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	limit := tb.now().Add(maxWait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(limit) {
		limit = dl
	}
	for {
		wait := tb.reserve()
		if wait == 0 {
			return nil
		}
		if tb.now().Add(wait).After(limit) {
			return fmt.Errorf("%w: next slot in %s", ErrThrottled, wait.Round(time.Millisecond))
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Provider gates every call of P through TB, waiting at most MaxWait for a
// token. Zero MaxWait never waits.
type Provider struct {
	P       provider.Provider
	TB      *TokenBucket
	MaxWait time.Duration
}

// Wrap returns p unchanged when perMinute is not positive.
func Wrap(p provider.Provider, perMinute, burst int, maxWait time.Duration) provider.Provider {
	if perMinute <= 0 {
		return p
	}
	return &Provider{P: p, TB: NewTokenBucket(perMinute, burst), MaxWait: maxWait}
}

func (l *Provider) Name() string { return l.P.Name() }

func (l *Provider) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	if err := l.wait(ctx); err != nil {
		return provider.Quote{}, err
	}
	return l.P.Quote(ctx, symbol)
}

func (l *Provider) OHLC(ctx context.Context, symbol string) (provider.OHLC, error) {
	if err := l.wait(ctx); err != nil {
		return provider.OHLC{}, err
	}
	return l.P.OHLC(ctx, symbol)
}

func (l *Provider) Bars(ctx context.Context, symbol string, tf provider.Timeframe) ([]provider.Bar, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.P.Bars(ctx, symbol, tf)
}

func (l *Provider) wait(ctx context.Context) error {
	if l.TB == nil {
		return nil
	}
	return l.TB.Wait(ctx, l.MaxWait)
}
