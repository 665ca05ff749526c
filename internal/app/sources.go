// Package app assembles the data providers from configuration.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tradeassist/internal/config"
	"tradeassist/internal/order"
	"tradeassist/internal/provider"
	"tradeassist/internal/provider/mstock"
	"tradeassist/internal/provider/ranked"
	"tradeassist/internal/provider/ratelimit"
	"tradeassist/internal/provider/yahoo"
)

// HTTPClient is satisfied by *httpx.Client and *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sources holds the configured clients. MStock is nil without credentials.
type Sources struct {
	MStock *mstock.Client
	Yahoo  *yahoo.Client
	Chain  *ranked.Chain
}

// NewSources builds the primary and fallback clients and ranks them. Yahoo is
// always constructed because the Yahoo-only endpoints use it; it joins the
// chain only when enabled.
func NewSources(cfg config.Config, hc HTTPClient, log logrus.FieldLogger) (Sources, error) {
	var (
		s         Sources
		providers []provider.Provider
	)

	if cfg.MStock.Enabled() {
		ms, err := mstock.NewClient(cfg.MStock.APIKey, cfg.MStock.AccessToken,
			mstock.WithBaseURL(cfg.MStock.BaseURL),
			mstock.WithExchange(cfg.MStock.Exchange),
			mstock.WithHTTPClient(hc),
			mstock.WithTimeouts(seconds(cfg.MStock.QuoteTimeoutSec), seconds(cfg.MStock.HistoryTimeoutSec)),
		)
		if err != nil {
			return Sources{}, err
		}
		s.MStock = ms
		providers = append(providers, ratelimit.Wrap(ms,
			cfg.MStock.MaxRequestsPerMinute, cfg.MStock.Burst, seconds(cfg.MStock.QuoteTimeoutSec)))
	} else {
		log.Warn("MSTOCK_API_KEY/MSTOCK_ACCESS_TOKEN not set; primary provider disabled")
	}

	s.Yahoo = yahoo.NewClient(
		yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
		yahoo.WithSuffix(cfg.Yahoo.Suffix),
		yahoo.WithHTTPClient(hc),
	)
	if cfg.Yahoo.Enabled {
		providers = append(providers, s.Yahoo)
	}

	s.Chain = ranked.New(log, providers...)
	return s, nil
}

// Broker returns the order broker, or nil when MStock is not configured.
func (s Sources) Broker() order.Broker {
	if s.MStock == nil {
		return nil
	}
	return s.MStock
}

// Probe asks the primary for one LTP and reports whether it answered. The
// outcome is informational only.
func (s Sources) Probe(ctx context.Context, symbol string, log logrus.FieldLogger) bool {
	if s.MStock == nil {
		return false
	}
	log = log.WithFields(logrus.Fields{"provider": s.MStock.Name(), "symbol": symbol})
	q, err := s.MStock.Quote(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("primary provider unavailable; requests will fall back")
		return false
	}
	log.WithField("ltp", q.LastPrice.Float64).Info("primary provider available")
	return true
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
