package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tradeassist/internal/app"
	"tradeassist/internal/config"
	"tradeassist/internal/httpx"
	"tradeassist/internal/logx"
	"tradeassist/internal/normalize"
	"tradeassist/internal/provider"
)

type row struct {
	Symbol string          `json:"symbol"`
	Source string          `json:"source,omitempty"`
	Quote  provider.Quote  `json:"quote"`
	OHLC   provider.OHLC   `json:"ohlc"`
	Series provider.Series `json:"series,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func main() {
	var (
		symbolsCSV  string
		timeframe   string
		bars        int
		concurrency int
		timeout     int
		configPath  string
	)
	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "ACC"), "comma-separated NSE symbols")
	flag.StringVar(&timeframe, "timeframe", "", "also fetch a series at this timeframe (1m,3m,5m,10m,15m,30m,1h,1d)")
	flag.IntVar(&bars, "bars", 5, "number of trailing candles to print with -timeframe")
	flag.IntVar(&concurrency, "concurrency", 4, "symbols fetched in parallel")
	flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	log := logx.New(cfg.Log.Level, "text")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var tf provider.Timeframe
	if timeframe != "" {
		if tf, err = provider.ParseTimeframe(timeframe); err != nil {
			log.Fatal(err)
		}
	}

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Fatal("no symbols provided")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	sources, err := app.NewSources(cfg, httpClient, log)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}
	if len(sources.Chain.Names()) == 0 {
		log.Fatal("no providers configured; set MSTOCK_API_KEY/MSTOCK_ACCESS_TOKEN or enable yahoo")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	rows := make([]row, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, sym := range symbols {
		g.Go(func() error {
			rows[i] = fetch(gctx, sources, sym, tf, bars)
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Rows []row `json:"rows"`
	}{rows}); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func fetch(ctx context.Context, s app.Sources, sym string, tf provider.Timeframe, bars int) row {
	r := row{Symbol: normalize.Symbol(sym)}

	snap := s.Chain.Snapshot(ctx, r.Symbol)
	if !snap.OK() {
		r.Error = snap.Err.Error()
		return r
	}
	r.Source, r.Quote, r.OHLC = snap.Source, snap.Value.Quote, snap.Value.OHLC

	if tf != "" {
		series := s.Chain.Series(ctx, r.Symbol, tf)
		if !series.OK() {
			r.Error = series.Err.Error()
			return r
		}
		r.Series = series.Value.Tail(bars)
	}
	return r
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
