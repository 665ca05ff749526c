package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type MStock struct {
	APIKey            string `json:"api_key"`
	AccessToken       string `json:"access_token"`
	BaseURL           string `json:"base_url"`
	Exchange          string `json:"exchange"`
	QuoteTimeoutSec   int    `json:"quote_timeout_sec"`
	HistoryTimeoutSec int    `json:"history_timeout_sec"`
	ProbeSymbol       string `json:"probe_symbol"`

	// MaxRequestsPerMinute throttles market data calls; zero disables it.
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`
	Burst                int `json:"burst"`
}

// Enabled reports whether credentials are present.
func (m MStock) Enabled() bool { return m.APIKey != "" && m.AccessToken != "" }

type Yahoo struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url"`
	Suffix  string `json:"suffix"`
}

type Sentiment struct {
	URL             string `json:"url"`
	SymbolTableFile string `json:"symbol_table_file"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type Config struct {
	Server    Server    `json:"server"`
	MStock    MStock    `json:"mstock"`
	Yahoo     Yahoo     `json:"yahoo"`
	Sentiment Sentiment `json:"sentiment"`
	Watchlist []string  `json:"watchlist"`
	Log       Log       `json:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		MStock: MStock{
			BaseURL:           "https://api.mstock.trade/openapi/typea",
			Exchange:          "NSE",
			QuoteTimeoutSec:   5,
			HistoryTimeoutSec: 10,
			ProbeSymbol:       "TCS",
		},
		Yahoo: Yahoo{
			Enabled: true,
			BaseURL: "https://query1.finance.yahoo.com",
			Suffix:  ".NS",
		},
		Sentiment: Sentiment{URL: "https://www.moneycontrol.com/news/business/markets/"},
		Watchlist: []string{"ACC"},
		Log:       Log{Level: "info", Format: "json"},
	}
}

// Load reads JSON config from path. If path is empty, CONFIG_FILE and then
// ./config.json are tried; a missing file yields defaults. A .env file in the
// working directory is loaded first and never overrides the real environment.
// Environment variables override the file, which keeps secrets out of it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Default(), fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}

	if v := os.Getenv("MSTOCK_API_KEY"); v != "" {
		cfg.MStock.APIKey = v
	}
	if v := os.Getenv("MSTOCK_ACCESS_TOKEN"); v != "" {
		cfg.MStock.AccessToken = v
	}
	if v := os.Getenv("MSTOCK_BASE_URL"); v != "" {
		cfg.MStock.BaseURL = v
	}
	if v := os.Getenv("MSTOCK_EXCHANGE"); v != "" {
		cfg.MStock.Exchange = strings.ToUpper(v)
	}
	if x, ok := envInt("MSTOCK_QUOTE_TIMEOUT_SEC"); ok && x > 0 {
		cfg.MStock.QuoteTimeoutSec = x
	}
	if x, ok := envInt("MSTOCK_HISTORY_TIMEOUT_SEC"); ok && x > 0 {
		cfg.MStock.HistoryTimeoutSec = x
	}
	if v := os.Getenv("MSTOCK_PROBE_SYMBOL"); v != "" {
		cfg.MStock.ProbeSymbol = v
	}
	if x, ok := envInt("MSTOCK_MAX_REQUESTS_PER_MINUTE"); ok && x >= 0 {
		cfg.MStock.MaxRequestsPerMinute = x
	}
	if x, ok := envInt("MSTOCK_BURST"); ok && x > 0 {
		cfg.MStock.Burst = x
	}

	if b, ok := envBool("YAHOO_ENABLED"); ok {
		cfg.Yahoo.Enabled = b
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = v
	}
	if v := os.Getenv("YAHOO_SUFFIX"); v != "" {
		cfg.Yahoo.Suffix = v
	}

	if v := os.Getenv("SENTIMENT_URL"); v != "" {
		cfg.Sentiment.URL = v
	}
	if v := os.Getenv("SYMBOL_TABLE_FILE"); v != "" {
		cfg.Sentiment.SymbolTableFile = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		if syms := splitCSV(v); len(syms) > 0 {
			cfg.Watchlist = syms
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return x, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
