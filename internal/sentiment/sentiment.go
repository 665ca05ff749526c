// Package sentiment scores market headlines and extracts a watchlist from them.
package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const (
	DefaultURL      = "https://www.moneycontrol.com/news/business/markets/"
	DefaultSelector = "li.clearfix a"

	defaultTimeout   = 5 * time.Second
	maxHeadlines     = 10
	maxWatchlistSize = 5
)

const (
	Bullish = "📈 Bullish"
	Bearish = "📉 Bearish"
	Neutral = "😐 Neutral"
)

var (
	bullishWords = []string{"rally", "up", "gain", "surge", "record high", "bull", "positive"}
	bearishWords = []string{"fall", "drop", "down", "loss", "bear", "negative", "panic"}
)

// Score adds one for each headline containing a bullish keyword and
// subtracts one for each containing a bearish keyword. A headline can do both.
func Score(headlines []string) int {
	score := 0
	for _, h := range headlines {
		l := strings.ToLower(h)
		if containsAny(l, bullishWords) {
			score++
		}
		if containsAny(l, bearishWords) {
			score--
		}
	}
	return score
}

// Label maps a score onto the three buckets.
func Label(score int) string {
	switch {
	case score > 1:
		return Bullish
	case score < -1:
		return Bearish
	default:
		return Neutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Report is the result of one analysis.
type Report struct {
	Sentiment string   `json:"sentiment"`
	Headlines []string `json:"headlines"`
	Watchlist []string `json:"watchlist"`
}

// Service fetches a news page and analyses its headlines.
type Service struct {
	url        string
	selector   string
	httpClient HTTPClient
	symbols    SymbolTable
	timeout    time.Duration
	log        logrus.FieldLogger
}

// Option is a configuration option for the Service.
type Option func(*Service)

func WithURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.url = u
		}
	}
}

func WithHTTPClient(c HTTPClient) Option {
	return func(s *Service) { s.httpClient = c }
}

func WithSymbols(t SymbolTable) Option {
	return func(s *Service) {
		if t != nil {
			s.symbols = t
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		url:        DefaultURL,
		selector:   DefaultSelector,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		log:        log,
	}
	for _, o := range opts {
		o(s)
	}
	if s.symbols == nil {
		s.symbols = DefaultSymbols()
	}
	return s
}

// Analyze scrapes the headlines, scores them and extracts the watchlist.
func (s *Service) Analyze(ctx context.Context) (Report, error) {
	headlines, err := s.Headlines(ctx)
	if err != nil {
		return Report{}, err
	}
	score := Score(headlines)
	r := Report{
		Sentiment: Label(score),
		Headlines: headlines,
		Watchlist: s.symbols.Watchlist(headlines, maxWatchlistSize),
	}
	s.log.WithFields(logrus.Fields{"headlines": len(headlines), "score": score}).Debug("sentiment analysed")
	return r, nil
}

// Headlines returns the trimmed, non-empty text of the first ten matching
// anchors on the news page.
func (s *Service) Headlines(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing news page: %w", err)
	}

	sel := doc.Find(s.selector)
	if sel.Length() > maxHeadlines {
		sel = sel.Slice(0, maxHeadlines)
	}
	headlines := []string{}
	sel.Each(func(_ int, a *goquery.Selection) {
		if text := strings.TrimSpace(a.Text()); text != "" {
			headlines = append(headlines, text)
		}
	})
	return headlines, nil
}
