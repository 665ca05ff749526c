// Package httpapi is the JSON facade over the market data chain, the order
// adapter and the sentiment scorer.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tradeassist/internal/order"
	"tradeassist/internal/provider"
	"tradeassist/internal/provider/ranked"
	"tradeassist/internal/provider/yahoo"
	"tradeassist/internal/sentiment"
)

// Market is the fallback-aware data source.
type Market interface {
	Quote(ctx context.Context, symbol string) ranked.Result[provider.Quote]
	Snapshot(ctx context.Context, symbol string) ranked.Result[ranked.Snapshot]
	Series(ctx context.Context, symbol string, tf provider.Timeframe) ranked.Result[provider.Series]
}

// YahooSource backs the Yahoo-only endpoints.
type YahooSource interface {
	Quote(ctx context.Context, symbol string) (provider.Quote, error)
	Chart(ctx context.Context, symbol, interval, period string) ([]provider.Bar, error)
}

// OrderPlacer validates and forwards orders.
type OrderPlacer interface {
	Place(ctx context.Context, r order.Request) (order.Result, error)
}

// Analyzer produces a sentiment report.
type Analyzer interface {
	Analyze(ctx context.Context) (sentiment.Report, error)
}

// Deps are the collaborators of the Handler. Yahoo defaults to the built-in
// client and Watchlist to ACC.
type Deps struct {
	Market    Market
	Yahoo     YahooSource
	Orders    OrderPlacer
	News      Analyzer
	Watchlist []string
	Logger    logrus.FieldLogger

	// RequestTimeout bounds every request; zero means no extra deadline.
	RequestTimeout time.Duration
}

type Handler struct {
	router    *gin.Engine
	chain     http.Handler
	market    Market
	yahoo     YahooSource
	orders    OrderPlacer
	news      Analyzer
	watchlist []string
	log       logrus.FieldLogger
}

func NewHandler(d Deps) *Handler {
	router := gin.New()

	h := &Handler{
		router:    router,
		market:    d.Market,
		yahoo:     d.Yahoo,
		orders:    d.Orders,
		news:      d.News,
		watchlist: d.Watchlist,
		log:       d.Logger,
	}
	if h.yahoo == nil {
		h.yahoo = yahoo.NewClient()
	}
	if len(h.watchlist) == 0 {
		h.watchlist = []string{"ACC"}
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}

	router.Use(requestID(), requestLogger(h.log), requestTimeout(d.RequestTimeout))
	h.registerRoutes()

	h.chain = withCORS(withGzip(recoverPanic(h.log, limitBody(router))))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h.router.POST("/start-bot", h.startBot)
	h.router.POST("/place-order", h.placeOrder)
	h.router.GET("/sentiment", h.sentiment)
	h.router.GET("/watchlist", h.getWatchlist)
	h.router.GET("/chart/:symbol", h.chart)
	h.router.GET("/signals/:symbol", h.signals)
	h.router.POST("/indicator/atr-sl", h.atrStopLoss)

	h.router.GET("/yahoo-ltp/:symbol", h.yahooLTP)
	h.router.GET("/yahoo-ohlc/:symbol", h.yahooOHLC)
	h.router.GET("/yahoo-chart/:symbol", h.yahooChart)
}

// logger returns the request-scoped logger.
func (h *Handler) logger(c *gin.Context) logrus.FieldLogger {
	return h.log.WithField("request_id", c.GetString(requestIDKey))
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func writeStatusError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "message": msg})
}
