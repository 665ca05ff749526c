package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeassist/internal/indicator"
	"tradeassist/internal/normalize"
	"tradeassist/internal/provider"
)

const (
	defaultTimeframe = provider.Timeframe5m
	atrRowsReturned  = 20
)

var (
	buyBand  = decimal.RequireFromString("0.995")
	sellBand = decimal.RequireFromString("1.005")
)

type startBotRequest struct {
	Symbol string `json:"symbol"`
}

type startBotResponse struct {
	Symbol     string     `json:"symbol"`
	LTP        float64    `json:"ltp"`
	Open       null.Float `json:"open"`
	High       null.Float `json:"high"`
	Low        null.Float `json:"low"`
	Close      null.Float `json:"close"`
	BuyPrice   float64    `json:"buy_price"`
	SellPrice  float64    `json:"sell_price"`
	Prediction string     `json:"prediction"`
	Source     string     `json:"source"`
}

// band returns ltp*factor rounded half away from zero to 2 dp.
func band(ltp float64, factor decimal.Decimal) float64 {
	return decimal.NewFromFloat(ltp).Mul(factor).Round(2).InexactFloat64()
}

func (h *Handler) startBot(c *gin.Context) {
	var req startBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	symbol := normalize.Symbol(req.Symbol)
	if symbol == "" {
		writeError(c, http.StatusBadRequest, "Symbol is required")
		return
	}

	log := h.logger(c).WithField("symbol", symbol)
	res := h.market.Snapshot(c.Request.Context(), symbol)
	if !res.OK() {
		log.WithError(res.Err).Error("snapshot failed on every provider")
		writeError(c, http.StatusBadGateway, fmt.Sprintf("all providers failed to return a snapshot for %s", symbol))
		return
	}

	ltp := res.Value.Quote.LastPrice.Float64
	o := res.Value.OHLC
	c.JSON(http.StatusOK, startBotResponse{
		Symbol:     symbol,
		LTP:        ltp,
		Open:       o.Open,
		High:       o.High,
		Low:        o.Low,
		Close:      o.Close,
		BuyPrice:   band(ltp, buyBand),
		SellPrice:  band(ltp, sellBand),
		Prediction: "N/A",
		Source:     res.Source,
	})
}

type watchlistEntry struct {
	Symbol string     `json:"symbol"`
	LTP    null.Float `json:"ltp"`
}

func (h *Handler) getWatchlist(c *gin.Context) {
	data := make([]watchlistEntry, 0, len(h.watchlist))
	for _, sym := range h.watchlist {
		sym = normalize.Symbol(sym)
		res := h.market.Quote(c.Request.Context(), sym)
		if !res.OK() {
			h.logger(c).WithField("symbol", sym).WithError(res.Err).Warn("watchlist quote unavailable")
		}
		data = append(data, watchlistEntry{Symbol: sym, LTP: res.Value.LastPrice})
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

// timeframe reads ?timeframe= (or ?interval=), defaulting to 5m.
func timeframe(c *gin.Context) (provider.Timeframe, error) {
	raw := c.Query("timeframe")
	if raw == "" {
		raw = c.Query("interval")
	}
	if raw == "" {
		return defaultTimeframe, nil
	}
	return provider.ParseTimeframe(raw)
}

func pathSymbol(c *gin.Context) string {
	if s := normalize.Symbol(c.Param("symbol")); s != "" {
		return s
	}
	return "ACC"
}

func (h *Handler) chart(c *gin.Context) {
	symbol := pathSymbol(c)
	tf, err := timeframe(c)
	if err != nil {
		writeStatusError(c, http.StatusBadRequest, err.Error())
		return
	}

	res := h.market.Series(c.Request.Context(), symbol, tf)
	if !res.OK() {
		h.logger(c).WithFields(logrus.Fields{"symbol": symbol, "timeframe": tf}).
			WithError(res.Err).Warn("chart series unavailable")
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"symbol":    symbol,
		"timeframe": tf,
		"source":    res.Source,
		"data":      res.Value,
	})
}

type signalRow struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
	EMA7  float64   `json:"EMA7"`
	EMA21 float64   `json:"EMA21"`
	Buy   bool      `json:"Buy"`
	Sell  bool      `json:"Sell"`
}

func (h *Handler) signals(c *gin.Context) {
	symbol := pathSymbol(c)
	tf, err := timeframe(c)
	if err != nil {
		writeStatusError(c, http.StatusBadRequest, err.Error())
		return
	}

	res := h.market.Series(c.Request.Context(), symbol, tf)
	if !res.OK() {
		h.logger(c).WithFields(logrus.Fields{"symbol": symbol, "timeframe": tf}).
			WithError(res.Err).Warn("signal series unavailable")
	}

	s := res.Value
	fast := make([]float64, len(s))
	slow := make([]float64, len(s))
	for i, row := range s {
		fast[i], slow[i] = row.EMA7, row.EMA21
	}
	crosses := indicator.EMACrossover(fast, slow)

	rows := make([]signalRow, len(s))
	for i, row := range s {
		rows[i] = signalRow{
			Time: row.Time, Close: row.Close, EMA7: row.EMA7, EMA21: row.EMA21,
			Buy: crosses[i].Buy, Sell: crosses[i].Sell,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"symbol":    symbol,
		"timeframe": tf,
		"source":    res.Source,
		"signals":   rows,
	})
}

type atrRequest struct {
	Symbol      string   `json:"symbol"`
	Interval    string   `json:"interval"`
	ATRPeriod   *float64 `json:"atr_period"`
	Sensitivity *float64 `json:"sensitivity"`
}

type atrRow struct {
	provider.Candle
	Signal indicator.Signal `json:"signal"`
}

func (h *Handler) atrStopLoss(c *gin.Context) {
	var req atrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	symbol := normalize.Symbol(req.Symbol)
	if symbol == "" {
		writeError(c, http.StatusBadRequest, "Symbol is required")
		return
	}
	tf := defaultTimeframe
	if req.Interval != "" {
		var err error
		if tf, err = provider.ParseTimeframe(req.Interval); err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	period, sensitivity := indicator.DefaultATRPeriod, indicator.DefaultSensitivity
	if req.ATRPeriod != nil {
		period = int(*req.ATRPeriod)
	}
	if req.Sensitivity != nil {
		sensitivity = *req.Sensitivity
	}
	if period <= 0 || sensitivity <= 0 {
		writeError(c, http.StatusBadRequest, indicator.ErrInvalidParams.Error())
		return
	}

	log := h.logger(c).WithFields(logrus.Fields{"symbol": symbol, "timeframe": tf})
	res := h.market.Series(c.Request.Context(), symbol, tf)
	if !res.OK() {
		log.WithError(res.Err).Error("atr series unavailable")
		writeError(c, http.StatusBadGateway, fmt.Sprintf("no candles available for %s", symbol))
		return
	}

	s := res.Value
	high, low, closes := make([]float64, len(s)), make([]float64, len(s)), s.Closes()
	for i, row := range s {
		high[i], low[i] = row.High, row.Low
	}
	sigs, err := indicator.ATRTrailingStop(high, low, closes, period, sensitivity)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, indicator.ErrInvalidParams) {
			status = http.StatusBadRequest
		}
		writeError(c, status, err.Error())
		return
	}

	rows := make([]atrRow, len(s))
	for i := range s {
		rows[i] = atrRow{Candle: s[i], Signal: sigs[i]}
	}
	if len(rows) > atrRowsReturned {
		rows = rows[len(rows)-atrRowsReturned:]
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": tf,
		"source":   res.Source,
		"signals":  rows,
	})
}
