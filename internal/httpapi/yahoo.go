package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradeassist/internal/normalize"
	"tradeassist/internal/provider"
	"tradeassist/internal/provider/yahoo"
)

const chartTimeLayout = "2006-01-02 15:04:05"

// ist is the exchange time zone used for chart timestamps.
var ist = time.FixedZone("IST", 5*3600+30*60)

type chartPoint struct {
	Time  string  `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func (h *Handler) yahooLTP(c *gin.Context) {
	symbol := normalize.Symbol(c.Param("symbol"))
	q, err := h.yahoo.Quote(c.Request.Context(), symbol)
	if err != nil || !q.LastPrice.Valid {
		if err != nil {
			h.logger(c).WithField("symbol", symbol).WithError(err).Warn("yahoo ltp unavailable")
		}
		writeError(c, http.StatusNotFound, fmt.Sprintf("LTP not available for %s", symbol))
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "ltp": q.LastPrice})
}

// chartParams reads ?interval= or ?timeframe= (default 5m) and ?period=.
func chartParams(c *gin.Context, defaultPeriod func(string) string) (interval, period string, err error) {
	raw := c.Query("interval")
	if raw == "" {
		raw = c.Query("timeframe")
	}
	if raw == "" {
		raw = string(defaultTimeframe)
	}
	if interval, err = yahoo.ParseInterval(raw); err != nil {
		return "", "", err
	}
	period = c.Query("period")
	if period == "" {
		period = defaultPeriod(interval)
	}
	return interval, period, nil
}

func (h *Handler) yahooSeries(c *gin.Context, defaultPeriod func(string) string) (string, provider.Series, bool) {
	symbol := normalize.Symbol(c.Param("symbol"))
	interval, period, err := chartParams(c, defaultPeriod)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return symbol, nil, false
	}
	bars, err := h.yahoo.Chart(c.Request.Context(), symbol, interval, period)
	if err != nil {
		h.logger(c).WithField("symbol", symbol).WithError(err).Warn("yahoo chart unavailable")
	}
	s := normalize.Series(bars)
	return symbol, s, true
}

func (h *Handler) yahooOHLC(c *gin.Context) {
	symbol, s, ok := h.yahooSeries(c, func(string) string { return "7d" })
	if !ok {
		return
	}
	if len(s) == 0 {
		writeError(c, http.StatusNotFound, fmt.Sprintf("OHLC not available for %s", symbol))
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "ohlc": s})
}

func (h *Handler) yahooChart(c *gin.Context) {
	symbol, s, ok := h.yahooSeries(c, yahoo.DefaultPeriod)
	if !ok {
		return
	}
	if len(s) == 0 {
		writeError(c, http.StatusNotFound, fmt.Sprintf("Chart data not available for %s", symbol))
		return
	}
	out := make([]chartPoint, len(s))
	for i, row := range s {
		out[i] = chartPoint{
			Time:  row.Time.In(ist).Format(chartTimeLayout),
			Open:  row.Open,
			High:  row.High,
			Low:   row.Low,
			Close: row.Close,
		}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "chart": out})
}
