package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeassist/internal/order"
)

func (h *Handler) placeOrder(c *gin.Context) {
	var payload map[string]any
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload == nil {
		writeStatusError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.orders.Place(c.Request.Context(), order.FromPayload(payload))
	if errors.Is(err, order.ErrInvalidInput) {
		writeStatusError(c, http.StatusBadRequest, "Missing or invalid input")
		return
	}
	if err != nil {
		h.logger(c).WithError(err).Error("order placement error")
		writeStatusError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if res.OK() {
		c.JSON(http.StatusOK, gin.H{"status": order.StatusSuccess, "order_id": res.OrderID})
		return
	}
	msg := res.Message
	if msg == "" {
		msg = "Order failed"
	}
	raw := res.Raw
	if raw == nil {
		raw = map[string]any{}
	}
	c.JSON(http.StatusBadGateway, gin.H{"status": order.StatusError, "message": msg, "raw": raw})
}

func (h *Handler) sentiment(c *gin.Context) {
	r, err := h.news.Analyze(c.Request.Context())
	if err != nil {
		h.logger(c).WithError(err).Error("sentiment scrape failed")
		writeError(c, http.StatusBadGateway, "Failed to fetch sentiment: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, r)
}
