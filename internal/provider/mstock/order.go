package mstock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tradeassist/internal/order"
)

const formContentType = "application/x-www-form-urlencoded"

// PlaceOrder submits a regular order. Broker rejections come back as an error
// Result with a nil error; transport failures and unreadable bodies are errors.
func (c *Client) PlaceOrder(ctx context.Context, r order.Request) (order.Result, error) {
	form := orderForm(c.exchange, r)

	b, err := c.do(ctx, http.MethodPost, c.baseURL+"/orders/regular",
		strings.NewReader(form.Encode()), c.quoteTimeout, formContentType)

	var se *StatusError
	if err != nil && !errors.As(err, &se) {
		return order.Result{}, fmt.Errorf("mstock place order: %w", err)
	}

	var raw map[string]any
	if jerr := json.Unmarshal(b, &raw); jerr != nil {
		if se != nil {
			return order.Result{Status: order.StatusError, Message: se.Error()}, nil
		}
		return order.Result{}, fmt.Errorf("decoding order response: %w", jerr)
	}

	res := order.Result{Status: order.StatusError, Raw: raw}
	if s, _ := raw["status"].(string); strings.EqualFold(s, order.StatusSuccess) && se == nil {
		res.Status = order.StatusSuccess
	}
	if data, ok := raw["data"].(map[string]any); ok {
		res.OrderID = stringify(data["order_id"])
	}
	if m, _ := raw["message"].(string); m != "" {
		res.Message = m
	} else if se != nil {
		res.Message = se.Error()
	}
	return res, nil
}

func orderForm(exchange string, r order.Request) url.Values {
	triggerPrice := r.TriggerPrice
	if triggerPrice == 0 && strings.HasPrefix(r.OrderType, "SL") {
		triggerPrice = r.SLPrice
	}

	form := url.Values{}
	form.Set("tradingsymbol", r.Symbol)
	form.Set("exchange", exchange)
	form.Set("transaction_type", r.TransactionType)
	form.Set("order_type", r.OrderType)
	form.Set("product", r.Product)
	form.Set("validity", "DAY")
	form.Set("quantity", strconv.Itoa(r.Quantity))
	form.Set("price", price(r.Price))
	form.Set("trigger_price", price(triggerPrice))
	return form
}

func price(f float64) string {
	return decimal.NewFromFloat(f).Round(2).StringFixed(2)
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
