// Package order validates order payloads and forwards them to the broker.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoBroker is reported when the service was built without a broker.
var ErrNoBroker = errors.New("order placement is not configured")

// ErrInvalidInput is returned before any network call when the payload lacks
// a symbol, a transaction type or a positive quantity.
var ErrInvalidInput = errors.New("missing or invalid input")

const (
	StatusSuccess = "success"
	StatusError   = "error"

	DefaultOrderType = "MARKET"
	DefaultProduct   = "MIS"
)

// Request is a normalized order.
type Request struct {
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transaction_type"`
	OrderType       string  `json:"order_type"`
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	SLPrice         float64 `json:"sl_price"`
	TriggerPrice    float64 `json:"trigger_price"`
}

// Result is what the broker reported.
type Result struct {
	Status  string         `json:"status"`
	OrderID string         `json:"order_id,omitempty"`
	Message string         `json:"message,omitempty"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// OK reports whether the broker accepted the order.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// FromPayload coerces a loosely typed JSON object into a Request.
// Non-numeric values for numeric fields become zero.
func FromPayload(p map[string]any) Request {
	r := Request{
		Symbol:          upper(p["symbol"]),
		TransactionType: upper(p["transaction_type"]),
		OrderType:       upper(p["order_type"]),
		Product:         upper(p["product"]),
		Quantity:        toInt(p["quantity"]),
		Price:           toFloat(p["price"]),
		SLPrice:         toFloat(p["sl_price"]),
		TriggerPrice:    toFloat(p["trigger_price"]),
	}
	if r.OrderType == "" {
		r.OrderType = DefaultOrderType
	}
	if r.Product == "" {
		r.Product = DefaultProduct
	}
	return r
}

// Validate checks the fields required before talking to the broker.
func (r Request) Validate() error {
	if r.Symbol == "" || r.TransactionType == "" || r.Quantity <= 0 {
		return ErrInvalidInput
	}
	return nil
}

// Broker places a validated order. A non-nil error means the broker could not
// be reached or answered with something unreadable.
type Broker interface {
	PlaceOrder(ctx context.Context, r Request) (Result, error)
}

// Service is the order placement adapter.
type Service struct {
	broker Broker
	log    logrus.FieldLogger
}

func NewService(b Broker, log logrus.FieldLogger) *Service {
	return &Service{broker: b, log: log}
}

// Place validates r and forwards it once. Only validation failures are
// returned as errors; broker failures come back as an error Result.
func (s *Service) Place(ctx context.Context, r Request) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}
	log := s.log.WithFields(logrus.Fields{"symbol": r.Symbol, "side": r.TransactionType, "qty": r.Quantity})
	if s.broker == nil {
		log.Warn("order rejected: no broker configured")
		return Result{Status: StatusError, Message: ErrNoBroker.Error()}, nil
	}
	res, err := s.broker.PlaceOrder(ctx, r)
	if err != nil {
		log.WithError(err).Error("order placement failed")
		return Result{Status: StatusError, Message: err.Error(), Raw: res.Raw}, nil
	}
	if res.OK() {
		log.WithField("order_id", res.OrderID).Info("order placed")
	} else {
		log.WithField("message", res.Message).Warn("order rejected")
	}
	return res, nil
}

func upper(v any) string {
	s, _ := v.(string)
	return strings.ToUpper(strings.TrimSpace(s))
}

func toInt(v any) int {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		if f, err := x.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int(f)
		}
	case float64:
		if !math.IsInf(x, 0) && !math.IsNaN(x) {
			return int(x)
		}
	case int:
		return x
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		f, _ = x.Float64()
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case bool:
		if x {
			f = 1
		}
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
