package ingress

import (
	"fmt"

	"github.com/rishav/order-matching-engine/internal/orders"
)

// orderEnvelope is the wire shape of a submitted or seeded order.
type orderEnvelope struct {
	OrderId   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// seedRequest is the body of POST /seed.
type seedRequest struct {
	Orders []orderEnvelope `json:"orders"`
}

// toOrder performs pre-admission validation and converts the envelope
// into an Order. It rejects missing required fields, non-parseable
// numbers, and obvious bad types; deeper validation runs inside the
// event handler.
func (e orderEnvelope) toOrder() (*orders.Order, error) {
	if e.OrderId == "" {
		return nil, fmt.Errorf("orderId is required")
	}
	if e.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	side, ok := orders.ParseSide(e.Side)
	if !ok {
		return nil, fmt.Errorf("invalid side %q", e.Side)
	}
	orderType, ok := orders.ParseOrderType(e.Type)
	if !ok {
		return nil, fmt.Errorf("invalid type %q", e.Type)
	}
	if e.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if orderType == orders.OrderTypeLimit && e.Price <= 0 {
		return nil, fmt.Errorf("price must be positive for LIMIT orders")
	}

	return &orders.Order{
		Id:           orders.OrderId(e.OrderId),
		Symbol:       e.Symbol,
		Side:         side,
		Type:         orderType,
		LimitPrice:   orders.Price(e.Price),
		OriginalQty:  orders.Quantity(e.Quantity),
		RemainingQty: orders.Quantity(e.Quantity),
		Status:       orders.OrderStatusNew,
	}, nil
}
