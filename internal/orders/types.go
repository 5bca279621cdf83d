// Package orders defines the core data types shared by the order book,
// the matcher, and the event handler: prices, quantities, order
// identifiers, and the order and match-event records themselves.
//
// Prices are fixed-point signed 64-bit integers in minor currency units
// (cents). Arbitrary-precision decimals and floating point are forbidden
// on the hot path; the only place a decimal-to-integer conversion happens
// is at ingress parsing.
package orders

import "fmt"

// Price is a signed fixed-point price in cents. Ordering and equality are
// by integer value.
type Price int64

// Quantity is a non-negative share/contract count. Zero means fully
// consumed.
type Quantity int64

// OrderId is an opaque, submitter-assigned identifier. Unique within a
// shard for the lifetime of the run; never reused.
type OrderId string

// Side is one of BUY or SELL.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ParseSide parses the side field of an order envelope.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "BUY", "buy":
		return SideBuy, true
	case "SELL", "sell":
		return SideSell, true
	default:
		return 0, false
	}
}

// OrderType is one of LIMIT or MARKET. MARKET is accepted at ingress and
// matched with no price filter; any residual quantity is discarded rather
// than resting in the book.
type OrderType uint8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderType parses the type field of an order envelope.
func ParseOrderType(s string) (OrderType, bool) {
	switch s {
	case "LIMIT", "limit":
		return OrderTypeLimit, true
	case "MARKET", "market":
		return OrderTypeMarket, true
	default:
		return 0, false
	}
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus uint8

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "NEW"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order is a single order tracked by the matching engine.
//
// Invariant: 0 <= RemainingQty <= OriginalQty. ArrivalSequence is the
// monotonically increasing counter stamped by the event handler at
// admission; it is the deterministic tiebreaker for time priority within
// a price level.
type Order struct {
	Id              OrderId
	Symbol          string
	Side            Side
	Type            OrderType
	LimitPrice      Price
	OriginalQty     Quantity
	RemainingQty    Quantity
	ArrivalSequence uint64
	Status          OrderStatus
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.RemainingQty <= 0
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{Id:%s, %s %s %s@%d, Remaining:%d, Status:%s}",
		o.Id, o.Side, o.Symbol, o.Type, o.LimitPrice, o.RemainingQty, o.Status)
}

// MatchEvent records a single execution between an aggressor and a
// resting maker order. TradePrice is always the maker's limit price:
// price improvement goes to the aggressor. TradeSequence is monotonic
// per shard.
type MatchEvent struct {
	AggressorId   OrderId  `json:"aggressorId"`
	MakerId       OrderId  `json:"makerId"`
	Symbol        string   `json:"symbol"`
	TradePrice    Price    `json:"tradePrice"`
	TradeQty      Quantity `json:"tradeQty"`
	TradeSequence uint64   `json:"tradeSequence"`
}

// MatchResultSet is an ordered, possibly empty list of match events
// produced by matching one aggressor against a book.
type MatchResultSet []MatchEvent

// FormatPrice renders a fixed-point cents price as a dollar string, for
// logs and HTTP responses.
func FormatPrice(cents Price) string {
	dollars := cents / 100
	remaining := cents % 100
	if remaining < 0 {
		remaining = -remaining
	}
	return fmt.Sprintf("%d.%02d", dollars, remaining)
}
