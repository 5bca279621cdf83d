package matching

import (
	"github.com/rishav/order-matching-engine/internal/orderbook"
	"github.com/rishav/order-matching-engine/internal/orders"
)

// Matcher implements price-time priority matching for one shard.
//
// Matcher owns the per-shard trade_sequence counter. It is touched only
// by the event handler's single goroutine, so the counter is a plain
// field, not an atomic: there is no concurrent writer to race with.
type Matcher struct {
	tradeSequence uint64
}

// NewMatcher creates a matcher with its trade sequence counter at zero.
func NewMatcher() *Matcher {
	return &Matcher{}
}

func (m *Matcher) nextTradeSequence() uint64 {
	m.tradeSequence++
	return m.tradeSequence
}

// Cross walks the opposite side of book from best price outward,
// crossing the aggressor against resting makers while price is
// compatible, and returns the ordered MatchResultSet produced. It never
// enqueues a residual; callers that want LIMIT residuals resting must
// call EnqueueResidual afterward, which lets the handler time order book
// insertion separately from the matching loop itself.
//
// Time complexity: O(log P + F) where P is the number of distinct price
// levels on the opposite side and F is the number of fills produced.
func (m *Matcher) Cross(aggressor *orders.Order, book *orderbook.OrderBook) orders.MatchResultSet {
	var fills orders.MatchResultSet
	opposite := aggressor.Side.Opposite()

	for aggressor.RemainingQty > 0 {
		level := book.BestOpposite(opposite)
		if level == nil {
			break
		}

		if !priceCompatible(aggressor, level.Price) {
			break
		}

		node := level.Head()
		maker := node.Order

		fillQty := aggressor.RemainingQty
		if maker.RemainingQty < fillQty {
			fillQty = maker.RemainingQty
		}

		fills = append(fills, orders.MatchEvent{
			AggressorId:   aggressor.Id,
			MakerId:       maker.Id,
			Symbol:        aggressor.Symbol,
			TradePrice:    level.Price,
			TradeQty:      fillQty,
			TradeSequence: m.nextTradeSequence(),
		})

		aggressor.RemainingQty -= fillQty
		maker.RemainingQty -= fillQty
		level.UpdateQuantity(-fillQty)

		if maker.RemainingQty == 0 {
			maker.Status = orders.OrderStatusFilled
			book.PopHead(opposite, level)
		} else {
			maker.Status = orders.OrderStatusPartiallyFilled
		}
	}

	return fills
}

// EnqueueResidual rests the aggressor's remaining quantity on the book
// if it is a LIMIT order; a MARKET residual is discarded and never
// rests. Call only after Cross, and only when aggressor.RemainingQty > 0.
func (m *Matcher) EnqueueResidual(aggressor *orders.Order, book *orderbook.OrderBook) {
	if aggressor.Type == orders.OrderTypeLimit {
		book.Enqueue(aggressor)
	}
}

// priceCompatible reports whether the aggressor may cross against a
// resting price on the opposite side. MARKET orders accept any price;
// LIMIT BUY requires limit_price >= bookPrice, LIMIT SELL requires
// limit_price <= bookPrice.
func priceCompatible(aggressor *orders.Order, bookPrice orders.Price) bool {
	if aggressor.Type == orders.OrderTypeMarket {
		return true
	}
	if aggressor.Side == orders.SideBuy {
		return aggressor.LimitPrice >= bookPrice
	}
	return aggressor.LimitPrice <= bookPrice
}
