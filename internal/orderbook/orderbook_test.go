package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishav/order-matching-engine/internal/orders"
)

func newOrder(id string, side orders.Side, price, qty int64) *orders.Order {
	return &orders.Order{
		Id:           orders.OrderId(id),
		Symbol:       "AAPL",
		Side:         side,
		Type:         orders.OrderTypeLimit,
		LimitPrice:   orders.Price(price),
		OriginalQty:  orders.Quantity(qty),
		RemainingQty: orders.Quantity(qty),
		Status:       orders.OrderStatusNew,
	}
}

func TestOrderBook_BestBidAskAndSpread(t *testing.T) {
	ob := NewOrderBook("AAPL")

	ob.Enqueue(newOrder("b1", orders.SideBuy, 10000, 10))
	ob.Enqueue(newOrder("b2", orders.SideBuy, 10100, 5))
	ob.Enqueue(newOrder("a1", orders.SideSell, 10300, 8))
	ob.Enqueue(newOrder("a2", orders.SideSell, 10200, 4))

	require.NotNil(t, ob.GetBestBid())
	require.NotNil(t, ob.GetBestAsk())
	assert.Equal(t, orders.Price(10100), ob.GetBestBid().Price)
	assert.Equal(t, orders.Price(10200), ob.GetBestAsk().Price)
	assert.Equal(t, orders.Price(100), ob.GetSpread())
	assert.Equal(t, orders.Price(10150), ob.GetMidPrice())
}

func TestOrderBook_FIFOWithinPriceLevel(t *testing.T) {
	ob := NewOrderBook("AAPL")
	ob.Enqueue(newOrder("first", orders.SideBuy, 10000, 10))
	ob.Enqueue(newOrder("second", orders.SideBuy, 10000, 20))

	level := ob.GetBestBid()
	require.NotNil(t, level)
	assert.Equal(t, orders.OrderId("first"), level.Head().Order.Id)
	assert.Equal(t, orders.Quantity(30), level.TotalQty)
}

func TestOrderBook_RemoveDeletesEmptyLevel(t *testing.T) {
	ob := NewOrderBook("AAPL")
	ob.Enqueue(newOrder("only", orders.SideSell, 10500, 3))
	assert.Equal(t, 1, ob.AskLevels())

	ok := ob.Remove("only")
	assert.True(t, ok)
	assert.Equal(t, 0, ob.AskLevels())
	assert.Nil(t, ob.Lookup("only"))
}

func TestOrderBook_RemoveUnknownId(t *testing.T) {
	ob := NewOrderBook("AAPL")
	assert.False(t, ob.Remove("nope"))
}

func TestOrderBook_DepthOrdering(t *testing.T) {
	ob := NewOrderBook("AAPL")
	ob.Enqueue(newOrder("b1", orders.SideBuy, 9900, 1))
	ob.Enqueue(newOrder("b2", orders.SideBuy, 10100, 1))
	ob.Enqueue(newOrder("b3", orders.SideBuy, 10000, 1))

	depth := ob.GetBidDepth(0)
	require.Len(t, depth, 3)
	assert.Equal(t, orders.Price(10100), depth[0].Price)
	assert.Equal(t, orders.Price(10000), depth[1].Price)
	assert.Equal(t, orders.Price(9900), depth[2].Price)
}

func TestOrderBook_PopHeadRemovesLevelWhenLastOrder(t *testing.T) {
	ob := NewOrderBook("AAPL")
	ob.Enqueue(newOrder("only", orders.SideBuy, 10000, 10))

	level := ob.GetBestBid()
	popped := ob.PopHead(orders.SideBuy, level)
	assert.Equal(t, orders.OrderId("only"), popped.Id)
	assert.Equal(t, 0, ob.BidLevels())
	assert.Nil(t, ob.Lookup("only"))
}

func TestOrderBook_RestingQty(t *testing.T) {
	ob := NewOrderBook("AAPL")
	ob.Enqueue(newOrder("b1", orders.SideBuy, 10000, 10))
	ob.Enqueue(newOrder("b2", orders.SideBuy, 10100, 5))
	assert.Equal(t, orders.Quantity(15), ob.RestingQty(orders.SideBuy))
	assert.Equal(t, orders.Quantity(0), ob.RestingQty(orders.SideSell))
}

func TestOrderBook_NonCrossingEnqueueNeverPanics(t *testing.T) {
	ob := NewOrderBook("AAPL")
	assert.NotPanics(t, func() {
		ob.Enqueue(newOrder("b1", orders.SideBuy, 9000, 10))
		ob.Enqueue(newOrder("a1", orders.SideSell, 9100, 10))
	})
}
