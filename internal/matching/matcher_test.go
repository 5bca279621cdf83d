package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishav/order-matching-engine/internal/orderbook"
	"github.com/rishav/order-matching-engine/internal/orders"
)

func limitOrder(id string, side orders.Side, price, qty int64) *orders.Order {
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

func marketOrder(id string, side orders.Side, qty int64) *orders.Order {
	return &orders.Order{
		Id:           orders.OrderId(id),
		Symbol:       "AAPL",
		Side:         side,
		Type:         orders.OrderTypeMarket,
		OriginalQty:  orders.Quantity(qty),
		RemainingQty: orders.Quantity(qty),
		Status:       orders.OrderStatusNew,
	}
}

func TestCross_NoRestingOrdersProducesNoFills(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	m := NewMatcher()

	aggressor := limitOrder("buy1", orders.SideBuy, 10000, 10)
	fills := m.Cross(aggressor, book)

	assert.Empty(t, fills)
	assert.Equal(t, orders.Quantity(10), aggressor.RemainingQty)
}

func TestCross_FullFillAgainstSingleMaker(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	book.Enqueue(limitOrder("sell1", orders.SideSell, 10000, 10))

	m := NewMatcher()
	aggressor := limitOrder("buy1", orders.SideBuy, 10000, 10)
	fills := m.Cross(aggressor, book)

	require.Len(t, fills, 1)
	assert.Equal(t, orders.Quantity(10), fills[0].TradeQty)
	assert.Equal(t, orders.Price(10000), fills[0].TradePrice)
	assert.Equal(t, orders.Quantity(0), aggressor.RemainingQty)
	assert.Equal(t, 0, book.AskLevels())
}

func TestCross_PartialFillLeavesMakerResting(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	book.Enqueue(limitOrder("sell1", orders.SideSell, 10000, 20))

	m := NewMatcher()
	aggressor := limitOrder("buy1", orders.SideBuy, 10000, 5)
	fills := m.Cross(aggressor, book)

	require.Len(t, fills, 1)
	assert.Equal(t, orders.Quantity(5), fills[0].TradeQty)
	assert.Equal(t, orders.Quantity(0), aggressor.RemainingQty)

	maker := book.Lookup("sell1")
	require.NotNil(t, maker)
	assert.Equal(t, orders.Quantity(15), maker.RemainingQty)
	assert.Equal(t, orders.OrderStatusPartiallyFilled, maker.Status)
}

func TestCross_PriceTimePriority(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	book.Enqueue(limitOrder("sell-high", orders.SideSell, 10200, 10))
	book.Enqueue(limitOrder("sell-low", orders.SideSell, 10100, 10))
	book.Enqueue(limitOrder("sell-low-2nd", orders.SideSell, 10100, 10))

	m := NewMatcher()
	aggressor := limitOrder("buy1", orders.SideBuy, 10200, 15)
	fills := m.Cross(aggressor, book)

	require.Len(t, fills, 2)
	assert.Equal(t, orders.OrderId("sell-low"), fills[0].MakerId)
	assert.Equal(t, orders.Quantity(10), fills[0].TradeQty)
	assert.Equal(t, orders.OrderId("sell-low-2nd"), fills[1].MakerId)
	assert.Equal(t, orders.Quantity(5), fills[1].TradeQty)
}

func TestCross_StopsWhenPriceIncompatible(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	book.Enqueue(limitOrder("sell1", orders.SideSell, 10500, 10))

	m := NewMatcher()
	aggressor := limitOrder("buy1", orders.SideBuy, 10000, 10)
	fills := m.Cross(aggressor, book)

	assert.Empty(t, fills)
	assert.Equal(t, orders.Quantity(10), aggressor.RemainingQty)
}

func TestCross_MarketOrderCrossesAnyPrice(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	book.Enqueue(limitOrder("sell1", orders.SideSell, 50000, 10))

	m := NewMatcher()
	aggressor := marketOrder("buy1", orders.SideBuy, 10)
	fills := m.Cross(aggressor, book)

	require.Len(t, fills, 1)
	assert.Equal(t, orders.Price(50000), fills[0].TradePrice)
}

func TestEnqueueResidual_LimitRests(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	m := NewMatcher()

	aggressor := limitOrder("buy1", orders.SideBuy, 10000, 10)
	m.Cross(aggressor, book)
	m.EnqueueResidual(aggressor, book)

	assert.Equal(t, 1, book.BidLevels())
	assert.NotNil(t, book.Lookup("buy1"))
}

func TestEnqueueResidual_MarketNeverRests(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	m := NewMatcher()

	aggressor := marketOrder("buy1", orders.SideBuy, 10)
	m.Cross(aggressor, book)
	m.EnqueueResidual(aggressor, book)

	assert.Equal(t, 0, book.BidLevels())
	assert.Nil(t, book.Lookup("buy1"))
}

func TestCross_TradeSequenceMonotonic(t *testing.T) {
	book := orderbook.NewOrderBook("AAPL")
	book.Enqueue(limitOrder("sell1", orders.SideSell, 10000, 5))
	book.Enqueue(limitOrder("sell2", orders.SideSell, 10000, 5))

	m := NewMatcher()
	aggressor := limitOrder("buy1", orders.SideBuy, 10000, 10)
	fills := m.Cross(aggressor, book)

	require.Len(t, fills, 2)
	assert.Less(t, fills[0].TradeSequence, fills[1].TradeSequence)
}

func TestOrderBookSet_OwnsAndGet(t *testing.T) {
	set := NewOrderBookSet([]string{"AAPL", "MSFT"})

	assert.True(t, set.Owns("AAPL"))
	assert.False(t, set.Owns("TSLA"))

	book, ok := set.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", book.Symbol())

	_, ok = set.Get("TSLA")
	assert.False(t, ok)
}
