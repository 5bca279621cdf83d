package orderbook

import (
	"fmt"
	"strings"

	"github.com/rishav/order-matching-engine/internal/orders"
)

// OrderBook maintains the buy (bid) and sell (ask) sides of one symbol.
//
// Two red-black trees keep each side's distinct price levels sorted: bids
// descending (highest first), asks ascending (lowest first), each giving
// O(1) access to the best price via a cached pointer and O(log P)
// insert/delete over P distinct price levels. Within a level, orders are
// FIFO by arrival via PriceLevel's doubly-linked queue. An id index gives
// O(1) lookup and removal for the matcher.
//
// Invariant: best_bid < best_ask whenever both sides are non-empty. This
// is checked after every mutation that can introduce a new best price.
type OrderBook struct {
	symbol string
	bids   *priceLevelTree // sorted descending (highest price first)
	asks   *priceLevelTree // sorted ascending (lowest price first)
	index  map[orders.OrderId]*OrderNode
}

// NewOrderBook creates a new, empty order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newPriceLevelTree(true),
		asks:   newPriceLevelTree(false),
		index:  make(map[orders.OrderId]*OrderNode),
	}
}

// Symbol returns the symbol this order book is for.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

func (ob *OrderBook) treeFor(side orders.Side) *priceLevelTree {
	if side == orders.SideBuy {
		return ob.bids
	}
	return ob.asks
}

// BestOpposite returns the best (head) price level on the given side, or
// nil if that side is empty. Time complexity: O(1).
func (ob *OrderBook) BestOpposite(side orders.Side) *PriceLevel {
	return ob.treeFor(side).Best()
}

// Enqueue appends a resting order to the tail of its price level,
// creating the level if it does not yet exist, and indexes the order id
// for O(1) lookup. Time complexity: O(log P).
func (ob *OrderBook) Enqueue(order *orders.Order) {
	tree := ob.treeFor(order.Side)

	level := tree.Get(order.LimitPrice)
	if level == nil {
		level = NewPriceLevel(order.LimitPrice)
		tree.Insert(level)
	}

	node := level.Append(order)
	ob.index[order.Id] = node
	ob.checkCross()
}

// PopHead removes and returns the FIFO head of level, deleting the level
// from its tree if it becomes empty. Time complexity: O(1), O(log P) only
// when the level vanishes.
func (ob *OrderBook) PopHead(side orders.Side, level *PriceLevel) *orders.Order {
	order := level.PopFront()
	if order != nil {
		delete(ob.index, order.Id)
	}
	if level.IsEmpty() {
		ob.treeFor(side).Delete(level.Price)
	}
	return order
}

// Remove deletes a resting order from the book by id. Returns false if
// the id is not indexed. Time complexity: O(1), O(log P) if its level
// becomes empty.
func (ob *OrderBook) Remove(id orders.OrderId) bool {
	node, exists := ob.index[id]
	if !exists {
		return false
	}

	level := node.level
	side := node.Order.Side
	level.Remove(node)
	delete(ob.index, id)

	if level.IsEmpty() {
		ob.treeFor(side).Delete(level.Price)
	}
	return true
}

// Lookup returns the resting order with the given id, or nil.
func (ob *OrderBook) Lookup(id orders.OrderId) *orders.Order {
	node, exists := ob.index[id]
	if !exists {
		return nil
	}
	return node.Order
}

// GetBestBid returns the highest bid price level, or nil if no bids.
func (ob *OrderBook) GetBestBid() *PriceLevel { return ob.bids.Best() }

// GetBestAsk returns the lowest ask price level, or nil if no asks.
func (ob *OrderBook) GetBestAsk() *PriceLevel { return ob.asks.Best() }

// GetSpread returns the difference between best ask and best bid.
// Returns 0 if either side is empty.
func (ob *OrderBook) GetSpread() orders.Price {
	bestBid := ob.GetBestBid()
	bestAsk := ob.GetBestAsk()
	if bestBid == nil || bestAsk == nil {
		return 0
	}
	return bestAsk.Price - bestBid.Price
}

// GetMidPrice returns the midpoint between best bid and ask. Returns 0 if
// either side is empty.
func (ob *OrderBook) GetMidPrice() orders.Price {
	bestBid := ob.GetBestBid()
	bestAsk := ob.GetBestAsk()
	if bestBid == nil || bestAsk == nil {
		return 0
	}
	return (bestBid.Price + bestAsk.Price) / 2
}

// BidLevels returns the number of distinct bid price levels.
func (ob *OrderBook) BidLevels() int { return ob.bids.Size() }

// AskLevels returns the number of distinct ask price levels.
func (ob *OrderBook) AskLevels() int { return ob.asks.Size() }

// TotalOrders returns the number of resting orders indexed in the book.
func (ob *OrderBook) TotalOrders() int { return len(ob.index) }

// GetBidDepth returns the top N bid price levels, best first. If levels
// <= 0, returns all levels.
func (ob *OrderBook) GetBidDepth(levels int) []*PriceLevel {
	return ob.getDepth(ob.bids, levels)
}

// GetAskDepth returns the top N ask price levels, best first. If levels
// <= 0, returns all levels.
func (ob *OrderBook) GetAskDepth(levels int) []*PriceLevel {
	return ob.getDepth(ob.asks, levels)
}

func (ob *OrderBook) getDepth(tree *priceLevelTree, maxLevels int) []*PriceLevel {
	result := make([]*PriceLevel, 0)
	count := 0

	tree.ForEach(func(level *PriceLevel) bool {
		result = append(result, level)
		count++
		if maxLevels > 0 && count >= maxLevels {
			return false
		}
		return true
	})

	return result
}

// RestingQty sums resting quantity across every price level on one side,
// used by the metrics gauge sampler at endOfBatch.
func (ob *OrderBook) RestingQty(side orders.Side) orders.Quantity {
	var total orders.Quantity
	ob.treeFor(side).ForEach(func(level *PriceLevel) bool {
		total += level.TotalQty
		return true
	})
	return total
}

// checkCross is the cheap O(1) cross-check run after every enqueue: the
// book must never observe best_bid >= best_ask while both sides are
// non-empty. A violation means the matcher failed to fully cross an
// aggressor before it rested, which is a matcher bug rather than a client
// error, so it panics instead of silently corrupting book state.
func (ob *OrderBook) checkCross() {
	bb := ob.bids.Best()
	ba := ob.asks.Best()
	if bb != nil && ba != nil && bb.Price >= ba.Price {
		panic("orderbook: best_bid >= best_ask after enqueue")
	}
}

// String returns a human-readable snapshot of the top of book, for logs
// and debug endpoints.
func (ob *OrderBook) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s Order Book ===\n", ob.symbol))

	asks := ob.GetAskDepth(5)
	sb.WriteString("ASKS:\n")
	for i := len(asks) - 1; i >= 0; i-- {
		level := asks[i]
		sb.WriteString(fmt.Sprintf("  %s: %d shares (%d orders)\n",
			orders.FormatPrice(level.Price), level.TotalQty, level.Count()))
	}

	if spread := ob.GetSpread(); spread > 0 {
		sb.WriteString(fmt.Sprintf("--- Spread: %s ---\n", orders.FormatPrice(spread)))
	} else {
		sb.WriteString("--- No Spread ---\n")
	}

	bids := ob.GetBidDepth(5)
	sb.WriteString("BIDS:\n")
	for _, level := range bids {
		sb.WriteString(fmt.Sprintf("  %s: %d shares (%d orders)\n",
			orders.FormatPrice(level.Price), level.TotalQty, level.Count()))
	}

	return sb.String()
}
