// Package orderbook implements the per-symbol limit order book: a
// descending-keyed bids side, an ascending-keyed asks side, and an
// order-id index, each following price-time priority.
package orderbook

import (
	"github.com/rishav/order-matching-engine/internal/orders"
)

// OrderNode is a node in the doubly-linked FIFO queue of orders resting at
// one price level. A doubly-linked list gives O(1) removal from anywhere
// in the queue, which the order-id index relies on.
type OrderNode struct {
	Order *orders.Order
	prev  *OrderNode
	next  *OrderNode
	level *PriceLevel // back-pointer for O(1) removal
}

// Next returns the next node in the queue.
func (n *OrderNode) Next() *OrderNode {
	return n.next
}

// PriceLevel holds all orders resting at a single price, FIFO by arrival.
// TotalQty tracks the sum of resting quantity so depth queries never need
// to walk the queue.
type PriceLevel struct {
	Price    orders.Price
	head     *OrderNode
	tail     *OrderNode
	count    int
	TotalQty orders.Quantity
}

// NewPriceLevel creates a new empty price level.
func NewPriceLevel(price orders.Price) *PriceLevel {
	return &PriceLevel{
		Price: price,
	}
}

// Count returns the number of orders at this price level.
func (pl *PriceLevel) Count() int {
	return pl.count
}

// IsEmpty returns true if there are no orders at this level.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.count == 0
}

// Head returns the first order node (highest time priority at this price).
func (pl *PriceLevel) Head() *OrderNode {
	return pl.head
}

// Append adds an order to the tail of the queue (lowest priority at this
// price). Returns the node so the caller can index it for O(1) lookup.
// Time complexity: O(1)
func (pl *PriceLevel) Append(order *orders.Order) *OrderNode {
	node := &OrderNode{
		Order: order,
		level: pl,
	}

	if pl.tail == nil {
		pl.head = node
		pl.tail = node
	} else {
		node.prev = pl.tail
		pl.tail.next = node
		pl.tail = node
	}

	pl.count++
	pl.TotalQty += order.RemainingQty
	return node
}

// Remove removes a node from the queue.
// Time complexity: O(1).
func (pl *PriceLevel) Remove(node *OrderNode) {
	if node == nil {
		return
	}

	pl.TotalQty -= node.Order.RemainingQty
	pl.count--

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		pl.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		pl.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	node.level = nil
}

// PopFront removes and returns the FIFO head order, or nil if the level is
// empty. Time complexity: O(1).
func (pl *PriceLevel) PopFront() *orders.Order {
	if pl.head == nil {
		return nil
	}

	node := pl.head
	order := node.Order

	pl.TotalQty -= order.RemainingQty
	pl.count--

	pl.head = node.next
	if pl.head != nil {
		pl.head.prev = nil
	} else {
		pl.tail = nil
	}

	node.next = nil
	node.level = nil

	return order
}

// UpdateQuantity adjusts TotalQty by delta, called after a partial fill on
// an order that stays resting in this level.
func (pl *PriceLevel) UpdateQuantity(delta orders.Quantity) {
	pl.TotalQty += delta
}

// Orders returns a snapshot slice of all orders at this level. Allocates;
// used only by depth/debug queries, never on the matching hot path.
func (pl *PriceLevel) Orders() []*orders.Order {
	result := make([]*orders.Order, 0, pl.count)
	for node := pl.head; node != nil; node = node.next {
		result = append(result, node.Order)
	}
	return result
}
