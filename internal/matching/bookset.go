// Package matching implements the price-time priority matching algorithm
// and the per-shard set of order books it runs against.
//
// Architecture: Single-Threaded Core (LMAX Disruptor Pattern)
//
// Matching runs on exactly one goroutine per shard, fed by the sequencer.
// No locks guard the book: determinism and throughput both come from
// confining every mutation to a single thread and replaying the same
// input sequence to get the same output.
package matching

import (
	"fmt"

	"github.com/rishav/order-matching-engine/internal/orderbook"
)

// OrderBookSet is the map from symbol to per-symbol order book owned by a
// shard. Only the symbols configured for this shard are present;
// submissions for any other symbol are rejected at ingress and never
// reach the handler.
type OrderBookSet struct {
	books map[string]*orderbook.OrderBook
}

// NewOrderBookSet creates a book for each owned symbol.
func NewOrderBookSet(symbols []string) *OrderBookSet {
	set := &OrderBookSet{books: make(map[string]*orderbook.OrderBook, len(symbols))}
	for _, symbol := range symbols {
		set.books[symbol] = orderbook.NewOrderBook(symbol)
	}
	return set
}

// Get returns the book for symbol, and false if this shard does not own
// it.
func (s *OrderBookSet) Get(symbol string) (*orderbook.OrderBook, bool) {
	book, ok := s.books[symbol]
	return book, ok
}

// Owns reports whether this shard owns symbol.
func (s *OrderBookSet) Owns(symbol string) bool {
	_, ok := s.books[symbol]
	return ok
}

// Symbols returns all symbols owned by this shard.
func (s *OrderBookSet) Symbols() []string {
	symbols := make([]string, 0, len(s.books))
	for symbol := range s.books {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// String returns a snapshot of every owned book, for debug endpoints.
func (s *OrderBookSet) String() string {
	out := ""
	for symbol, book := range s.books {
		out += fmt.Sprintf("%s:\n%s\n", symbol, book.String())
	}
	return out
}
