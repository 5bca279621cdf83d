// Package handler implements the event handler: the sole mutator of the
// order book set, the write-ahead log, and the publisher. It runs on the
// sequencer's single consumer goroutine; every field it touches is
// thread-confined except the metrics registry, which is internally
// synchronized.
package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/disruptor"
	"github.com/rishav/order-matching-engine/internal/matching"
	"github.com/rishav/order-matching-engine/internal/metrics"
	"github.com/rishav/order-matching-engine/internal/orders"
	"github.com/rishav/order-matching-engine/internal/publisher"
	"github.com/rishav/order-matching-engine/internal/wal"
)

// Handler runs the per-order pipeline: validate, match, append to the
// log, publish, and record latency. It owns the arrival_sequence
// counter; callers never set it.
type Handler struct {
	shardID string
	books   *matching.OrderBookSet
	matcher *matching.Matcher
	log     *wal.WAL
	pub     *publisher.Publisher
	metrics *metrics.ShardRegistry
	logger  *zap.Logger

	arrivalSequence uint64
}

// New builds a handler over the given book set, log, and publisher.
func New(shardID string, books *matching.OrderBookSet, log *wal.WAL, pub *publisher.Publisher, reg *metrics.ShardRegistry, logger *zap.Logger) *Handler {
	return &Handler{
		shardID: shardID,
		books:   books,
		matcher: matching.NewMatcher(),
		log:     log,
		pub:     pub,
		metrics: reg,
		logger:  logger,
	}
}

// Process implements disruptor.Sink: it dispatches a published slot to
// either the admitted-order pipeline or the reject path, depending on
// whether the producer marked the slot REJECT.
func (h *Handler) Process(slot *disruptor.Slot, endOfBatch bool, ringUtilization float64) {
	if slot.Reject {
		h.ProcessReject(slot.RejectReason, endOfBatch, ringUtilization)
		return
	}
	h.ProcessOrder(slot.Order, slot.AdmitTimeNanos, endOfBatch, ringUtilization)
}

// ProcessOrder runs the full per-event pipeline for one admitted order.
// admitTimeNanos is the wall-clock Unix timestamp (ns) stamped by the
// sequencer producer; it anchors the end-to-end latency recorded on
// me_match_duration_seconds. A zero admitTimeNanos measures from entry to
// this method instead. endOfBatch must be true only on the last event of
// a contiguous sequencer batch.
func (h *Handler) ProcessOrder(order *orders.Order, admitTimeNanos int64, endOfBatch bool, ringUtilization float64) {
	start := time.Now()
	if admitTimeNanos > 0 {
		start = time.Unix(0, admitTimeNanos)
	}
	defer func() {
		h.metrics.MatchDuration.WithLabelValues(h.shardID).Observe(time.Since(start).Seconds())
		if endOfBatch {
			h.onEndOfBatch(ringUtilization)
		}
	}()

	h.arrivalSequence++
	order.ArrivalSequence = h.arrivalSequence

	validationStart := time.Now()
	reason, ok := h.validate(order)
	h.metrics.OrderValidationDuration.WithLabelValues(h.shardID).Observe(time.Since(validationStart).Seconds())
	if !ok {
		order.Status = orders.OrderStatusRejected
		h.metrics.OrdersRejectedTotal.WithLabelValues(h.shardID, "validation").Inc()
		h.logger.Warn("order rejected by handler validation",
			zap.String("orderId", string(order.Id)),
			zap.String("reason", reason))
		return
	}

	order.Status = orders.OrderStatusNew
	h.metrics.OrdersReceivedTotal.WithLabelValues(h.shardID, order.Side.String()).Inc()

	book, _ := h.books.Get(order.Symbol)

	matchStart := time.Now()
	fills := h.matcher.Cross(order, book)
	h.metrics.MatchingAlgorithmDuration.WithLabelValues(h.shardID).Observe(time.Since(matchStart).Seconds())

	if order.RemainingQty > 0 {
		insertionStart := time.Now()
		h.matcher.EnqueueResidual(order, book)
		h.metrics.OrderbookInsertionDuration.WithLabelValues(h.shardID).Observe(time.Since(insertionStart).Seconds())
	}

	if order.IsFilled() {
		order.Status = orders.OrderStatusFilled
	} else if len(fills) > 0 {
		order.Status = orders.OrderStatusPartiallyFilled
	}

	h.appendAndPublish(order, fills)
}

// ProcessReject handles a slot the producer marked REJECT: a malformed
// payload that could not be turned into a valid order before the slot
// was published. It is counted and skipped; it never poisons the
// pipeline.
func (h *Handler) ProcessReject(reason string, endOfBatch bool, ringUtilization float64) {
	h.metrics.OrdersRejectedTotal.WithLabelValues(h.shardID, "producer_reject").Inc()
	h.logger.Warn("sequencer slot rejected before handler", zap.String("reason", reason))
	if endOfBatch {
		h.onEndOfBatch(ringUtilization)
	}
}

func (h *Handler) validate(order *orders.Order) (string, bool) {
	if !h.books.Owns(order.Symbol) {
		return "unknown symbol", false
	}
	if order.RemainingQty <= 0 {
		return "non-positive quantity", false
	}
	if order.Type == orders.OrderTypeLimit && order.LimitPrice <= 0 {
		return "non-positive limit price for LIMIT order", false
	}
	switch order.Side {
	case orders.SideBuy, orders.SideSell:
	default:
		return "invalid side", false
	}
	switch order.Type {
	case orders.OrderTypeLimit, orders.OrderTypeMarket:
	default:
		return "invalid type", false
	}
	return "", true
}

func (h *Handler) appendAndPublish(order *orders.Order, fills orders.MatchResultSet) {
	walStart := time.Now()
	if err := h.log.Append(wal.RecordAdmittedOrder, wal.EncodeOrder(order)); err != nil {
		h.metrics.WALSaturatedTotal.WithLabelValues(h.shardID).Inc()
	}
	for i := range fills {
		if err := h.log.Append(wal.RecordMatchEvent, wal.EncodeMatchEvent(&fills[i])); err != nil {
			h.metrics.WALSaturatedTotal.WithLabelValues(h.shardID).Inc()
		}
	}
	h.metrics.WALAppendDuration.WithLabelValues(h.shardID).Observe(time.Since(walStart).Seconds())

	if len(fills) > 0 {
		h.metrics.MatchesTotal.WithLabelValues(h.shardID).Add(float64(len(fills)))
	}
	for i := range fills {
		h.pub.Emit(fills[i])
	}
}

// onEndOfBatch forces the log and refreshes the saturation gauges. This
// is the only place costly, periodic work runs: once per contiguous
// sequencer batch, never per event.
func (h *Handler) onEndOfBatch(ringUtilization float64) {
	if err := h.log.Force(); err != nil {
		h.metrics.WALForceFailures.WithLabelValues(h.shardID).Inc()
	}

	h.metrics.RingBufferUtilization.WithLabelValues(h.shardID).Set(ringUtilization)

	var bidQty, askQty orders.Quantity
	var bidLevels, askLevels int
	for _, symbol := range h.books.Symbols() {
		book, ok := h.books.Get(symbol)
		if !ok {
			continue
		}
		bidQty += book.RestingQty(orders.SideBuy)
		askQty += book.RestingQty(orders.SideSell)
		bidLevels += book.BidLevels()
		askLevels += book.AskLevels()
	}
	h.metrics.OrderbookDepth.WithLabelValues(h.shardID, "BUY").Set(float64(bidQty))
	h.metrics.OrderbookDepth.WithLabelValues(h.shardID, "SELL").Set(float64(askQty))
	h.metrics.OrderbookPriceLevels.WithLabelValues(h.shardID, "BUY").Set(float64(bidLevels))
	h.metrics.OrderbookPriceLevels.WithLabelValues(h.shardID, "SELL").Set(float64(askLevels))
}

// SeedOrder inserts an order directly into the book as a resting order,
// bypassing the sequencer, matcher, WAL, and publisher entirely. Used
// only by the ingress seed surface for test setup.
func (h *Handler) SeedOrder(order *orders.Order) (string, bool) {
	if !h.books.Owns(order.Symbol) {
		return "unknown symbol", false
	}
	if order.RemainingQty <= 0 {
		return "non-positive quantity", false
	}
	start := time.Now()
	book, _ := h.books.Get(order.Symbol)
	order.Status = orders.OrderStatusNew
	book.Enqueue(order)
	h.metrics.OrderbookInsertionDuration.WithLabelValues(h.shardID).Observe(time.Since(start).Seconds())
	return "", true
}

// Shutdown forces the log and flushes the publisher with a small bounded
// deadline, the last two steps of the shard's graceful shutdown
// sequence.
func (h *Handler) Shutdown() {
	if err := h.log.Force(); err != nil {
		h.metrics.WALForceFailures.WithLabelValues(h.shardID).Inc()
	}
	h.pub.Shutdown(2 * time.Second)
}
