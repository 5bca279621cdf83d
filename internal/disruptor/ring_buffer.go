// Package disruptor implements the sequencer: a lock-free,
// multi-producer, single-consumer ring buffer that hands admitted
// orders from ingress workers to the event handler in publication order.
//
// The Disruptor pattern achieves high throughput through:
// 1. Lock-free multi-producer coordination using CAS operations
// 2. A pre-allocated ring buffer to eliminate per-event GC pressure
// 3. Cache-aligned slots to prevent false sharing
// 4. A single-threaded consumer for deterministic processing
//
// Reference: https://lmax-exchange.github.io/disruptor/
package disruptor

import (
	"errors"

	"github.com/rishav/order-matching-engine/internal/orders"
)

// Slot is a single pre-allocated ring buffer entry. Cache-aligned to 64
// bytes to prevent false sharing between producer and consumer cores.
type Slot struct {
	// SequenceNum is the availability marker. The slot is ready for the
	// consumer once this equals the slot's own sequence number.
	SequenceNum uint64

	// Order is the admitted order, populated by the producer. Nil when
	// Reject is true.
	Order *orders.Order

	// AdmitTimeNanos is the wall-clock Unix timestamp (ns) stamped by the
	// producer at admission, the start of the end-to-end latency
	// measurement recorded in me_match_duration_seconds. It is not a
	// monotonic clock reading, so a wall-clock step between admission and
	// handling skews that one measurement.
	AdmitTimeNanos int64

	// Reject marks a slot the producer could not populate (for instance,
	// a malformed payload discovered after the slot was already
	// claimed). The handler observes it and counts a rejection instead
	// of running the matching pipeline.
	Reject       bool
	RejectReason string

	_ [16]byte // padding toward a 64-byte cache line
}

// RingBuffer is a lock-free, multi-producer, single-consumer circular
// array of pre-allocated slots.
type RingBuffer struct {
	bufferSize uint64
	indexMask  uint64
	slots      []Slot

	cursor         uint64 // highest claimed sequence (multi-producer, CAS)
	consumerCursor uint64 // set to 1 at construction and never advanced; the processor tracks its position locally
	gatingSequence uint64 // highest consumed sequence

	_ [40]byte
}

// Config holds ring buffer configuration.
type Config struct {
	// BufferSize is the number of slots in the ring buffer. Must be a
	// power of two (default 131072 per the sequencer's spec).
	BufferSize uint64
}

// DefaultConfig returns the spec's default ring buffer size.
func DefaultConfig() Config {
	return Config{BufferSize: 131072}
}

// NewRingBuffer creates a new ring buffer. Panics if BufferSize is not a
// power of two; this is a startup-time configuration error, not a
// runtime condition.
func NewRingBuffer(config Config) *RingBuffer {
	if config.BufferSize == 0 || (config.BufferSize&(config.BufferSize-1)) != 0 {
		panic("disruptor: BufferSize must be a power of 2")
	}

	return &RingBuffer{
		bufferSize:     config.BufferSize,
		indexMask:      config.BufferSize - 1,
		slots:          make([]Slot, config.BufferSize),
		cursor:         0,
		consumerCursor: 1,
		gatingSequence: 0,
	}
}

// BufferSize returns the number of slots in the ring.
func (rb *RingBuffer) BufferSize() uint64 {
	return rb.bufferSize
}

// UtilizationRatio reports the fraction of the ring currently occupied,
// for the me_ringbuffer_utilization_ratio gauge. Always in [0,1].
func (rb *RingBuffer) UtilizationRatio() float64 {
	occupied := rb.cursor - rb.gatingSequence
	return float64(occupied) / float64(rb.bufferSize)
}

// ErrRingFull is returned when the ring buffer has no free slots after
// the sequencer's spin budget is exhausted.
var ErrRingFull = errors.New("disruptor: ring buffer full")
