package disruptor

import (
	"runtime"
	"sync/atomic"

	"github.com/rishav/order-matching-engine/internal/orders"
)

// Sequencer coordinates multi-producer access to the ring buffer using
// atomic CAS operations on the producer cursor.
type Sequencer struct {
	rb *RingBuffer
}

// NewSequencer creates a new sequencer for the given ring buffer.
func NewSequencer(rb *RingBuffer) *Sequencer {
	return &Sequencer{rb: rb}
}

// Next claims the next sequence number for writing. Lock-free and
// multi-producer safe via CAS. If the buffer is full, it spins briefly
// (~100us) and then returns ErrRingFull; the producer never blocks
// unconditionally.
func (s *Sequencer) Next() (uint64, error) {
	const maxSpins = 10000

	for spins := 0; spins < maxSpins; spins++ {
		current := atomic.LoadUint64(&s.rb.cursor)
		next := current + 1

		cachedGating := atomic.LoadUint64(&s.rb.gatingSequence)
		available := cachedGating + s.rb.bufferSize
		if next > available {
			runtime.Gosched()
			continue
		}

		if atomic.CompareAndSwapUint64(&s.rb.cursor, current, next) {
			return next, nil
		}
	}

	return 0, ErrRingFull
}

// Publish writes an admitted order into the claimed slot and advances
// the slot's availability marker. All writes to the slot happen before
// the atomic store, which acts as a release barrier making them visible
// to the consumer.
func (s *Sequencer) Publish(seq uint64, order *orders.Order, admitTimeNanos int64) {
	slot := &s.rb.slots[seq&s.rb.indexMask]
	slot.Order = order
	slot.AdmitTimeNanos = admitTimeNanos
	slot.Reject = false
	slot.RejectReason = ""
	atomic.StoreUint64(&slot.SequenceNum, seq)
}

// PublishReject marks a claimed slot as rejected: the producer could not
// populate it (e.g. a malformed payload), but per the sequencer's
// never-drop-silently contract the slot still publishes so the handler
// can observe and count the rejection.
func (s *Sequencer) PublishReject(seq uint64, reason string) {
	slot := &s.rb.slots[seq&s.rb.indexMask]
	slot.Order = nil
	slot.Reject = true
	slot.RejectReason = reason
	atomic.StoreUint64(&slot.SequenceNum, seq)
}
