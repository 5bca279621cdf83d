package disruptor

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sink is the consumer-side interface the event handler implements. The
// processor hands it each published slot in order, along with whether
// this slot ends the current contiguous batch.
type Sink interface {
	Process(slot *Slot, endOfBatch bool, ringUtilization float64)
}

// Processor is the sequencer's single consumer: it spin-waits for each
// published slot in order, hands it to the sink, and detects endOfBatch
// by peeking at whether the next slot is already available without
// blocking.
type Processor struct {
	rb      *RingBuffer
	sink    Sink
	logger  *zap.Logger
	onPanic func(recovered interface{})
	running atomic.Bool

	shutdownCh   chan struct{}
	shutdownDone chan struct{}
}

// NewProcessor creates a consumer over rb that drives sink. logger may be
// nil. onPanic, if non-nil, is called with the recovered value whenever
// sink.Process panics, so the caller can count the event as a rejection
// on its own metrics; the processor itself never crashes on a panic from
// a single event.
func NewProcessor(rb *RingBuffer, sink Sink, logger *zap.Logger, onPanic func(recovered interface{})) *Processor {
	return &Processor{
		rb:           rb,
		sink:         sink,
		logger:       logger,
		onPanic:      onPanic,
		shutdownCh:   make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
}

// Start launches the consumer loop on its own goroutine.
func (p *Processor) Start() {
	p.running.Store(true)
	go p.consumeLoop()
}

// consumeLoop maintains determinism by processing slots strictly in
// sequence order, relying on the single-consumer invariant for
// correctness; no locks guard the book, WAL, or publisher.
func (p *Processor) consumeLoop() {
	defer close(p.shutdownDone)

	nextSequence := uint64(1)

	for p.running.Load() || p.peekAvailable(nextSequence) {
		index := nextSequence & p.rb.indexMask
		slot := &p.rb.slots[index]

		for {
			if atomic.LoadUint64(&slot.SequenceNum) == nextSequence {
				break
			}
			select {
			case <-p.shutdownCh:
				return
			default:
				runtime.Gosched()
			}
		}

		endOfBatch := !p.peekAvailable(nextSequence + 1)
		p.processSlot(slot, endOfBatch, p.rb.UtilizationRatio())

		atomic.StoreUint64(&p.rb.gatingSequence, nextSequence)
		nextSequence++
	}
}

// processSlot hands one slot to the sink behind a panic recovery
// boundary: no single bad event may take down the consumer goroutine.
// A recovered panic is logged and handed to onPanic, but the loop above
// still advances the gating sequence for this slot exactly as if
// sink.Process had returned normally.
func (p *Processor) processSlot(slot *Slot, endOfBatch bool, ringUtilization float64) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Error("event handler panic recovered, event counted as rejection",
					zap.Any("panic", r))
			}
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
	}()
	p.sink.Process(slot, endOfBatch, ringUtilization)
}

// peekAvailable reports whether seq's slot has already been published,
// without blocking. Used only to detect the end of a contiguous batch.
func (p *Processor) peekAvailable(seq uint64) bool {
	index := seq & p.rb.indexMask
	return atomic.LoadUint64(&p.rb.slots[index].SequenceNum) == seq
}

// Shutdown stops the consumer loop and waits for it to exit. Slots that
// are already published keep being processed until the loop reaches one
// that is not, so shutdown lands at the end of a contiguous batch, never
// mid-slot.
func (p *Processor) Shutdown() {
	p.running.Store(false)
	close(p.shutdownCh)
	<-p.shutdownDone
}
