package disruptor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishav/order-matching-engine/internal/orders"
)

func TestSequencer_ClaimsMonotonicSequenceNumbers(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 8})
	seq := NewSequencer(rb)

	first, err := seq.Next()
	require.NoError(t, err)
	second, err := seq.Next()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
}

func TestSequencer_ReturnsErrRingFullWhenUnconsumed(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 4})
	seq := NewSequencer(rb)

	order := &orders.Order{Id: "o1", Symbol: "AAPL", RemainingQty: 1, OriginalQty: 1}

	for i := 0; i < 4; i++ {
		s, err := seq.Next()
		require.NoError(t, err)
		seq.Publish(s, order, time.Now().UnixNano())
	}

	_, err := seq.Next()
	assert.ErrorIs(t, err, ErrRingFull)
}

func TestSequencer_FreesSlotsAfterGatingAdvances(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 4})
	seq := NewSequencer(rb)
	order := &orders.Order{Id: "o1", Symbol: "AAPL", RemainingQty: 1, OriginalQty: 1}

	for i := 0; i < 4; i++ {
		s, err := seq.Next()
		require.NoError(t, err)
		seq.Publish(s, order, time.Now().UnixNano())
	}

	rb.gatingSequence = 1

	s, err := seq.Next()
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), s)
}

func TestNewRingBuffer_PanicsOnNonPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() {
		NewRingBuffer(Config{BufferSize: 3})
	})
}

type recordingSink struct {
	mu         sync.Mutex
	processed  []uint64
	endOfBatch []bool
}

func (s *recordingSink) Process(slot *Slot, endOfBatch bool, ringUtilization float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, slot.SequenceNum)
	s.endOfBatch = append(s.endOfBatch, endOfBatch)
}

func (s *recordingSink) snapshot() ([]uint64, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.processed...), append([]bool(nil), s.endOfBatch...)
}

func TestProcessor_ProcessesInOrderAndFlagsEndOfBatch(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 8})
	seq := NewSequencer(rb)
	sink := &recordingSink{}
	proc := NewProcessor(rb, sink, nil, nil)

	order := &orders.Order{Id: "o1", Symbol: "AAPL", RemainingQty: 1, OriginalQty: 1}

	// Publish a contiguous batch of 3 before the consumer can drain any of
	// them, then wait: the first two should see endOfBatch=false and only
	// the third true.
	var seqs []uint64
	for i := 0; i < 3; i++ {
		s, err := seq.Next()
		require.NoError(t, err)
		seqs = append(seqs, s)
	}
	for _, s := range seqs {
		seq.Publish(s, order, time.Now().UnixNano())
	}

	proc.Start()
	defer proc.Shutdown()

	require.Eventually(t, func() bool {
		processed, _ := sink.snapshot()
		return len(processed) == 3
	}, time.Second, time.Millisecond)

	processed, endOfBatch := sink.snapshot()
	assert.Equal(t, []uint64{1, 2, 3}, processed)
	assert.False(t, endOfBatch[0])
	assert.False(t, endOfBatch[1])
	assert.True(t, endOfBatch[2])
}

func TestProcessor_RejectSlotIsDelivered(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 8})
	seq := NewSequencer(rb)
	sink := &recordingSink{}
	proc := NewProcessor(rb, sink, nil, nil)
	proc.Start()
	defer proc.Shutdown()

	s, err := seq.Next()
	require.NoError(t, err)
	seq.PublishReject(s, "malformed payload")

	require.Eventually(t, func() bool {
		processed, _ := sink.snapshot()
		return len(processed) == 1
	}, time.Second, time.Millisecond)
}

type panickingSink struct {
	recordingSink
	panicOnSeq uint64
}

func (s *panickingSink) Process(slot *Slot, endOfBatch bool, ringUtilization float64) {
	if slot.SequenceNum == s.panicOnSeq {
		panic("boom")
	}
	s.recordingSink.Process(slot, endOfBatch, ringUtilization)
}

func TestProcessor_RecoversFromSinkPanicAndKeepsProcessing(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 8})
	seq := NewSequencer(rb)
	sink := &panickingSink{panicOnSeq: 2}

	var recovered interface{}
	var mu sync.Mutex
	proc := NewProcessor(rb, sink, nil, func(r interface{}) {
		mu.Lock()
		defer mu.Unlock()
		recovered = r
	})
	proc.Start()
	defer proc.Shutdown()

	order := &orders.Order{Id: "o1", Symbol: "AAPL", RemainingQty: 1, OriginalQty: 1}
	for i := 0; i < 3; i++ {
		s, err := seq.Next()
		require.NoError(t, err)
		seq.Publish(s, order, time.Now().UnixNano())
	}

	require.Eventually(t, func() bool {
		processed, _ := sink.snapshot()
		return len(processed) == 2 // sequence 2 panicked and was never recorded by the sink
	}, time.Second, time.Millisecond)

	processed, _ := sink.snapshot()
	assert.Equal(t, []uint64{1, 3}, processed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "boom", recovered)
}

func TestRingBuffer_UtilizationRatio(t *testing.T) {
	rb := NewRingBuffer(Config{BufferSize: 8})
	seq := NewSequencer(rb)
	order := &orders.Order{Id: "o1", Symbol: "AAPL", RemainingQty: 1, OriginalQty: 1}

	for i := 0; i < 4; i++ {
		s, _ := seq.Next()
		seq.Publish(s, order, time.Now().UnixNano())
	}

	assert.InDelta(t, 0.5, rb.UtilizationRatio(), 0.001)
}
