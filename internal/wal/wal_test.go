package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/orders"
)

func openTestWAL(t *testing.T, sizeBytes int64) *WAL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(Config{Path: path, SizeBytes: sizeBytes}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWAL_AppendAdvancesOffset(t *testing.T) {
	w := openTestWAL(t, 4096)

	order := &orders.Order{Id: "o1", Symbol: "AAPL", RemainingQty: 10, OriginalQty: 10}
	payload := EncodeOrder(order)

	before := w.Offset()
	err := w.Append(RecordAdmittedOrder, payload)
	require.NoError(t, err)
	assert.Greater(t, w.Offset(), before)
}

func TestWAL_RoundTripReplay(t *testing.T) {
	w := openTestWAL(t, 4096)

	order := &orders.Order{Id: "o1", Symbol: "AAPL", Side: orders.SideBuy, Type: orders.OrderTypeLimit,
		LimitPrice: 10000, OriginalQty: 10, RemainingQty: 10, ArrivalSequence: 1, Status: orders.OrderStatusNew}
	event := &orders.MatchEvent{AggressorId: "o1", MakerId: "o2", Symbol: "AAPL", TradePrice: 10000, TradeQty: 5, TradeSequence: 1}

	require.NoError(t, w.Append(RecordAdmittedOrder, EncodeOrder(order)))
	require.NoError(t, w.Append(RecordMatchEvent, EncodeMatchEvent(event)))

	records := w.Records()
	require.Len(t, records, 2)

	decodedOrder, err := DecodeOrder(records[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, order.Id, decodedOrder.Id)
	assert.Equal(t, order.LimitPrice, decodedOrder.LimitPrice)

	decodedEvent, err := DecodeMatchEvent(records[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, event.TradeQty, decodedEvent.TradeQty)
	assert.Equal(t, event.TradeSequence, decodedEvent.TradeSequence)
}

func TestWAL_SaturatesWhenRegionFull(t *testing.T) {
	w := openTestWAL(t, 64)

	payload := make([]byte, 40)
	err := w.Append(RecordAdmittedOrder, payload)
	require.NoError(t, err)

	err = w.Append(RecordAdmittedOrder, payload)
	assert.ErrorIs(t, err, ErrSaturated)
	assert.Equal(t, StateSaturated, w.State())
	assert.Equal(t, uint64(1), w.SaturatedTotal())

	// Further appends keep counting without panicking or blocking.
	err = w.Append(RecordAdmittedOrder, payload)
	assert.ErrorIs(t, err, ErrSaturated)
	assert.Equal(t, uint64(2), w.SaturatedTotal())
}

func TestWAL_ForceSucceedsOnOpenMapping(t *testing.T) {
	w := openTestWAL(t, 4096)
	require.NoError(t, w.Append(RecordAdmittedOrder, []byte("payload")))
	assert.NoError(t, w.Force())
	assert.Equal(t, uint64(0), w.ForceFailures())
}

func TestReadAll_StopsAtZeroLengthPrefix(t *testing.T) {
	data := make([]byte, 64)
	records := ReadAll(data)
	assert.Empty(t, records)
}
