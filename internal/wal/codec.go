package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/rishav/order-matching-engine/internal/orders"
)

// EncodeOrder serializes an admitted order for the WAL. Strings are
// length-prefixed with a 2-byte count; every other field is fixed-width,
// so the encoding never allocates beyond the single returned slice.
func EncodeOrder(o *orders.Order) []byte {
	buf := make([]byte, 0, 2+len(o.Id)+2+len(o.Symbol)+1+1+8+8+8+8+1)
	buf = appendString(buf, string(o.Id))
	buf = appendString(buf, o.Symbol)
	buf = append(buf, byte(o.Side), byte(o.Type))
	buf = appendInt64(buf, int64(o.LimitPrice))
	buf = appendInt64(buf, int64(o.OriginalQty))
	buf = appendInt64(buf, int64(o.RemainingQty))
	buf = appendUint64(buf, o.ArrivalSequence)
	buf = append(buf, byte(o.Status))
	return buf
}

// DecodeOrder is the inverse of EncodeOrder.
func DecodeOrder(payload []byte) (*orders.Order, error) {
	r := &reader{buf: payload}
	id, err := r.readString()
	if err != nil {
		return nil, err
	}
	symbol, err := r.readString()
	if err != nil {
		return nil, err
	}
	side, err := r.readByte()
	if err != nil {
		return nil, err
	}
	typ, err := r.readByte()
	if err != nil {
		return nil, err
	}
	limitPrice, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	originalQty, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	remainingQty, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	arrivalSeq, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	status, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return &orders.Order{
		Id:              orders.OrderId(id),
		Symbol:          symbol,
		Side:            orders.Side(side),
		Type:            orders.OrderType(typ),
		LimitPrice:      orders.Price(limitPrice),
		OriginalQty:     orders.Quantity(originalQty),
		RemainingQty:    orders.Quantity(remainingQty),
		ArrivalSequence: arrivalSeq,
		Status:          orders.OrderStatus(status),
	}, nil
}

// EncodeMatchEvent serializes a match event for the WAL.
func EncodeMatchEvent(m *orders.MatchEvent) []byte {
	buf := make([]byte, 0, 2+len(m.AggressorId)+2+len(m.MakerId)+2+len(m.Symbol)+8+8+8)
	buf = appendString(buf, string(m.AggressorId))
	buf = appendString(buf, string(m.MakerId))
	buf = appendString(buf, m.Symbol)
	buf = appendInt64(buf, int64(m.TradePrice))
	buf = appendInt64(buf, int64(m.TradeQty))
	buf = appendUint64(buf, m.TradeSequence)
	return buf
}

// DecodeMatchEvent is the inverse of EncodeMatchEvent.
func DecodeMatchEvent(payload []byte) (*orders.MatchEvent, error) {
	r := &reader{buf: payload}
	aggressorID, err := r.readString()
	if err != nil {
		return nil, err
	}
	makerID, err := r.readString()
	if err != nil {
		return nil, err
	}
	symbol, err := r.readString()
	if err != nil {
		return nil, err
	}
	tradePrice, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	tradeQty, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	tradeSeq, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	return &orders.MatchEvent{
		AggressorId:   orders.OrderId(aggressorID),
		MakerId:       orders.OrderId(makerID),
		Symbol:        symbol,
		TradePrice:    orders.Price(tradePrice),
		TradeQty:      orders.Quantity(tradeQty),
		TradeSequence: tradeSeq,
	}, nil
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func appendInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) readString() (string, error) {
	if r.pos+2 > len(r.buf) {
		return "", fmt.Errorf("wal: truncated string length")
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	if r.pos+n > len(r.buf) {
		return "", fmt.Errorf("wal: truncated string payload")
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

func (r *reader) readByte() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("wal: truncated byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readInt64() (int64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("wal: truncated int64")
	}
	v := int64(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) readUint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("wal: truncated uint64")
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}
