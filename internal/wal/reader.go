package wal

import "encoding/binary"

// Record is one decoded frame read back from the log: its type and the
// raw payload bytes, ready for DecodeOrder/DecodeMatchEvent.
type Record struct {
	Type    RecordType
	Payload []byte
}

// ReadAll parses every record out of data starting at offset 0, in
// append order, stopping at the first zero-length prefix or when it runs
// out of bytes. It never mutates data and is safe to call against a live
// mapping; trailing unwritten bytes are zeroed by the mapping and are
// indistinguishable from "no more records".
func ReadAll(data []byte) []Record {
	var records []Record
	pos := 0
	for pos+lengthPrefixSize <= len(data) {
		length := binary.BigEndian.Uint32(data[pos:])
		if length == 0 {
			break
		}
		start := pos + lengthPrefixSize
		end := start + int(length)
		if end > len(data) {
			break
		}
		records = append(records, Record{
			Type:    RecordType(data[start]),
			Payload: data[start+typeByteSize : end],
		})
		pos = end
	}
	return records
}

// Records returns every record currently appended to w, for replay tests
// and debug tooling.
func (w *WAL) Records() []Record {
	return ReadAll(w.data[:w.offset])
}
