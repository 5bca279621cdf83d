// Package wal implements the shard's write-ahead log: a fixed-size,
// memory-mapped, append-only region of length-prefixed records. The
// mapping is opened once at startup and written to directly by the
// event handler's single goroutine; no locking is required because there
// is exactly one writer.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// RecordType distinguishes the two kinds of records the handler appends.
type RecordType uint8

const (
	RecordAdmittedOrder RecordType = 1
	RecordMatchEvent    RecordType = 2
)

const (
	// lengthPrefixSize is the 4-byte unsigned length prefix ahead of every
	// record's type byte and payload.
	lengthPrefixSize = 4
	typeByteSize     = 1
	// DefaultSizeBytes is the default fixed region size (64 MiB) when a
	// shard's configuration does not override it.
	DefaultSizeBytes = 64 * 1024 * 1024
)

// State is the lifecycle state of the log.
type State uint8

const (
	StateOpen State = iota
	StateSaturated
)

// Config configures Open.
type Config struct {
	Path string
	// SizeBytes is the fixed mapped region size. Zero means DefaultSizeBytes.
	SizeBytes int64
}

// WAL is a memory-mapped, fixed-size, append-only log. Durability is
// forced explicitly by the caller via Force, normally at endOfBatch; the
// bytes appended within a batch are visible in process memory immediately
// but are not guaranteed durable across process death until Force
// returns.
type WAL struct {
	file     *os.File
	data     []byte
	capacity int64
	offset   int64
	state    State

	logger *zap.Logger

	saturateOnce    sync.Once
	saturatedTotal  uint64
	forceFailures   uint64
}

// Open maps a fixed-size region at cfg.Path, creating and sizing the
// backing file if it does not already exist. A failed mapping at startup
// is fatal: the caller should treat a non-nil error as unrecoverable.
func Open(cfg Config, logger *zap.Logger) (*WAL, error) {
	size := cfg.SizeBytes
	if size <= 0 {
		size = DefaultSizeBytes
	}

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", cfg.Path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", cfg.Path, err)
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: truncate %s to %d: %w", cfg.Path, size, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: mmap %s: %w", cfg.Path, err)
	}

	return &WAL{
		file:     f,
		data:     data,
		capacity: size,
		logger:   logger,
	}, nil
}

// Append writes one length-prefixed record at the current offset and
// advances the offset. Records are written contiguously before the
// offset advances, so a partial record write is never observable.
//
// When the next record would overflow the mapped region, the log
// transitions to StateSaturated: it logs a warning exactly once, stops
// appending, and counts the drop. The matching pipeline must continue
// regardless of this return value.
func (w *WAL) Append(recordType RecordType, payload []byte) error {
	if w.state == StateSaturated {
		w.saturatedTotal++
		return ErrSaturated
	}

	total := int64(lengthPrefixSize + typeByteSize + len(payload))
	if w.offset+total > w.capacity {
		w.state = StateSaturated
		w.saturatedTotal++
		w.saturateOnce.Do(func() {
			if w.logger != nil {
				w.logger.Warn("wal saturated, appends will be skipped",
					zap.Int64("offset", w.offset),
					zap.Int64("capacity", w.capacity))
			}
		})
		return ErrSaturated
	}

	binary.BigEndian.PutUint32(w.data[w.offset:], uint32(typeByteSize+len(payload)))
	pos := w.offset + lengthPrefixSize
	w.data[pos] = byte(recordType)
	copy(w.data[pos+1:], payload)

	w.offset += total
	return nil
}

// Force requests the kernel flush mapped pages to the backing file
// (msync). A transient failure is logged and counted; it never stops the
// pipeline.
func (w *WAL) Force() error {
	if err := unix.Msync(w.data, unix.MS_SYNC); err != nil {
		w.forceFailures++
		if w.logger != nil {
			w.logger.Warn("wal force failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// State reports whether the log is still accepting appends.
func (w *WAL) State() State { return w.state }

// Offset returns the current append offset, for tests and debug endpoints.
func (w *WAL) Offset() int64 { return w.offset }

// SaturatedTotal returns the number of appends skipped since saturation.
func (w *WAL) SaturatedTotal() uint64 { return w.saturatedTotal }

// ForceFailures returns the number of failed Force calls.
func (w *WAL) ForceFailures() uint64 { return w.forceFailures }

// Close unmaps the region and closes the backing file.
func (w *WAL) Close() error {
	if err := unix.Munmap(w.data); err != nil {
		return fmt.Errorf("wal: munmap: %w", err)
	}
	return w.file.Close()
}
