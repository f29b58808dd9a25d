// Package wal implements the append-only write-ahead log that backs the
// memtable: every insert/delete is durably appended here before the
// in-memory map is mutated, and replaying the log on open rebuilds the
// map deterministically.
package wal

import (
	"bufio"
	"io"
	"os"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/dberr"
	"github.com/ChinmayNoob/lsmkv/record"
)

// WAL is an append-only byte stream of codec-encoded operations.
type WAL[T record.Record] struct {
	path        string
	f           *os.File
	w           *bufio.Writer
	codec       codec.Codec[record.Operation[T]]
	syncOnWrite bool
}

// Open opens path for read+append, creating it if absent. It does not
// replay — callers should call Replay first against the same path to
// reconstruct in-memory state, then Open for the live append handle.
func Open[T record.Record](path string, c codec.Codec[record.Operation[T]], syncOnWrite bool) (*WAL[T], error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, dberr.NewIOError("open", path, err)
	}
	return &WAL[T]{
		path:        path,
		f:           f,
		w:           bufio.NewWriter(f),
		codec:       c,
		syncOnWrite: syncOnWrite,
	}, nil
}

// Replay reads operations from path in written order, invoking fn for
// each. A clean end of stream terminates replay without error. A missing
// file is treated as an empty log. A truncated mid-record tail is fatal.
func Replay[T record.Record](path string, c codec.Codec[record.Operation[T]], fn func(record.Operation[T]) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return dberr.NewIOError("replay-open", path, err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		op, err := c.Decode(r)
		if err != nil {
			if err == codec.ErrUnexpectedEOF {
				return nil
			}
			if err == codec.ErrCorrupt {
				return &dberr.WalReplayCorruptError{Path: path}
			}
			return dberr.NewIOError("replay", path, err)
		}
		if err := fn(op); err != nil {
			return err
		}
	}
}

// Append encodes op and flushes it to the underlying file. On success the
// operation is durably on the log; the caller must not mutate the
// memtable if Append returns an error.
func (w *WAL[T]) Append(op record.Operation[T]) error {
	if err := w.codec.Encode(w.w, op); err != nil {
		return dberr.NewIOError("append", w.path, err)
	}
	if err := w.w.Flush(); err != nil {
		return dberr.NewIOError("append", w.path, err)
	}
	if w.syncOnWrite {
		if err := w.f.Sync(); err != nil {
			return dberr.NewIOError("append-sync", w.path, err)
		}
	}
	return nil
}

// Clear truncates the log to length zero and repositions at offset 0.
func (w *WAL[T]) Clear() error {
	if err := w.f.Truncate(0); err != nil {
		return dberr.NewIOError("clear", w.path, err)
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return dberr.NewIOError("clear", w.path, err)
	}
	w.w.Reset(w.f)
	return nil
}

// Close flushes and closes the underlying file.
func (w *WAL[T]) Close() error {
	if w == nil || w.f == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return dberr.NewIOError("close", w.path, err)
	}
	if err := w.f.Close(); err != nil {
		return dberr.NewIOError("close", w.path, err)
	}
	return nil
}
