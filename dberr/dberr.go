// Package dberr defines the structured error kinds the engine surfaces to
// callers. Lower layers never panic on user-reachable input; they return
// one of these, wrapped with github.com/pkg/errors so the sentinel stays
// reachable via errors.Cause while the message carries file/line context.
package dberr

import (
	"strconv"

	"github.com/pkg/errors"
)

// ErrDBMissing is returned by Open when db_path does not exist.
var ErrDBMissing = errors.New("lsmkv: database path does not exist")

// ErrEmptyFlush is returned if a flush of an empty memtable is attempted.
// The engine's flush policy never triggers this on its own; it signals an
// internal invariant violation.
var ErrEmptyFlush = errors.New("lsmkv: attempted flush of empty memtable")

// IOError wraps an underlying filesystem failure with the operation and
// path that failed.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return "lsmkv: io error during " + e.Op + " on " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// WalReplayCorruptError signals a truncated or malformed WAL tail found
// during replay.
type WalReplayCorruptError struct {
	Path string
}

func (e *WalReplayCorruptError) Error() string {
	return "lsmkv: wal replay corrupt at " + e.Path
}

// SSTableCorruptError signals an index length that is not a multiple of
// K+O, an unreadable record at a recorded offset, or a codec decode
// failure within an SSTable.
type SSTableCorruptError struct {
	Path   string
	Reason string
}

func (e *SSTableCorruptError) Error() string {
	return "lsmkv: sstable corrupt at " + e.Path + ": " + e.Reason
}

// ManifestCorruptError signals a manifest line with the wrong field count
// or unparseable numeric fields.
type ManifestCorruptError struct {
	Path string
	Line int
	Text string
}

func (e *ManifestCorruptError) Error() string {
	return "lsmkv: manifest corrupt at " + e.Path + " line " + strconv.Itoa(e.Line) + ": " + e.Text
}
