// Package memtable implements the ordered in-memory buffer of recent
// writes, durably backed by a write-ahead log.
package memtable

import (
	"sort"
	"sync"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/record"
	"github.com/ChinmayNoob/lsmkv/wal"
)

// Entry pairs a key with its live value or tombstone, as produced by
// SnapshotSorted for flushing to an SSTable.
type Entry[T record.Record] struct {
	Key   string
	Value record.Optional[T]
}

// Memtable is an ordered mapping from key to Optional[T]: Some(r) is a
// live value, None is a tombstone. Reads take a shared lock; mutations
// take an exclusive lock only after the WAL append has already landed, so
// the map lock is never held across I/O.
type Memtable[T record.Record] struct {
	mu      sync.RWMutex
	entries map[string]record.Optional[T]
	log     *wal.WAL[T]
}

// Open replays the WAL at path (if present) into a fresh map, then opens
// it for further appends.
func Open[T record.Record](path string, c codec.Codec[record.Operation[T]], syncOnWrite bool) (*Memtable[T], error) {
	entries := make(map[string]record.Optional[T])
	err := wal.Replay(path, c, func(op record.Operation[T]) error {
		switch op.Kind {
		case record.OpInsert:
			entries[op.Record.Key()] = record.Some(op.Record)
		case record.OpDelete:
			entries[op.Key] = record.None[T]()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w, err := wal.Open(path, c, syncOnWrite)
	if err != nil {
		return nil, err
	}
	return &Memtable[T]{entries: entries, log: w}, nil
}

// Insert appends Insert{record} to the WAL, then upserts the live value
// into the map, overwriting any prior live or tombstone entry for the key.
func (m *Memtable[T]) Insert(r T) error {
	if err := m.log.Append(record.Insert(r)); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[r.Key()] = record.Some(r)
	m.mu.Unlock()
	return nil
}

// Delete appends Delete{key} to the WAL, then upserts a tombstone into the
// map. A delete of an absent key still writes a tombstone: an older
// SSTable may hold a live value for it.
func (m *Memtable[T]) Delete(key string) error {
	if err := m.log.Append(record.Delete[T](key)); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = record.None[T]()
	m.mu.Unlock()
	return nil
}

// Get returns (value, false) if the key is absent, (tombstone, true) if a
// tombstone is present, (live value, true) otherwise.
func (m *Memtable[T]) Get(key string) (record.Optional[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Len returns the entry count, including tombstones.
func (m *Memtable[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear empties the map and truncates the WAL under a single exclusive
// lock, so concurrent readers observe either the pre-clear state or the
// post-clear empty state, never a partial one.
func (m *Memtable[T]) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.log.Clear(); err != nil {
		return err
	}
	m.entries = make(map[string]record.Optional[T])
	return nil
}

// SnapshotSorted returns entries in ascending key order, for flushing.
func (m *Memtable[T]) SnapshotSorted() []Entry[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry[T], 0, len(m.entries))
	for k, v := range m.entries {
		out = append(out, Entry[T]{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close closes the underlying WAL handle.
func (m *Memtable[T]) Close() error {
	return m.log.Close()
}
