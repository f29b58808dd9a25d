// Package sstable implements the immutable on-disk sorted table: a
// payload file of codec-encoded values in ascending key order, plus a
// fixed-stride index file enabling binary-search point lookup.
package sstable

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/dberr"
	"github.com/ChinmayNoob/lsmkv/memtable"
	"github.com/ChinmayNoob/lsmkv/record"
)

// Descriptor is the in-memory (and in-manifest) record of one SSTable.
type Descriptor struct {
	StoragePath string
	IndexPath   string
	MinKey      string
	MaxKey      string
	Count       uint64
	SizeBytes   uint64
}

type indexEntry struct {
	key    string
	offset uint64
}

// Build writes a new SSTable from entries, which must be sorted ascending
// by key and non-empty. The storage and index files are created fresh;
// either already existing is an error.
func Build[T record.Record](storagePath, indexPath string, entries []memtable.Entry[T], valCodec codec.Codec[record.Optional[T]], keyBytes, offsetBytes int) (Descriptor, error) {
	if len(entries) == 0 {
		return Descriptor{}, dberr.ErrEmptyFlush
	}

	sf, err := os.OpenFile(storagePath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Descriptor{}, dberr.NewIOError("create-storage", storagePath, err)
	}
	defer func() { _ = sf.Close() }()
	sw := bufio.NewWriterSize(sf, 64*1024)

	idx := make([]indexEntry, 0, len(entries))
	var offset uint64
	for _, e := range entries {
		idx = append(idx, indexEntry{key: e.Key, offset: offset})
		var buf bytes.Buffer
		if err := valCodec.Encode(&buf, e.Value); err != nil {
			return Descriptor{}, errors.Wrap(err, "sstable: encode payload")
		}
		if _, err := sw.Write(buf.Bytes()); err != nil {
			return Descriptor{}, dberr.NewIOError("write-storage", storagePath, err)
		}
		offset += uint64(buf.Len())
	}
	if err := sw.Flush(); err != nil {
		return Descriptor{}, dberr.NewIOError("flush-storage", storagePath, err)
	}
	if err := sf.Sync(); err != nil {
		return Descriptor{}, dberr.NewIOError("sync-storage", storagePath, err)
	}

	xf, err := os.OpenFile(indexPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Descriptor{}, dberr.NewIOError("create-index", indexPath, err)
	}
	defer func() { _ = xf.Close() }()
	xw := bufio.NewWriterSize(xf, 64*1024)
	stride := keyBytes + offsetBytes
	slot := make([]byte, stride)
	for _, e := range idx {
		for i := range slot {
			slot[i] = 0
		}
		copy(slot[:keyBytes], e.key[:min(len(e.key), keyBytes)])
		binary.LittleEndian.PutUint64(slot[keyBytes:keyBytes+8], e.offset)
		if _, err := xw.Write(slot); err != nil {
			return Descriptor{}, dberr.NewIOError("write-index", indexPath, err)
		}
	}
	if err := xw.Flush(); err != nil {
		return Descriptor{}, dberr.NewIOError("flush-index", indexPath, err)
	}
	if err := xf.Sync(); err != nil {
		return Descriptor{}, dberr.NewIOError("sync-index", indexPath, err)
	}

	return Descriptor{
		StoragePath: storagePath,
		IndexPath:   indexPath,
		MinKey:      entries[0].Key,
		MaxKey:      entries[len(entries)-1].Key,
		Count:       uint64(len(entries)),
		SizeBytes:   offset,
	}, nil
}

// Get performs the binary-search point lookup described in the spec:
// found=false means "not present in this table, keep searching older
// tables"; found=true with a tombstone Optional means "stop searching,
// the key is deleted"; found=true with a live Optional means the value.
func Get[T record.Record](d Descriptor, key string, valCodec codec.Codec[record.Optional[T]], keyBytes, offsetBytes int) (record.Optional[T], bool, error) {
	var zero record.Optional[T]
	// Index slots hold keys truncated to keyBytes, so the target and the
	// descriptor's bounds are compared at that same width.
	target := key[:min(len(key), keyBytes)]
	if target < d.MinKey[:min(len(d.MinKey), keyBytes)] || target > d.MaxKey[:min(len(d.MaxKey), keyBytes)] {
		return zero, false, nil
	}

	xf, err := os.Open(d.IndexPath)
	if err != nil {
		return zero, false, dberr.NewIOError("open-index", d.IndexPath, err)
	}
	defer func() { _ = xf.Close() }()

	stride := int64(keyBytes + offsetBytes)
	st, err := xf.Stat()
	if err != nil {
		return zero, false, dberr.NewIOError("stat-index", d.IndexPath, err)
	}
	if st.Size()%stride != 0 {
		return zero, false, &dberr.SSTableCorruptError{Path: d.IndexPath, Reason: "index length not a multiple of key+offset stride"}
	}
	count := st.Size() / stride
	if uint64(count) != d.Count {
		return zero, false, &dberr.SSTableCorruptError{Path: d.IndexPath, Reason: "index entry count does not match descriptor"}
	}

	slot := make([]byte, keyBytes)
	readKeyAt := func(i int64) (string, error) {
		if _, err := xf.ReadAt(slot, i*stride); err != nil {
			return "", dberr.NewIOError("read-index", d.IndexPath, err)
		}
		return strings.TrimRight(string(slot), "\x00"), nil
	}

	lo, hi := int64(0), count
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := readKeyAt(mid)
		if err != nil {
			return zero, false, err
		}
		if k < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= count {
		return zero, false, nil
	}
	foundKey, err := readKeyAt(lo)
	if err != nil {
		return zero, false, err
	}
	if foundKey != target {
		return zero, false, nil
	}

	offBuf := make([]byte, offsetBytes)
	if _, err := xf.ReadAt(offBuf, lo*stride+int64(keyBytes)); err != nil {
		return zero, false, dberr.NewIOError("read-index", d.IndexPath, err)
	}
	payloadOffset := binary.LittleEndian.Uint64(offBuf)

	sf, err := os.Open(d.StoragePath)
	if err != nil {
		return zero, false, dberr.NewIOError("open-storage", d.StoragePath, err)
	}
	defer func() { _ = sf.Close() }()
	if _, err := sf.Seek(int64(payloadOffset), io.SeekStart); err != nil {
		return zero, false, dberr.NewIOError("seek-storage", d.StoragePath, err)
	}
	v, err := valCodec.Decode(sf)
	if err != nil {
		if err == codec.ErrUnexpectedEOF || err == codec.ErrCorrupt {
			return zero, false, &dberr.SSTableCorruptError{Path: d.StoragePath, Reason: "payload at recorded offset failed to decode"}
		}
		return zero, false, dberr.NewIOError("decode-storage", d.StoragePath, err)
	}
	return v, true, nil
}
