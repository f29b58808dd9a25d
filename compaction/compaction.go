// Package compaction implements the k-way merge that folds a group of
// SSTables into one, preserving recency for duplicate keys and honoring
// tombstones.
package compaction

import (
	"container/heap"
	"os"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/dberr"
	"github.com/ChinmayNoob/lsmkv/memtable"
	"github.com/ChinmayNoob/lsmkv/record"
	"github.com/ChinmayNoob/lsmkv/sstable"
)

// Run merges inputs (ordered oldest-first, matching manifest order) into
// one new SSTable at outStoragePath/outIndexPath. includesOldest tells the
// merge whether the input set includes the oldest SSTable the database
// currently lists for this type: only then is it safe to drop a surviving
// tombstone, since only then is every older occurrence of that key
// guaranteed to be covered by this compaction.
//
// Output is written to temporary files inside the database directory and
// renamed into place only on success; a crash mid-compaction leaves every
// input intact. Temp files left behind by such a crash are removed only
// when a later Run is given the same output paths; nothing else cleans
// them up.
func Run[T record.Record](inputs []sstable.Descriptor, outStoragePath, outIndexPath string, valCodec codec.Codec[record.Optional[T]], keyBytes, offsetBytes int, includesOldest bool) (sstable.Descriptor, bool, error) {
	if len(inputs) == 0 {
		return sstable.Descriptor{}, false, nil
	}

	iters := make([]*tableIter[T], 0, len(inputs))
	defer func() {
		for _, it := range iters {
			it.close()
		}
	}()
	h := &mergeHeap[T]{}
	for ageRank, d := range inputs {
		it, err := newTableIter(d, ageRank, valCodec, keyBytes, offsetBytes)
		if err != nil {
			return sstable.Descriptor{}, false, err
		}
		iters = append(iters, it)
		if it.next() {
			heap.Push(h, heapItem[T]{key: it.curKey, value: it.curVal, ageRank: it.ageRank, it: it})
		}
		if it.err != nil {
			return sstable.Descriptor{}, false, it.err
		}
	}

	var merged []memtable.Entry[T]
	for h.Len() > 0 {
		group := popGroup(h)
		best := group[0]
		for _, cand := range group[1:] {
			if cand.ageRank > best.ageRank {
				best = cand
			}
		}
		for _, g := range group {
			if g.it.next() {
				heap.Push(h, heapItem[T]{key: g.it.curKey, value: g.it.curVal, ageRank: g.it.ageRank, it: g.it})
			}
			if g.it.err != nil {
				return sstable.Descriptor{}, false, g.it.err
			}
		}
		if !best.value.Present && includesOldest {
			continue // safe to drop: every older occurrence is covered
		}
		merged = append(merged, memtable.Entry[T]{Key: best.key, Value: best.value})
	}

	if len(merged) == 0 {
		return sstable.Descriptor{}, false, nil
	}

	tmpStorage := outStoragePath + ".tmp"
	tmpIndex := outIndexPath + ".tmp"
	_ = os.Remove(tmpStorage)
	_ = os.Remove(tmpIndex)

	d, err := sstable.Build(tmpStorage, tmpIndex, merged, valCodec, keyBytes, offsetBytes)
	if err != nil {
		return sstable.Descriptor{}, false, err
	}
	if err := os.Rename(tmpStorage, outStoragePath); err != nil {
		return sstable.Descriptor{}, false, dberr.NewIOError("rename-storage", outStoragePath, err)
	}
	if err := os.Rename(tmpIndex, outIndexPath); err != nil {
		return sstable.Descriptor{}, false, dberr.NewIOError("rename-index", outIndexPath, err)
	}
	d.StoragePath = outStoragePath
	d.IndexPath = outIndexPath
	return d, true, nil
}

// heapItem is one candidate entry from one input table.
type heapItem[T record.Record] struct {
	key     string
	value   record.Optional[T]
	ageRank int
	it      *tableIter[T]
}

// popGroup pops the minimum and every other heap entry sharing its key.
func popGroup[T record.Record](h *mergeHeap[T]) []heapItem[T] {
	first := heap.Pop(h).(heapItem[T])
	group := []heapItem[T]{first}
	for h.Len() > 0 && (*h)[0].key == first.key {
		group = append(group, heap.Pop(h).(heapItem[T]))
	}
	return group
}

type mergeHeap[T record.Record] []heapItem[T]

func (h mergeHeap[T]) Len() int            { return len(h) }
func (h mergeHeap[T]) Less(i, j int) bool  { return h[i].key < h[j].key }
func (h mergeHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap[T]) Push(x any)         { *h = append(*h, x.(heapItem[T])) }
func (h *mergeHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// tableIter scans one input SSTable's index file sequentially, decoding
// the payload at each recorded offset from the storage file.
type tableIter[T record.Record] struct {
	d                     sstable.Descriptor
	ageRank               int
	xf                    *os.File
	sf                    *os.File
	pos, count            int64
	keyBytes, offsetBytes int
	valCodec              codec.Codec[record.Optional[T]]

	curKey string
	curVal record.Optional[T]
	err    error
}

func newTableIter[T record.Record](d sstable.Descriptor, ageRank int, valCodec codec.Codec[record.Optional[T]], keyBytes, offsetBytes int) (*tableIter[T], error) {
	xf, err := os.Open(d.IndexPath)
	if err != nil {
		return nil, dberr.NewIOError("open-index", d.IndexPath, err)
	}
	sf, err := os.Open(d.StoragePath)
	if err != nil {
		_ = xf.Close()
		return nil, dberr.NewIOError("open-storage", d.StoragePath, err)
	}
	return &tableIter[T]{
		d: d, ageRank: ageRank, xf: xf, sf: sf,
		count: int64(d.Count), keyBytes: keyBytes, offsetBytes: offsetBytes,
		valCodec: valCodec,
	}, nil
}

func (it *tableIter[T]) next() bool {
	if it.err != nil || it.pos >= it.count {
		return false
	}
	stride := int64(it.keyBytes + it.offsetBytes)
	slot := make([]byte, stride)
	if _, err := it.xf.ReadAt(slot, it.pos*stride); err != nil {
		it.err = dberr.NewIOError("read-index", it.d.IndexPath, err)
		return false
	}
	keyEnd := it.keyBytes
	for keyEnd > 0 && slot[keyEnd-1] == 0 {
		keyEnd--
	}
	key := string(slot[:keyEnd])
	offset := leUint64(slot[it.keyBytes : it.keyBytes+8])

	if _, err := it.sf.Seek(int64(offset), 0); err != nil {
		it.err = dberr.NewIOError("seek-storage", it.d.StoragePath, err)
		return false
	}
	v, err := it.valCodec.Decode(it.sf)
	if err != nil {
		it.err = &dberr.SSTableCorruptError{Path: it.d.StoragePath, Reason: "payload at recorded offset failed to decode during compaction"}
		return false
	}

	it.curKey = key
	it.curVal = v
	it.pos++
	return true
}

func (it *tableIter[T]) close() {
	if it.xf != nil {
		_ = it.xf.Close()
	}
	if it.sf != nil {
		_ = it.sf.Close()
	}
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
