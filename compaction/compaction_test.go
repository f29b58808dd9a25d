package compaction_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/compaction"
	"github.com/ChinmayNoob/lsmkv/memtable"
	"github.com/ChinmayNoob/lsmkv/record"
	"github.com/ChinmayNoob/lsmkv/sstable"
)

func valCodec() codec.OptionCodec[record.Photo] {
	return codec.OptionCodec[record.Photo]{Inner: codec.PhotoCodec{}}
}

func buildTable(t *testing.T, dir, name string, es []memtable.Entry[record.Photo]) sstable.Descriptor {
	t.Helper()
	d, err := sstable.Build(filepath.Join(dir, name+".s"), filepath.Join(dir, name+".i"), es, valCodec(), 8, 8)
	require.NoError(t, err)
	return d
}

func live(key, url string) memtable.Entry[record.Photo] {
	return memtable.Entry[record.Photo]{Key: key, Value: record.Some(record.Photo{ID: key, URL: url})}
}

func tomb(key string) memtable.Entry[record.Photo] {
	return memtable.Entry[record.Photo]{Key: key, Value: record.None[record.Photo]()}
}

func TestRunMergesAndOrdersOutput(t *testing.T) {
	dir := t.TempDir()
	older := buildTable(t, dir, "older", []memtable.Entry[record.Photo]{live("a", "old-a"), live("b", "old-b")})
	newer := buildTable(t, dir, "newer", []memtable.Entry[record.Photo]{live("b", "new-b"), live("c", "new-c")})

	out, hasOutput, err := compaction.Run[record.Photo](
		[]sstable.Descriptor{older, newer},
		filepath.Join(dir, "out.s"), filepath.Join(dir, "out.i"),
		valCodec(), 8, 8, true,
	)
	require.NoError(t, err)
	require.True(t, hasOutput)
	assert.EqualValues(t, 3, out.Count)

	v, found, err := sstable.Get[record.Photo](out, "b", valCodec(), 8, 8)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new-b", v.Value.URL) // newer table's value wins
}

func TestRunDropsTombstoneWhenIncludesOldest(t *testing.T) {
	dir := t.TempDir()
	older := buildTable(t, dir, "older", []memtable.Entry[record.Photo]{live("a", "old-a")})
	newer := buildTable(t, dir, "newer", []memtable.Entry[record.Photo]{tomb("a")})

	out, hasOutput, err := compaction.Run[record.Photo](
		[]sstable.Descriptor{older, newer},
		filepath.Join(dir, "out.s"), filepath.Join(dir, "out.i"),
		valCodec(), 8, 8, true,
	)
	require.NoError(t, err)
	assert.False(t, hasOutput) // the only key present was a dropped tombstone
	assert.EqualValues(t, 0, out.Count)
}

func TestRunKeepsTombstoneWhenNotIncludesOldest(t *testing.T) {
	dir := t.TempDir()
	middle := buildTable(t, dir, "middle", []memtable.Entry[record.Photo]{tomb("a")})
	newer := buildTable(t, dir, "newer", []memtable.Entry[record.Photo]{live("b", "ub")})

	out, hasOutput, err := compaction.Run[record.Photo](
		[]sstable.Descriptor{middle, newer},
		filepath.Join(dir, "out.s"), filepath.Join(dir, "out.i"),
		valCodec(), 8, 8, false,
	)
	require.NoError(t, err)
	require.True(t, hasOutput)
	assert.EqualValues(t, 2, out.Count)

	v, found, err := sstable.Get[record.Photo](out, "a", valCodec(), 8, 8)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, v.Present)
}

func TestRunEmptyInputsIsNoop(t *testing.T) {
	dir := t.TempDir()
	out, hasOutput, err := compaction.Run[record.Photo](nil, filepath.Join(dir, "out.s"), filepath.Join(dir, "out.i"), valCodec(), 8, 8, true)
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.EqualValues(t, 0, out.Count)
}
