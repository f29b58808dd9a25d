package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChinmayNoob/lsmkv/manifest"
	"github.com/ChinmayNoob/lsmkv/sstable"
)

func TestOpenMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.meta")
	m, descriptors, err := manifest.Open(path)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Empty(t, descriptors)
}

func TestAppendThenReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.meta")
	m, _, err := manifest.Open(path)
	require.NoError(t, err)

	d1 := sstable.Descriptor{StoragePath: "s1", IndexPath: "i1", MinKey: "a", MaxKey: "c", Count: 3, SizeBytes: 100}
	d2 := sstable.Descriptor{StoragePath: "s2", IndexPath: "i2", MinKey: "d", MaxKey: "f", Count: 2, SizeBytes: 50}
	require.NoError(t, m.Append(d1))
	require.NoError(t, m.Append(d2))

	_, descriptors, err := manifest.Open(path)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, d1, descriptors[0])
	assert.Equal(t, d2, descriptors[1])
}

func TestRewriteReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.meta")
	m, _, err := manifest.Open(path)
	require.NoError(t, err)

	d1 := sstable.Descriptor{StoragePath: "s1", IndexPath: "i1", MinKey: "a", MaxKey: "c", Count: 3, SizeBytes: 100}
	require.NoError(t, m.Append(d1))

	replacement := sstable.Descriptor{StoragePath: "s2", IndexPath: "i2", MinKey: "a", MaxKey: "f", Count: 5, SizeBytes: 150}
	require.NoError(t, m.Rewrite([]sstable.Descriptor{replacement}))

	_, descriptors, err := manifest.Open(path)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, replacement, descriptors[0])
}

func TestOpenCorruptLineErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.meta")
	require.NoError(t, writeRaw(path, "only three fields here\n"))

	_, _, err := manifest.Open(path)
	assert.Error(t, err)
}

func writeRaw(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
