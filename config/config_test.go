package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChinmayNoob/lsmkv/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/db
index_key_string_size: 36
index_offset_size: 8
initial_index_file_threshold: 4096
compaction_tier_size: 4096
compaction_size_multiplier: 4
compaction_threshold: 4
sync_on_write: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/db", cfg.DBPath)
	assert.Equal(t, 36, cfg.IndexKeyStringSize)
	assert.Equal(t, 8, cfg.IndexOffsetSize)
}

func TestLoadRejectsWrongOffsetSize(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/db
index_key_string_size: 36
index_offset_size: 4
initial_index_file_threshold: 4096
compaction_tier_size: 4096
compaction_size_multiplier: 4
compaction_threshold: 4
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingDBPath(t *testing.T) {
	path := writeConfig(t, `
index_key_string_size: 36
index_offset_size: 8
initial_index_file_threshold: 4096
compaction_tier_size: 4096
compaction_size_multiplier: 4
compaction_threshold: 4
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestDefaultIsValidOnceDBPathSet(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = "/tmp/db"
	assert.NoError(t, cfg.Validate())
}
