// Package config loads the YAML file describing one database's on-disk
// layout parameters and compaction policy knobs.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full set of parameters a database is opened with. All
// size/threshold fields are fixed at database creation time: changing them
// against an existing db_path produces undefined lookups, since the index
// stride is baked into every SSTable already on disk.
type Config struct {
	DBPath string `yaml:"db_path"`

	// IndexKeyStringSize (K) is the fixed number of bytes reserved for a
	// key in an SSTable index slot. Keys longer than K are truncated for
	// comparison purposes at the byte level; callers are responsible for
	// choosing a K that does not alias distinct keys in their domain.
	IndexKeyStringSize int `yaml:"index_key_string_size"`

	// IndexOffsetSize (O) is the fixed number of bytes reserved for a
	// storage-file offset in an SSTable index slot. Only 8 is supported.
	IndexOffsetSize int `yaml:"index_offset_size"`

	// InitialIndexFileThreshold is the memtable byte budget, measured as
	// (K+O) * entry count, that triggers a flush to a new SSTable.
	InitialIndexFileThreshold int `yaml:"initial_index_file_threshold"`

	// CompactionTierSize (T) and CompactionSizeMultiplier (B) define the
	// tiering function tier(size) = floor(log_B(size_bytes / T)).
	CompactionTierSize        int `yaml:"compaction_tier_size"`
	CompactionSizeMultiplier  int `yaml:"compaction_size_multiplier"`
	CompactionThreshold       int `yaml:"compaction_threshold"`

	// SyncOnWrite fsyncs the WAL after every append. Disabling it trades
	// durability on power loss for write throughput; it never affects
	// correctness on a clean process exit.
	SyncOnWrite bool `yaml:"sync_on_write"`
}

// Load reads and parses a YAML config file at path, then validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the parameters a fresh database is created with absent
// any overrides, chosen for the Photo demo record's typical key shape.
func Default() Config {
	return Config{
		IndexKeyStringSize:        36,
		IndexOffsetSize:           8,
		InitialIndexFileThreshold: 4096,
		CompactionTierSize:        4096,
		CompactionSizeMultiplier:  4,
		CompactionThreshold:       4,
		SyncOnWrite:               true,
	}
}

// Validate checks the invariants the storage format depends on.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: db_path must be set")
	}
	if c.IndexKeyStringSize <= 0 {
		return errors.New("config: index_key_string_size must be positive")
	}
	if c.IndexOffsetSize != 8 {
		return errors.New("config: index_offset_size must be 8")
	}
	if c.InitialIndexFileThreshold <= 0 {
		return errors.New("config: initial_index_file_threshold must be positive")
	}
	if c.CompactionTierSize <= 0 {
		return errors.New("config: compaction_tier_size must be positive")
	}
	if c.CompactionSizeMultiplier < 2 {
		return errors.New("config: compaction_size_multiplier must be at least 2")
	}
	if c.CompactionThreshold <= 0 {
		return errors.New("config: compaction_threshold must be positive")
	}
	return nil
}
