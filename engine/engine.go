// Package engine coordinates the write-ahead log, memtable, SSTables, and
// manifest into the single-node typed key-value store described by the
// package's design notes: one engine instance owns one record type's
// namespace within a database directory.
package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/compaction"
	"github.com/ChinmayNoob/lsmkv/config"
	"github.com/ChinmayNoob/lsmkv/dberr"
	"github.com/ChinmayNoob/lsmkv/manifest"
	"github.com/ChinmayNoob/lsmkv/memtable"
	"github.com/ChinmayNoob/lsmkv/record"
	"github.com/ChinmayNoob/lsmkv/sstable"
)

const (
	metadataDir = "metadata"
	indicesDir  = "indices"
	storageDir  = "storage"
	logsDir     = "logs"
)

// Engine is the coordinator for one record type T within a database
// directory. The memtable owns its own lock for the live map; Engine adds
// a readers-writer lock over the SSTable list, a flush mutex serializing
// flush-triggering writers, and a compaction mutex serializing compaction
// runs. The three never nest in a way that can deadlock: flush takes
// flushMu then sstMu only briefly to append to the list; compaction takes
// compactMu, reads a snapshot of the list under sstMu, does all file I/O
// unlocked, then takes sstMu again only to swap the list.
type Engine[T record.Record] struct {
	cfg      config.Config
	typeName string
	log      *zap.SugaredLogger

	mem      *memtable.Memtable[T]
	valCodec codec.Codec[record.Optional[T]]

	man *manifest.Manifest

	sstMu    sync.RWMutex
	sstables []sstable.Descriptor // oldest first

	flushMu   sync.Mutex
	compactMu sync.Mutex
	idMu      sync.Mutex
	nextID    uint64
}

// Open opens (or creates, if absent) the on-disk layout for T's namespace
// under cfg.DBPath, replays the WAL, and parses the manifest. db_path
// itself must already exist: Open never creates the database root, only
// the subdirectories within it, so a missing root is reported as
// dberr.ErrDBMissing rather than silently created.
func Open[T record.Record](cfg config.Config, baseCodec codec.Codec[T], logger *zap.SugaredLogger) (*Engine[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.ErrDBMissing
		}
		return nil, dberr.NewIOError("stat-dbpath", cfg.DBPath, err)
	}
	for _, d := range []string{metadataDir, indicesDir, storageDir, logsDir} {
		if err := os.MkdirAll(filepath.Join(cfg.DBPath, d), 0o755); err != nil {
			return nil, dberr.NewIOError("mkdir", d, err)
		}
	}

	var zero T
	typeName := zero.TypeName()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	valCodec := codec.OptionCodec[T]{Inner: baseCodec}
	opCodec := codec.OperationCodec[T]{Inner: baseCodec}

	walPath := filepath.Join(cfg.DBPath, logsDir, typeName+".log")
	mem, err := memtable.Open[T](walPath, opCodec, cfg.SyncOnWrite)
	if err != nil {
		return nil, err
	}

	manPath := filepath.Join(cfg.DBPath, metadataDir, typeName+".meta")
	man, descriptors, err := manifest.Open(manPath)
	if err != nil {
		_ = mem.Close()
		return nil, err
	}

	e := &Engine[T]{
		cfg:      cfg,
		typeName: typeName,
		log:      logger,
		mem:      mem,
		valCodec: valCodec,
		man:      man,
		sstables: descriptors,
	}
	e.nextID = nextFreeID(cfg.DBPath, typeName)
	e.log.Infow("opened engine", "type", typeName, "sstables", len(descriptors))
	return e, nil
}

// nextFreeID scans storageDir for typeName-N.log files already present and
// returns one past the largest N seen, so a reopen never reuses a suffix.
func nextFreeID(dbPath, typeName string) uint64 {
	entries, err := os.ReadDir(filepath.Join(dbPath, storageDir))
	if err != nil {
		return 0
	}
	var max uint64
	prefix := typeName + "-"
	for _, ent := range entries {
		name := ent.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		var n uint64
		if _, err := fmt.Sscanf(name[len(prefix):], "%d.log", &n); err != nil {
			continue
		}
		if n >= max {
			max = n + 1
		}
	}
	return max
}

// Insert durably appends r to the WAL, upserts it into the memtable, and
// triggers a flush if the memtable has grown past the configured
// threshold.
func (e *Engine[T]) Insert(r T) error {
	if err := e.mem.Insert(r); err != nil {
		return err
	}
	return e.maybeFlush()
}

// Delete durably appends a tombstone for key to the WAL, upserts it into
// the memtable, and triggers a flush if needed. Deleting an absent key is
// not an error: an older SSTable may still hold a live value for it.
func (e *Engine[T]) Delete(key string) error {
	if err := e.mem.Delete(key); err != nil {
		return err
	}
	return e.maybeFlush()
}

// Get resolves key by checking the memtable first, then SSTables from
// newest to oldest, returning the first answer found. A tombstone at any
// level and an absence at every level both resolve to a not-present
// Optional; callers that need to distinguish "deleted" from "never
// written" must track that themselves, since the engine's read path makes
// the same guarantee as the reference design: the latest write wins.
func (e *Engine[T]) Get(key string) (record.Optional[T], error) {
	if v, ok := e.mem.Get(key); ok {
		return v, nil
	}

	e.sstMu.RLock()
	tables := make([]sstable.Descriptor, len(e.sstables))
	copy(tables, e.sstables)
	e.sstMu.RUnlock()

	for i := len(tables) - 1; i >= 0; i-- {
		v, found, err := sstable.Get[T](tables[i], key, e.valCodec, e.cfg.IndexKeyStringSize, e.cfg.IndexOffsetSize)
		if err != nil {
			return record.Optional[T]{}, err
		}
		if found {
			return v, nil
		}
	}
	return record.Optional[T]{}, nil
}

// maybeFlush checks the flush trigger without holding flushMu, then
// re-checks under the lock before doing any work: the cheap outer check
// avoids contending for the lock on every write once the memtable is
// small, while the inner re-check avoids a redundant flush when two
// writers race past the outer check and the first one's flush already
// cleared the memtable.
func (e *Engine[T]) maybeFlush() error {
	if !e.flushDue() {
		return nil
	}
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	if !e.flushDue() {
		return nil
	}
	return e.flush()
}

func (e *Engine[T]) flushDue() bool {
	pairSize := uint64(e.cfg.IndexKeyStringSize + e.cfg.IndexOffsetSize)
	return pairSize*uint64(e.mem.Len()) >= uint64(e.cfg.InitialIndexFileThreshold)
}

// flush builds a new SSTable from the memtable's current contents, commits
// it to the manifest, adds it to the readable SSTable list, then clears the
// memtable and WAL, so no flushed key is ever missing from both. The manifest
// append happens before the WAL is cleared: a crash between the two
// leaves a replayable WAL whose entries are already present in the new
// SSTable, which is redundant but not incorrect, since replay simply
// re-inserts the same keys into an empty memtable.
func (e *Engine[T]) flush() error {
	entries := e.mem.SnapshotSorted()
	if len(entries) == 0 {
		return nil
	}

	storagePath, indexPath := e.allocatePaths()
	d, err := sstable.Build(storagePath, indexPath, entries, e.valCodec, e.cfg.IndexKeyStringSize, e.cfg.IndexOffsetSize)
	if err != nil {
		return err
	}
	if err := e.man.Append(d); err != nil {
		return err
	}

	e.sstMu.Lock()
	e.sstables = append(e.sstables, d)
	e.sstMu.Unlock()

	if err := e.mem.Clear(); err != nil {
		return err
	}

	e.log.Infow("flushed memtable", "type", e.typeName, "path", storagePath, "count", d.Count, "bytes", d.SizeBytes)
	return e.maybeCompact()
}

// allocatePaths reserves a fresh storage/index path pair under e.idMu,
// skipping any suffix that collides with a file already on disk (left
// behind by, for instance, a crash between file creation and manifest
// commit in a previous run).
func (e *Engine[T]) allocatePaths() (string, string) {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	for {
		id := e.nextID
		e.nextID++
		storagePath := filepath.Join(e.cfg.DBPath, storageDir, fmt.Sprintf("%s-%d.log", e.typeName, id))
		indexPath := filepath.Join(e.cfg.DBPath, indicesDir, fmt.Sprintf("%s-%d.log", e.typeName, id))
		if !pathExists(storagePath) && !pathExists(indexPath) {
			return storagePath, indexPath
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// tier buckets an SSTable by size into the size-tiered compaction scheme:
// tier(size) = floor(log_B(size_bytes / T)). An empty table sits in the
// smallest tier.
func tier(sizeBytes uint64, tierSize, multiplier int) int {
	if sizeBytes == 0 {
		return math.MinInt32
	}
	ratio := float64(sizeBytes) / float64(tierSize)
	if ratio < 1e-9 {
		ratio = 1e-9
	}
	return int(math.Floor(math.Log(ratio) / math.Log(float64(multiplier))))
}

// maybeCompact runs after every flush to check whether any tier has
// accumulated more than cfg.CompactionThreshold tables; if so it compacts
// that tier's entire membership in one pass. Only one tier is compacted
// per call since a flush adds at most one table to at most one tier.
func (e *Engine[T]) maybeCompact() error {
	e.sstMu.RLock()
	tables := make([]sstable.Descriptor, len(e.sstables))
	copy(tables, e.sstables)
	e.sstMu.RUnlock()

	tiers := make(map[int][]int)
	for i, d := range tables {
		t := tier(d.SizeBytes, e.cfg.CompactionTierSize, e.cfg.CompactionSizeMultiplier)
		tiers[t] = append(tiers[t], i)
	}
	for _, idxs := range tiers {
		if len(idxs) > e.cfg.CompactionThreshold {
			return e.compactIndices(tables, idxs)
		}
	}
	return nil
}

// Compact forces a compaction pass: if any tier currently exceeds the
// threshold, one such tier is compacted (which one, when several qualify,
// is not defined); other qualifying tiers are left as they are. It is a
// no-op if none does.
func (e *Engine[T]) Compact() error {
	return e.maybeCompact()
}

// compactIndices merges tables[idxs[0]]..tables[idxs[last]] (already in
// ascending age order since idxs was built by a single forward scan of
// tables) into one new SSTable, replacing them in the list at the
// position of the newest input.
func (e *Engine[T]) compactIndices(tables []sstable.Descriptor, idxs []int) error {
	e.compactMu.Lock()
	defer e.compactMu.Unlock()

	inputs := make([]sstable.Descriptor, len(idxs))
	for i, ix := range idxs {
		inputs[i] = tables[ix]
	}
	includesOldest := idxs[0] == 0

	storagePath, indexPath := e.allocatePaths()
	newDesc, hasOutput, err := compaction.Run(inputs, storagePath, indexPath, e.valCodec, e.cfg.IndexKeyStringSize, e.cfg.IndexOffsetSize, includesOldest)
	if err != nil {
		return err
	}

	idxSet := make(map[int]bool, len(idxs))
	for _, ix := range idxs {
		idxSet[ix] = true
	}
	last := idxs[len(idxs)-1]

	e.sstMu.Lock()
	replaced := make([]sstable.Descriptor, 0, len(e.sstables)-len(idxs)+1)
	for i, d := range e.sstables {
		if idxSet[i] {
			if i == last && hasOutput {
				replaced = append(replaced, newDesc)
			}
			continue
		}
		replaced = append(replaced, d)
	}
	e.sstables = replaced
	e.sstMu.Unlock()

	if err := e.man.Rewrite(replaced); err != nil {
		return err
	}
	for _, d := range inputs {
		_ = os.Remove(d.StoragePath)
		_ = os.Remove(d.IndexPath)
	}
	e.log.Infow("compacted", "type", e.typeName, "inputs", len(inputs), "produced_output", hasOutput)
	return nil
}

// Close releases the WAL file handle. SSTable and manifest file handles
// are opened and closed per call, so there is nothing else to release.
func (e *Engine[T]) Close() error {
	return e.mem.Close()
}
