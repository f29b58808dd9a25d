// Package manifest persists the current set of SSTable descriptors as a
// line-oriented text file, one descriptor per line, in age order from
// oldest to newest.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ChinmayNoob/lsmkv/dberr"
	"github.com/ChinmayNoob/lsmkv/sstable"
)

// Manifest guards the on-disk manifest file with a single mutex; callers
// coordinate the SSTable list itself with their own readers-writer lock.
type Manifest struct {
	mu   sync.Mutex
	path string
}

// Open loads path, creating an empty manifest file if it does not exist,
// and returns the parsed descriptor list in file order (oldest first).
func Open(path string) (*Manifest, []sstable.Descriptor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, nil, dberr.NewIOError("open-manifest", path, err)
	}
	defer func() { _ = f.Close() }()

	var descriptors []sstable.Descriptor
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		d, err := parseLine(text)
		if err != nil {
			return nil, nil, &dberr.ManifestCorruptError{Path: path, Line: line, Text: text}
		}
		descriptors = append(descriptors, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, dberr.NewIOError("read-manifest", path, err)
	}

	return &Manifest{path: path}, descriptors, nil
}

func parseLine(text string) (sstable.Descriptor, error) {
	fields := strings.Fields(text)
	if len(fields) != 6 {
		return sstable.Descriptor{}, fmt.Errorf("expected 6 fields, got %d", len(fields))
	}
	count, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return sstable.Descriptor{}, err
	}
	size, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return sstable.Descriptor{}, err
	}
	return sstable.Descriptor{
		StoragePath: fields[0],
		IndexPath:   fields[1],
		MinKey:      fields[2],
		MaxKey:      fields[3],
		Count:       count,
		SizeBytes:   size,
	}, nil
}

func formatLine(d sstable.Descriptor) string {
	return fmt.Sprintf("%s %s %s %s %d %d\n", d.StoragePath, d.IndexPath, d.MinKey, d.MaxKey, d.Count, d.SizeBytes)
}

// Append adds one descriptor line to the end of the manifest and flushes
// it durably, for use by the flush path (§4.6 step 3: the manifest must
// contain the new SSTable before the WAL is truncated).
func (m *Manifest) Append(d sstable.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return dberr.NewIOError("append-manifest", m.path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(formatLine(d)); err != nil {
		return dberr.NewIOError("append-manifest", m.path, err)
	}
	return f.Sync()
}

// Rewrite replaces the manifest contents atomically (write-temp-then-
// rename), for use by compaction when the SSTable set changes wholesale.
func (m *Manifest) Rewrite(all []sstable.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return dberr.NewIOError("rewrite-manifest", m.path, err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, d := range all {
		if _, err := w.WriteString(formatLine(d)); err != nil {
			return dberr.NewIOError("rewrite-manifest", m.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return dberr.NewIOError("rewrite-manifest", m.path, err)
	}
	if err := tmp.Sync(); err != nil {
		return dberr.NewIOError("rewrite-manifest", m.path, err)
	}
	if err := tmp.Close(); err != nil {
		return dberr.NewIOError("rewrite-manifest", m.path, err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return dberr.NewIOError("rewrite-manifest", m.path, err)
	}
	ok = true
	return nil
}
