// Package cache persists file records between runs so unchanged files are not re-hashed.
package cache

import (
	"bufio"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/rs/zerolog"
)

// formatVersion is bumped whenever the persisted layout changes
const formatVersion = 1

// file is the persisted layout of one cache file
type file struct {
	Version   int
	Algorithm string
	Root      string
	Entries   map[string]*trees.FileRecord
}

// Store maps cache keys to the records seen in the most recent successful run.
// It is owned by a single goroutine for the duration of a run.
type Store struct {
	entries map[string]*trees.FileRecord
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{entries: make(map[string]*trees.FileRecord)}
}

// Path returns the cache file for a canonical root inside cacheDir.
// The name carries the root's base name for readability and a digest of the
// full path so roots sharing a base name do not collide.
func Path(cacheDir, canonicalRoot string) string {
	sum := sha256.Sum256([]byte(canonicalRoot))
	base := filepath.Base(canonicalRoot)
	if base == string(filepath.Separator) || base == "." {
		base = "root"
	}
	return filepath.Join(cacheDir, fmt.Sprintf("%s-%s.cache", base, hex.EncodeToString(sum[:8])))
}

// Read loads the store at path for the canonical root. A missing or unopenable
// file yields an empty store. A file that fails to decode is a cache error. A
// file written for another root, algorithm or format version is discarded.
func Read(path, algorithm, root string, logger zerolog.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug().Err(err).Str("path", path).Msg("cache not readable, starting empty")
		}
		return NewStore(), nil
	}
	defer f.Close()

	var contents file
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&contents); err != nil {
		return nil, common.CacheError("decode", path, err)
	}

	if contents.Version != formatVersion || contents.Algorithm != algorithm || contents.Root != root {
		logger.Info().
			Str("path", path).
			Int("version", contents.Version).
			Str("algorithm", contents.Algorithm).
			Str("cached_root", contents.Root).
			Msg("cache written with different settings, starting empty")
		return NewStore(), nil
	}

	store := NewStore()
	for key, rec := range contents.Entries {
		if rec == nil {
			continue
		}
		store.entries[key] = rec
	}
	return store, nil
}

// Len returns the number of entries
func (s *Store) Len() int {
	return len(s.entries)
}

// Lookup returns the cached record for key
func (s *Store) Lookup(key string) (*trees.FileRecord, bool) {
	rec, ok := s.entries[key]
	return rec, ok
}

// Reconcile decides whether rec may reuse its cached checksum. On a metadata
// match the cached checksum and metadata are copied into rec. On a mismatch
// the stale entry is removed from the store and rec is marked for recompute.
func (s *Store) Reconcile(rec *trees.FileRecord) trees.Disposition {
	cached, ok := s.entries[rec.CacheKey]
	if !ok {
		rec.MarkRecompute()
		return trees.Recompute
	}

	if cached.Checksum != "" && rec.SameMetadata(cached) {
		rec.ReuseFrom(cached)
		return trees.Reuse
	}

	delete(s.entries, rec.CacheKey)
	rec.MarkRecompute()
	return trees.Recompute
}

// Write replaces the cache at path with a fresh mapping built from records.
// The file is written to a temporary sibling and renamed into place.
func Write(path, algorithm, root string, records []*trees.FileRecord) (*Store, error) {
	store := NewStore()
	for _, rec := range records {
		store.entries[rec.CacheKey] = rec
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.CacheError("create cache directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, common.CacheError("create temp cache file", dir, err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	contents := file{
		Version:   formatVersion,
		Algorithm: algorithm,
		Root:      root,
		Entries:   store.entries,
	}
	if err := gob.NewEncoder(w).Encode(&contents); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, common.CacheError("encode", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, common.CacheError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, common.CacheError("close", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, common.CacheError("replace", path, err)
	}

	return store, nil
}
