package trees

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"
)

// Disposition is the invalidation decision for a record within one run
type Disposition int

const (
	Recompute Disposition = iota
	Reuse
)

func (d Disposition) String() string {
	switch d {
	case Reuse:
		return "reuse"
	case Recompute:
		return "recompute"
	default:
		return "unknown"
	}
}

// FileRecord holds one file's identity, metadata snapshot and checksum.
// Exported fields are persisted in the cache; disposition lives only for the current run.
type FileRecord struct {
	Path     string      // absolute path under the canonical root
	CacheKey string      // slash separated path relative to the root
	Checksum string      // lowercase hex digest, empty until resolved
	Size     int64       // size at scan time
	ModTime  time.Time   // modification time at scan time
	Mode     fs.FileMode // permission and mode bits at scan time

	disposition Disposition
}

// NewFileRecord snapshots info for path under the given cache key.
// The key comes from CacheKey and is never recomputed afterwards.
func NewFileRecord(path, cacheKey string, info fs.FileInfo) *FileRecord {
	return &FileRecord{
		Path:     path,
		CacheKey: cacheKey,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Mode:     info.Mode(),
	}
}

// CacheKey returns path relative to root with forward slashes.
func CacheKey(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", common.PrefixError(path, root, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", common.PrefixError(path, root, nil)
	}
	return filepath.ToSlash(rel), nil
}

// SameMetadata reports whether size, modification time and mode all match
func (r *FileRecord) SameMetadata(other *FileRecord) bool {
	return other != nil &&
		r.Size == other.Size &&
		r.ModTime.Equal(other.ModTime) &&
		r.Mode == other.Mode
}

// ReuseFrom copies the cached checksum and metadata into r and marks it reusable.
func (r *FileRecord) ReuseFrom(cached *FileRecord) {
	r.Size = cached.Size
	r.ModTime = cached.ModTime
	r.Mode = cached.Mode
	r.Checksum = cached.Checksum
	r.disposition = Reuse
}

// MarkRecompute clears any checksum so the hasher fills it in.
func (r *FileRecord) MarkRecompute() {
	r.Checksum = ""
	r.disposition = Recompute
}

// Disposition returns the invalidation decision for this run
func (r *FileRecord) Disposition() Disposition {
	return r.disposition
}

// NeedsChecksum reports whether the hasher still has to process this record
func (r *FileRecord) NeedsChecksum() bool {
	return r.Checksum == ""
}

// Resolve sets the checksum computed by the hasher. It is a no-op once set.
func (r *FileRecord) Resolve(checksum string) {
	if r.Checksum != "" {
		return
	}
	r.Checksum = checksum
}
