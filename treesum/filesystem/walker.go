package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/treesum/treesum/config"
	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/rs/zerolog"
)

// VisitFunc receives each discovered file. Returning an error aborts the walk.
type VisitFunc func(rec *trees.FileRecord) error

// WalkStats tracks what a walk saw
type WalkStats struct {
	Files       int64
	DirsPruned  int64
	FilesPruned int64
	Skipped     int64 // entries dropped because of stat/read errors or type
}

// Walker enumerates regular files under a root. Symbolic links are neither
// followed nor recorded.
type Walker struct {
	policy *SkipPolicy
	logger zerolog.Logger
	stats  WalkStats
}

// NewWalker creates a walker applying policy
func NewWalker(policy *SkipPolicy, logger zerolog.Logger) *Walker {
	if policy == nil {
		policy = NewSkipPolicy(config.IgnoreRules{}, false)
	}
	return &Walker{policy: policy, logger: logger}
}

// Stats returns counters from the last walk
func (w *Walker) Stats() WalkStats {
	return w.stats
}

// CanonicalRoot resolves root to an absolute path without symlinks and
// checks that it is a directory.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", common.IOError("resolve root", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", common.IOError("resolve root", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", common.IOError("stat root", resolved, err)
	}
	if !info.IsDir() {
		return "", common.IOError("stat root", resolved, fmt.Errorf("not a directory"))
	}
	return resolved, nil
}

// ResolvePath makes p absolute and resolves symlinks in its longest existing
// ancestor, so paths that do not exist yet compare equal to canonical roots.
func ResolvePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	var rest []string
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
	}
}

// Walk visits every non-skipped regular file under root, which must be canonical.
// Errors on individual entries are logged and skipped; an error reading the
// root itself or returned by visit is fatal.
func (w *Walker) Walk(root string, visit VisitFunc) error {
	w.stats = WalkStats{}
	start := time.Now()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return common.IOError("read directory", path, err)
			}
			w.stats.Skipped++
			w.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := trees.CacheKey(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			depth := strings.Count(rel, "/") + 1
			if w.policy.SkipDir(rel, d.Name(), depth) {
				w.stats.DirsPruned++
				w.logger.Trace().Str("path", rel).Msg("pruning directory")
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			// symlinks, sockets, devices
			w.stats.Skipped++
			return nil
		}

		if w.policy.SkipFile(rel) {
			w.stats.FilesPruned++
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			w.stats.Skipped++
			w.logger.Debug().Err(infoErr).Str("path", path).Msg("skipping file without metadata")
			return nil
		}

		w.stats.Files++
		return visit(trees.NewFileRecord(path, rel, info))
	})
	if err != nil {
		return err
	}

	stats := w.stats
	w.logger.Debug().
		Str("root", root).
		Int64("files", stats.Files).
		Int64("dirs_pruned", stats.DirsPruned).
		Int64("files_pruned", stats.FilesPruned).
		Int64("skipped", stats.Skipped).
		Dur("duration", time.Since(start)).
		Msg("walk completed")

	return nil
}

// Collect walks root and returns the discovered records in enumeration order
func (w *Walker) Collect(root string) ([]*trees.FileRecord, error) {
	var records []*trees.FileRecord
	err := w.Walk(root, func(rec *trees.FileRecord) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}
