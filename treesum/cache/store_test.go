package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	dir    string
	path   string
	now    time.Time
	logger zerolog.Logger
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.path = filepath.Join(s.dir, "nested", "root.cache")
	s.now = time.Now()
	s.logger = zerolog.Nop()
}

func (s *StoreTestSuite) record(key, checksum string, size int64) *trees.FileRecord {
	return &trees.FileRecord{
		Path:     "/scan/" + key,
		CacheKey: key,
		Checksum: checksum,
		Size:     size,
		ModTime:  s.now,
		Mode:     0o644,
	}
}

func (s *StoreTestSuite) TestReadMissingIsEmpty() {
	store, err := Read(s.path, "md5", "/scan", s.logger)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, store.Len())
}

func (s *StoreTestSuite) TestReadCorruptIsCacheError() {
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(s.path), 0o755))
	require.NoError(s.T(), os.WriteFile(s.path, []byte("definitely not gob"), 0o644))

	store, err := Read(s.path, "md5", "/scan", s.logger)
	require.Error(s.T(), err)
	assert.Nil(s.T(), store)
	assert.True(s.T(), errors.Is(err, common.ErrCache))
}

func (s *StoreTestSuite) TestWriteThenRead() {
	records := []*trees.FileRecord{
		s.record("a.txt", "aaa", 1),
		s.record("dir/b.txt", "bbb", 2),
	}

	written, err := Write(s.path, "md5", "/scan", records)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, written.Len())

	store, err := Read(s.path, "md5", "/scan", s.logger)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, store.Len())

	got, ok := store.Lookup("dir/b.txt")
	require.True(s.T(), ok)
	assert.Equal(s.T(), "bbb", got.Checksum)
	assert.Equal(s.T(), "/scan/dir/b.txt", got.Path)
	assert.Equal(s.T(), int64(2), got.Size)
	assert.True(s.T(), s.now.Equal(got.ModTime))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(s.T(), err)
	assert.Len(s.T(), entries, 1)
}

func (s *StoreTestSuite) TestWriteReplacesInsteadOfMerging() {
	_, err := Write(s.path, "md5", "/scan", []*trees.FileRecord{
		s.record("gone.txt", "ggg", 1),
		s.record("kept.txt", "kkk", 1),
	})
	require.NoError(s.T(), err)

	_, err = Write(s.path, "md5", "/scan", []*trees.FileRecord{s.record("kept.txt", "kkk", 1)})
	require.NoError(s.T(), err)

	store, err := Read(s.path, "md5", "/scan", s.logger)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, store.Len())
	_, ok := store.Lookup("gone.txt")
	assert.False(s.T(), ok)
}

func (s *StoreTestSuite) TestReadOtherAlgorithmIsEmpty() {
	_, err := Write(s.path, "sha256", "/scan", []*trees.FileRecord{s.record("a.txt", "aaa", 1)})
	require.NoError(s.T(), err)

	store, err := Read(s.path, "md5", "/scan", s.logger)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, store.Len())
}

func (s *StoreTestSuite) TestReadOtherRootIsEmpty() {
	_, err := Write(s.path, "md5", "/scan", []*trees.FileRecord{s.record("a.txt", "aaa", 1)})
	require.NoError(s.T(), err)

	store, err := Read(s.path, "md5", "/elsewhere/scan", s.logger)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, store.Len())
}

func (s *StoreTestSuite) TestReconcile() {
	store := NewStore()
	store.entries["same.txt"] = s.record("same.txt", "cached", 10)
	store.entries["grown.txt"] = s.record("grown.txt", "old", 10)
	store.entries["touched.txt"] = s.record("touched.txt", "old", 10)
	store.entries["chmod.txt"] = s.record("chmod.txt", "old", 10)

	same := s.record("same.txt", "", 10)
	assert.Equal(s.T(), trees.Reuse, store.Reconcile(same))
	assert.Equal(s.T(), "cached", same.Checksum)

	grown := s.record("grown.txt", "", 11)
	assert.Equal(s.T(), trees.Recompute, store.Reconcile(grown))
	assert.Empty(s.T(), grown.Checksum)

	touched := s.record("touched.txt", "", 10)
	touched.ModTime = s.now.Add(time.Second)
	assert.Equal(s.T(), trees.Recompute, store.Reconcile(touched))

	chmod := s.record("chmod.txt", "", 10)
	chmod.Mode = 0o755
	assert.Equal(s.T(), trees.Recompute, store.Reconcile(chmod))

	fresh := s.record("fresh.txt", "", 1)
	assert.Equal(s.T(), trees.Recompute, store.Reconcile(fresh))

	// stale entries are removed, valid ones stay
	assert.Equal(s.T(), 1, store.Len())
	_, ok := store.Lookup("same.txt")
	assert.True(s.T(), ok)
	_, ok = store.Lookup("grown.txt")
	assert.False(s.T(), ok)
}

func TestPath(t *testing.T) {
	a := Path("/cache", "/home/alice/project")
	b := Path("/cache", "/home/bob/project")
	c := Path("/cache", "/home/alice/project")

	assert.NotEqual(t, a, b, "roots sharing a base name must not collide")
	assert.Equal(t, a, c)
	assert.Equal(t, "/cache", filepath.Dir(a))
	assert.Regexp(t, `^project-[0-9a-f]{16}\.cache$`, filepath.Base(a))
	assert.Regexp(t, `^root-[0-9a-f]{16}\.cache$`, filepath.Base(Path("/cache", "/")))
}
