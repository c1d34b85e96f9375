package hashing

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5Hex(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func writeRecords(t *testing.T, n int) []*trees.FileRecord {
	t.Helper()
	root := t.TempDir()
	records := make([]*trees.FileRecord, 0, n)
	for i := range n {
		path := filepath.Join(root, fmt.Sprintf("file%03d.txt", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("content %d", i)), 0o644))
		info, err := os.Lstat(path)
		require.NoError(t, err)
		records = append(records, trees.NewFileRecord(path, filepath.Base(path), info))
	}
	return records
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"md5", "sha256", "xxhash", "blake3", " MD5 "} {
		alg, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, alg.New, name)
	}

	_, err := Lookup("crc32")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfig))

	assert.Equal(t, []string{"blake3", "md5", "sha256", "xxhash"}, Names())
}

func TestAlgorithmSum(t *testing.T) {
	md5Alg, _ := Lookup("md5")
	assert.Equal(t, md5Hex("x"), md5Alg.Sum([]byte("x")))

	shaAlg, _ := Lookup("sha256")
	want := sha256.Sum256([]byte("x"))
	assert.Equal(t, hex.EncodeToString(want[:]), shaAlg.Sum([]byte("x")))

	xx, _ := Lookup("xxhash")
	assert.Len(t, xx.Sum([]byte("x")), 16)

	b3, _ := Lookup("blake3")
	assert.Len(t, b3.Sum([]byte("x")), 64)
}

func TestHashFile(t *testing.T) {
	alg, _ := Lookup("md5")
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	sum, err := alg.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, md5Hex("x"), sum)

	_, err = alg.HashFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrIO))
}

func TestRecomputeSet(t *testing.T) {
	records := []*trees.FileRecord{
		{CacheKey: "a"},
		{CacheKey: "b", Checksum: "cached"},
		{CacheKey: "c"},
	}
	set := RecomputeSet(records)
	assert.Equal(t, []uint32{0, 2}, set.ToArray())
}

func TestHasher_HashAll(t *testing.T) {
	alg, _ := Lookup("md5")

	t.Run("fills only records in the set", func(t *testing.T) {
		records := writeRecords(t, 50)
		records[7].Checksum = "keep-me"

		hasher := NewHasher(alg, 4, zerolog.Nop())
		require.NoError(t, hasher.HashAll(context.Background(), records, RecomputeSet(records)))

		for i, rec := range records {
			if i == 7 {
				assert.Equal(t, "keep-me", rec.Checksum)
				continue
			}
			assert.Equal(t, md5Hex(fmt.Sprintf("content %d", i)), rec.Checksum, rec.CacheKey)
		}
	})

	t.Run("empty set is a no-op", func(t *testing.T) {
		records := []*trees.FileRecord{{CacheKey: "a", Checksum: "x"}}
		hasher := NewHasher(alg, 0, zerolog.Nop())
		require.NoError(t, hasher.HashAll(context.Background(), records, RecomputeSet(records)))
		assert.Equal(t, "x", records[0].Checksum)
	})

	t.Run("read failure aborts the run", func(t *testing.T) {
		records := writeRecords(t, 20)
		require.NoError(t, os.Remove(records[5].Path))

		hasher := NewHasher(alg, 2, zerolog.Nop())
		err := hasher.HashAll(context.Background(), records, RecomputeSet(records))
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrIO))
		assert.Contains(t, err.Error(), records[5].Path)
	})

	t.Run("cancelled context stops work", func(t *testing.T) {
		records := writeRecords(t, 10)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		hasher := NewHasher(alg, 2, zerolog.Nop())
		err := hasher.HashAll(ctx, records, RecomputeSet(records))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
