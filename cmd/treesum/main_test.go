package main

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5Hex(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"a.txt":     "x",
		"b.txt":     "y",
		".git/HEAD": "ref: refs/heads/main",
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRootCommand(t *testing.T) {
	root := sampleTree(t)
	cacheDir := t.TempDir()
	want := md5Hex(md5Hex("x") + " a.txt\n" + md5Hex("y") + " b.txt\n")

	t.Run("prints only the fingerprint", func(t *testing.T) {
		out, _, err := execute(t, "--cache-dir", cacheDir, root)
		require.NoError(t, err)
		assert.Equal(t, want+"\n", out)

		entries, err := os.ReadDir(cacheDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("stats go to stderr", func(t *testing.T) {
		out, errOut, err := execute(t, "--cache-dir", cacheDir, "--stats", root)
		require.NoError(t, err)
		assert.Equal(t, want+"\n", out)
		assert.Contains(t, errOut, "reused:      2")
	})

	t.Run("no-cache leaves the cache dir alone", func(t *testing.T) {
		empty := t.TempDir()
		out, _, err := execute(t, "--cache-dir", empty, "--no-cache", root)
		require.NoError(t, err)
		assert.Equal(t, want+"\n", out)

		entries, err := os.ReadDir(empty)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("no-default-ignores includes .git", func(t *testing.T) {
		out, _, err := execute(t, "--cache-dir", cacheDir, "--no-default-ignores", root)
		require.NoError(t, err)
		assert.NotEqual(t, want, strings.TrimSpace(out))
	})

	t.Run("algorithm flag", func(t *testing.T) {
		out, _, err := execute(t, "--cache-dir", cacheDir, "--algorithm", "sha256", root)
		require.NoError(t, err)
		assert.Len(t, strings.TrimSpace(out), 64)
	})

	t.Run("config file", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "treesum.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("algorithm: blake3\ncache_dir: "+cacheDir+"\n"), 0o644))
		out, _, err := execute(t, "--config", cfgPath, root)
		require.NoError(t, err)
		assert.Len(t, strings.TrimSpace(out), 64)
	})
}

func TestRootCommandErrors(t *testing.T) {
	root := sampleTree(t)

	_, _, err := execute(t)
	assert.Error(t, err)

	_, _, err = execute(t, "--cache-dir", t.TempDir(), "--algorithm", "crc32", root)
	assert.ErrorIs(t, err, common.ErrConfig)

	_, _, err = execute(t, "--cache-dir", t.TempDir(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, common.ErrIO)

	_, _, err = execute(t, "--config", filepath.Join(root, "nope.yaml"), root)
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	for _, exp := range []string{"treesum version:", "Git commit:", "Build date:", "Go version:"} {
		assert.Contains(t, out, exp)
	}
}
