// Package hashing computes per-file content digests for a fingerprint run.
package hashing

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Algorithm is a named whole-file digest. Cached checksums are only valid
// for the algorithm that produced them.
type Algorithm struct {
	Name string
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"md5":    {Name: "md5", New: md5.New},
	"sha256": {Name: "sha256", New: sha256.New},
	"xxhash": {Name: "xxhash", New: func() hash.Hash { return xxhash.New() }},
	"blake3": {Name: "blake3", New: func() hash.Hash { return blake3.New() }},
}

// Lookup returns the algorithm registered under name (case-insensitive)
func Lookup(name string) (Algorithm, error) {
	alg, ok := algorithms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Algorithm{}, common.ConfigError("select algorithm",
			fmt.Errorf("unknown algorithm %q (available: %s)", name, strings.Join(Names(), ", ")))
	}
	return alg, nil
}

// Names lists the registered algorithm names in sorted order
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum returns the lowercase hex digest of data
func (a Algorithm) Sum(data []byte) string {
	h := a.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile streams the file at path through the digest.
// Open and read failures are returned as I/O errors.
func (a Algorithm) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", common.IOError("open", path, err)
	}
	defer file.Close()

	h := a.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", common.IOError("read", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
