package trees

import (
	"path"
	"strings"

	"github.com/armon/go-radix"
)

// SuffixIndex matches slash separated relative paths against a set of path suffixes.
// Matching is component-wise: "spec/examples.txt" matches "a/spec/examples.txt"
// but not "a/myspec/examples.txt".
//
// Suffixes are stored with their components reversed so a suffix lookup becomes
// a prefix walk over the radix tree.
type SuffixIndex struct {
	tree *radix.Tree
}

// NewSuffixIndex builds an index from the given suffixes. Empty entries are ignored.
func NewSuffixIndex(suffixes ...string) *SuffixIndex {
	idx := &SuffixIndex{tree: radix.New()}
	for _, s := range suffixes {
		idx.Insert(s)
	}
	return idx
}

// Insert adds a suffix to the index
func (idx *SuffixIndex) Insert(suffix string) {
	key := reverseComponents(normalizeSuffix(suffix))
	if key == "" {
		return
	}
	idx.tree.Insert(key, suffix)
}

// Len returns the number of distinct suffixes
func (idx *SuffixIndex) Len() int {
	return idx.tree.Len()
}

// Match reports whether relPath ends with any indexed suffix on a component boundary.
func (idx *SuffixIndex) Match(relPath string) bool {
	if idx == nil || idx.tree.Len() == 0 {
		return false
	}
	reversed := reverseComponents(normalizeSuffix(relPath))
	matched := false
	idx.tree.WalkPath(reversed, func(key string, _ interface{}) bool {
		if len(key) == len(reversed) || reversed[len(key)] == '/' {
			matched = true
			return true
		}
		return false
	})
	return matched
}

func normalizeSuffix(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(path.Clean("/"+p), "/")
	return p
}

func reverseComponents(p string) string {
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
