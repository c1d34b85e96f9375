package filesystem

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/treesum/treesum/config"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreDirs are pruned when found directly under the root
var DefaultIgnoreDirs = []string{".git", "tmp", "log", ".idea", "avatars"}

// DefaultIgnorePaths are excluded wherever they appear in the tree
var DefaultIgnorePaths = []string{"spec/examples.txt"}

// IgnoreChecker matches slash separated paths relative to the root
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

// SkipPolicy decides which entries the walker leaves out.
//
// Directory names are matched exactly and only at depth 1. Path suffixes match
// on component boundaries at any depth. Patterns use gitignore syntax.
// Excluded paths are anchored at the root and prune exactly that entry.
type SkipPolicy struct {
	dirs     map[string]struct{}
	excluded map[string]struct{}
	suffixes *trees.SuffixIndex
	patterns IgnoreChecker
}

// NewSkipPolicy merges the defaults (when useDefaults is set) with rules
func NewSkipPolicy(rules config.IgnoreRules, useDefaults bool) *SkipPolicy {
	p := &SkipPolicy{
		dirs:     make(map[string]struct{}),
		excluded: make(map[string]struct{}),
		suffixes: trees.NewSuffixIndex(),
	}

	if useDefaults {
		for _, d := range DefaultIgnoreDirs {
			p.dirs[d] = struct{}{}
		}
		for _, s := range DefaultIgnorePaths {
			p.suffixes.Insert(s)
		}
	}

	for _, d := range rules.IgnoreDirs {
		d = strings.Trim(strings.TrimSpace(d), "/")
		switch {
		case d == "":
		case strings.Contains(d, "/"):
			// a nested name can only mean the path from the root
			p.Exclude(d)
		default:
			p.dirs[d] = struct{}{}
		}
	}
	for _, s := range rules.IgnorePaths {
		p.suffixes.Insert(s)
	}

	var lines []string
	for _, l := range rules.IgnorePatterns {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > 0 {
		p.patterns = ignore.CompileIgnoreLines(lines...)
	}

	return p
}

// Exclude prunes the entry at relPath (slash separated, relative to the root).
func (p *SkipPolicy) Exclude(relPath string) {
	relPath = strings.Trim(path.Clean("/"+filepath.ToSlash(relPath)), "/")
	if relPath != "" {
		p.excluded[relPath] = struct{}{}
	}
}

// ExcludeUnder prunes target when it lies strictly inside root. Both paths
// must be canonical. It reports whether an exclusion was added.
func (p *SkipPolicy) ExcludeUnder(root, target string) bool {
	rel, err := trees.CacheKey(root, target)
	if err != nil {
		return false
	}
	p.Exclude(rel)
	return true
}

// SkipDir reports whether a directory and its subtree must be pruned.
// relPath is slash separated and depth counts components below the root.
func (p *SkipPolicy) SkipDir(relPath, name string, depth int) bool {
	if depth == 1 {
		if _, ok := p.dirs[name]; ok {
			return true
		}
	}
	return p.matches(relPath, true)
}

// SkipFile reports whether a file must be left out
func (p *SkipPolicy) SkipFile(relPath string) bool {
	return p.matches(relPath, false)
}

func (p *SkipPolicy) matches(relPath string, isDir bool) bool {
	if _, ok := p.excluded[relPath]; ok {
		return true
	}
	if p.suffixes.Match(relPath) {
		return true
	}
	if p.patterns == nil {
		return false
	}
	if p.patterns.MatchesPath(relPath) {
		return true
	}
	return isDir && p.patterns.MatchesPath(relPath+"/")
}
