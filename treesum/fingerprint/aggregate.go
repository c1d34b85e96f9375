// Package fingerprint orders file records and folds them into one digest for a tree.
package fingerprint

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/hashing"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/sourcegraph/conc/pool"
)

// minChunk keeps small inputs on a single sequential sort
const minChunk = 4096

func comparePath(a, b *trees.FileRecord) int {
	return strings.Compare(a.Path, b.Path)
}

// SortRecords orders records by full path using byte-wise comparison.
// Large inputs are split into chunks sorted concurrently, then merged pairwise.
func SortRecords(records []*trees.FileRecord, workers int) {
	n := len(records)
	if workers <= 1 || n <= minChunk {
		slices.SortFunc(records, comparePath)
		return
	}

	chunk := max((n+workers-1)/workers, minChunk)
	var bounds [][2]int
	for lo := 0; lo < n; lo += chunk {
		bounds = append(bounds, [2]int{lo, min(lo+chunk, n)})
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, b := range bounds {
		part := records[b[0]:b[1]]
		p.Go(func() {
			slices.SortFunc(part, comparePath)
		})
	}
	p.Wait()

	buf := make([]*trees.FileRecord, n)
	src, dst := records, buf
	for len(bounds) > 1 {
		next := make([][2]int, 0, (len(bounds)+1)/2)
		p := pool.New().WithMaxGoroutines(workers)
		for i := 0; i < len(bounds); i += 2 {
			if i+1 == len(bounds) {
				b := bounds[i]
				p.Go(func() { copy(dst[b[0]:b[1]], src[b[0]:b[1]]) })
				next = append(next, b)
				continue
			}
			left, right := bounds[i], bounds[i+1]
			p.Go(func() {
				mergeInto(dst[left[0]:right[1]], src[left[0]:left[1]], src[right[0]:right[1]])
			})
			next = append(next, [2]int{left[0], right[1]})
		}
		p.Wait()
		bounds = next
		src, dst = dst, src
	}

	if &src[0] != &records[0] {
		copy(records, src)
	}
}

func mergeInto(dst, a, b []*trees.FileRecord) {
	i, j, k := 0, 0, 0
	for i < len(a) && j < len(b) {
		if comparePath(b[j], a[i]) < 0 {
			dst[k] = b[j]
			j++
		} else {
			dst[k] = a[i]
			i++
		}
		k++
	}
	k += copy(dst[k:], a[i:])
	copy(dst[k:], b[j:])
}

// Aggregate folds sorted records into the tree fingerprint: one
// "<checksum> <cache key>\n" line per record, digested with alg.
// Records must already be sorted and every checksum resolved.
func Aggregate(alg hashing.Algorithm, records []*trees.FileRecord) (string, error) {
	var buf bytes.Buffer
	for _, rec := range records {
		if rec.Checksum == "" {
			return "", fmt.Errorf("record %s has no checksum", rec.CacheKey)
		}
		buf.WriteString(rec.Checksum)
		buf.WriteByte(' ')
		buf.WriteString(rec.CacheKey)
		buf.WriteByte('\n')
	}
	return alg.Sum(buf.Bytes()), nil
}
