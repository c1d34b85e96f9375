package hashing

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// RecomputeSet returns the indices of records that still need a checksum
func RecomputeSet(records []*trees.FileRecord) *roaring.Bitmap {
	set := roaring.New()
	for i, rec := range records {
		if rec.NeedsChecksum() {
			set.Add(uint32(i))
		}
	}
	return set
}

// Hasher fills in checksums for a record set using a bounded worker pool
type Hasher struct {
	alg        Algorithm
	maxWorkers int
	logger     zerolog.Logger
}

// DefaultWorkers is the worker count used when none is configured
func DefaultWorkers() int {
	return max(runtime.NumCPU(), 1)
}

// NewHasher creates a hasher. workers <= 0 selects DefaultWorkers.
func NewHasher(alg Algorithm, workers int, logger zerolog.Logger) *Hasher {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Hasher{
		alg:        alg,
		maxWorkers: workers,
		logger:     logger,
	}
}

// Algorithm returns the digest used by this hasher
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

// HashAll computes checksums for every index in set. Each task writes only
// records[i], so no locking is needed. The first failure cancels the
// remaining tasks and is returned.
func (h *Hasher) HashAll(ctx context.Context, records []*trees.FileRecord, set *roaring.Bitmap) error {
	if set.IsEmpty() {
		return nil
	}

	start := time.Now()
	var hashed, bytes int64

	p := pool.New().
		WithMaxGoroutines(h.maxWorkers).
		WithErrors().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	it := set.Iterator()
	for it.HasNext() {
		rec := records[it.Next()]
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := h.alg.HashFile(rec.Path)
			if err != nil {
				return err
			}
			rec.Resolve(sum)
			atomic.AddInt64(&hashed, 1)
			atomic.AddInt64(&bytes, rec.Size)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		h.logger.Debug().Err(err).Msg("hashing aborted")
		return err
	}

	h.logger.Debug().
		Str("algorithm", h.alg.Name).
		Int64("files", atomic.LoadInt64(&hashed)).
		Int64("bytes", atomic.LoadInt64(&bytes)).
		Int("workers", h.maxWorkers).
		Dur("duration", time.Since(start)).
		Msg("hashing completed")

	return nil
}
