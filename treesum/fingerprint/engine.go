package fingerprint

import (
	"context"
	"path/filepath"
	"time"

	internal "github.com/ZanzyTHEbar/treesum/treesum"
	"github.com/ZanzyTHEbar/treesum/treesum/cache"
	"github.com/ZanzyTHEbar/treesum/treesum/config"
	"github.com/ZanzyTHEbar/treesum/treesum/filesystem"
	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/hashing"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures an Engine
type Options struct {
	CacheDir          string
	Algorithm         string
	Workers           int
	IgnoreFile        string
	UseDefaultIgnores bool
	NoCache           bool // neither read nor write the cache
	Logger            zerolog.Logger
}

// OptionsFromConfig maps the application config onto engine options
func OptionsFromConfig(cfg *config.Config, logger zerolog.Logger) Options {
	return Options{
		CacheDir:          cfg.CacheDir,
		Algorithm:         cfg.Algorithm,
		Workers:           cfg.Workers,
		IgnoreFile:        cfg.IgnoreFile,
		UseDefaultIgnores: cfg.UseDefaultIgnores,
		Logger:            logger,
	}
}

// DefaultOptions returns the options used when no config is given
func DefaultOptions() Options {
	return Options{
		CacheDir:          internal.DefaultCacheDir,
		Algorithm:         internal.DefaultAlgorithm,
		IgnoreFile:        internal.DefaultIgnoreFile,
		UseDefaultIgnores: true,
		Logger:            zerolog.Nop(),
	}
}

// Result describes one completed run
type Result struct {
	Root        string
	Fingerprint string
	Algorithm   string
	CachePath   string
	Files       int
	Reused      int
	Recomputed  int
	Dropped     int // cache entries not seen in this run
	Walk        filesystem.WalkStats
	Duration    time.Duration
}

// Engine computes tree fingerprints backed by the metadata cache
type Engine struct {
	opts   Options
	alg    hashing.Algorithm
	hasher *hashing.Hasher
	logger zerolog.Logger
}

// NewEngine validates opts and builds an engine
func NewEngine(opts Options) (*Engine, error) {
	alg, err := hashing.Lookup(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = hashing.DefaultWorkers()
	}
	if opts.CacheDir == "" {
		opts.CacheDir = internal.DefaultCacheDir
	}
	if opts.IgnoreFile == "" {
		opts.IgnoreFile = internal.DefaultIgnoreFile
	}
	return &Engine{
		opts:   opts,
		alg:    alg,
		hasher: hashing.NewHasher(alg, opts.Workers, opts.Logger),
		logger: opts.Logger,
	}, nil
}

// CachePath returns the cache file used for a canonical root
func (e *Engine) CachePath(canonicalRoot string) string {
	return cache.Path(e.opts.CacheDir, canonicalRoot)
}

// SkipPolicy loads the ignore document under a canonical root and builds the
// policy a run would apply to it. A cache directory inside the root is always
// pruned; when the cache directory is the root itself only the cache file is.
func (e *Engine) SkipPolicy(canonicalRoot string, logger zerolog.Logger) *filesystem.SkipPolicy {
	rules := config.LoadIgnoreRules(canonicalRoot, e.opts.IgnoreFile, logger)
	policy := filesystem.NewSkipPolicy(rules, e.opts.UseDefaultIgnores)

	cacheDir := filesystem.ResolvePath(e.opts.CacheDir)
	if policy.ExcludeUnder(canonicalRoot, cacheDir) {
		logger.Debug().Str("cache_dir", cacheDir).Msg("cache directory lies inside the root, pruning it")
	} else if cacheDir == canonicalRoot {
		policy.ExcludeUnder(canonicalRoot, filepath.Join(cacheDir, filepath.Base(e.CachePath(canonicalRoot))))
	}
	return policy
}

// IgnoreFile returns the name of the ignore document looked up in each root
func (e *Engine) IgnoreFile() string {
	return e.opts.IgnoreFile
}

// Run fingerprints the tree at root. Any failure aborts the run before the
// cache is rewritten.
func (e *Engine) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	logger := e.logger.With().Str("run_id", uuid.New().String()).Logger()

	canonical, err := filesystem.CanonicalRoot(root)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Root:      canonical,
		Algorithm: e.alg.Name,
		CachePath: e.CachePath(canonical),
	}
	logger = logger.With().Str("root", canonical).Logger()

	policy := e.SkipPolicy(canonical, logger)

	store := cache.NewStore()
	if !e.opts.NoCache {
		store, err = cache.Read(result.CachePath, e.alg.Name, canonical, logger)
		if err != nil {
			return nil, err
		}
	}

	// The store is only touched here, sequentially, during the walk.
	var records []*trees.FileRecord
	walker := filesystem.NewWalker(policy, logger)
	err = walker.Walk(canonical, func(rec *trees.FileRecord) error {
		if store.Reconcile(rec) == trees.Reuse {
			result.Reused++
		} else {
			result.Recomputed++
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Walk = walker.Stats()
	result.Files = len(records)
	// stale entries were removed by Reconcile; what remains beyond the reused ones was not seen
	result.Dropped = store.Len() - result.Reused

	SortRecords(records, e.opts.Workers)

	if err := e.hasher.HashAll(ctx, records, hashing.RecomputeSet(records)); err != nil {
		return nil, err
	}

	result.Fingerprint, err = Aggregate(e.alg, records)
	if err != nil {
		return nil, err
	}

	if !e.opts.NoCache {
		if _, err := cache.Write(result.CachePath, e.alg.Name, canonical, records); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	logger.Info().
		Str("fingerprint", result.Fingerprint).
		Int("files", result.Files).
		Int("reused", result.Reused).
		Int("recomputed", result.Recomputed).
		Int("dropped", result.Dropped).
		Dur("duration", result.Duration).
		Msg("fingerprint computed")

	return result, nil
}
