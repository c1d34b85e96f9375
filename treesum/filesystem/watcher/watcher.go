// Package watcher keeps a tree fingerprint current by re-running the engine
// when fsnotify reports changes under the root.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem"
	"github.com/ZanzyTHEbar/treesum/treesum/fingerprint"
	"github.com/ZanzyTHEbar/treesum/treesum/trees"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	DefaultDebounceDelay    = 250 * time.Millisecond
	DefaultMaxDebounceDelay = 5 * time.Second
)

// ChangeFunc receives every run whose fingerprint differs from the previous one.
// The first run is always reported.
type ChangeFunc func(res *fingerprint.Result)

// Config tunes the watcher
type Config struct {
	DebounceDelay    time.Duration
	MaxDebounceDelay time.Duration
	Logger           zerolog.Logger
}

// Watcher re-fingerprints a root after filesystem changes settle
type Watcher struct {
	engine *fingerprint.Engine
	config Config
	logger zerolog.Logger
}

// New creates a watcher driving engine
func New(engine *fingerprint.Engine, config Config) *Watcher {
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounceDelay
	}
	if config.MaxDebounceDelay < 0 {
		config.MaxDebounceDelay = 0
	}
	return &Watcher{
		engine: engine,
		config: config,
		logger: config.Logger.With().Str("component", "watcher").Logger(),
	}
}

// session holds the state of one Run call
type session struct {
	engine    *fingerprint.Engine
	root      string
	cacheFile string
	policy    *filesystem.SkipPolicy
	fsw       *fsnotify.Watcher
	deb       *Debouncer
	logger    zerolog.Logger
}

// Run fingerprints root, then keeps watching it until ctx is done. Failed
// runs after the first are logged and retried on the next change.
func (w *Watcher) Run(ctx context.Context, root string, onChange ChangeFunc) error {
	canonical, err := filesystem.CanonicalRoot(root)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	deb := NewDebouncer(w.config.DebounceDelay, w.config.MaxDebounceDelay)
	defer deb.Close()

	s := &session{
		engine:    w.engine,
		root:      canonical,
		cacheFile: filesystem.ResolvePath(w.engine.CachePath(canonical)),
		policy:    w.engine.SkipPolicy(canonical, w.logger),
		fsw:       fsw,
		deb:       deb,
		logger:    w.logger.With().Str("root", canonical).Logger(),
	}
	if err := s.addTree(canonical); err != nil {
		return err
	}

	res, err := w.engine.Run(ctx, canonical)
	if err != nil {
		return err
	}
	last := res.Fingerprint
	onChange(res)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			s.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.handleError(err)

		case n := <-deb.C():
			s.logger.Debug().Int("events", n).Msg("change settled, re-running")
			res, err := w.engine.Run(ctx, canonical)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error().Err(err).Msg("fingerprint run failed")
				continue
			}
			if res.Fingerprint != last {
				last = res.Fingerprint
				onChange(res)
			}
		}
	}
}

// handleEvent schedules a run for events that can affect the fingerprint
func (s *session) handleEvent(event fsnotify.Event) {
	if s.relevant(event) {
		s.deb.Add()
	}
}

// handleError logs err; a queue overflow also schedules a run since events were lost
func (s *session) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		s.deb.Add()
	}
	s.logger.Warn().Err(err).Msg("watch error")
}

// relevant filters an event and registers newly created directories.
func (s *session) relevant(event fsnotify.Event) bool {
	if !s.inScope(event.Name) {
		return false
	}

	if event.Name == filepath.Join(s.root, s.engine.IgnoreFile()) {
		s.reload()
		return true
	}

	if event.Has(fsnotify.Create) {
		if err := s.addTree(event.Name); err != nil {
			s.logger.Debug().Err(err).Str("path", event.Name).Msg("not watching new entry")
		}
	}
	return true
}

// reload rebuilds the skip policy and re-registers the tree under it.
// Directories that became pruned stay watched; their events are filtered out.
func (s *session) reload() {
	s.policy = s.engine.SkipPolicy(s.root, s.logger)
	if err := s.addTree(s.root); err != nil {
		s.logger.Warn().Err(err).Msg("failed to re-register directories")
	}
	s.logger.Info().Msg("ignore rules reloaded")
}

// inScope reports whether path could contribute to the fingerprint
func (s *session) inScope(path string) bool {
	// the cache file and its temporary siblings
	if s.cacheFile != "" && strings.HasPrefix(path, s.cacheFile) {
		return false
	}
	rel, err := trees.CacheKey(s.root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if s.policy.SkipDir(strings.Join(parts[:i], "/"), parts[i-1], i) {
			return false
		}
	}
	return !s.policy.SkipFile(rel)
}

// addTree watches dir and every directory below it the policy keeps
func (s *session) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root {
			rel, err := trees.CacheKey(s.root, path)
			if err != nil {
				return filepath.SkipDir
			}
			if s.policy.SkipDir(rel, d.Name(), strings.Count(rel, "/")+1) {
				return filepath.SkipDir
			}
		}
		if err := s.fsw.Add(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
		}
		return nil
	})
}
