// SPDX-License-Identifier: MPL-2.0

// Package watch rebuilds a crate when its sources change.
//
// A Watcher monitors a directory tree and calls a rebuild function once the
// tree has been quiet for the debounce period. Rebuilds never overlap: events
// that arrive during a rebuild are collected and trigger exactly one
// follow-up run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 400 * time.Millisecond

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("watch: Run called more than once")

var (
	// DefaultPatterns select the files that affect a cargo build.
	DefaultPatterns = []string{"**/*.rs", "**/Cargo.toml", "Cargo.lock", "build.rs"}

	// The build writes into target/, so it must never trigger itself.
	defaultIgnores = []string{
		"target/**",
		"**/.git/**",
		"**/.idea/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// RebuildFunc is called with the sorted paths, relative to the root, that
	// changed since the previous call.
	RebuildFunc func(ctx context.Context, changed []string) error

	// Option configures a Watcher.
	Option func(*Watcher)

	// Watcher monitors a crate directory. Run must be called exactly once.
	Watcher struct {
		root     string
		patterns []string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		fsw      *fsnotify.Watcher
		started  atomic.Bool
	}
)

// WithPatterns adds glob patterns, relative to the root, whose changes
// trigger a rebuild (for example the resource directory).
func WithPatterns(patterns ...string) Option {
	return func(w *Watcher) { w.patterns = append(w.patterns, patterns...) }
}

// WithIgnore adds glob patterns that never trigger a rebuild.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) { w.ignores = append(w.ignores, patterns...) }
}

// WithDebounce sets the quiet period; values <= 0 keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for rebuild progress and watcher errors.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New watches every non-ignored directory under root.
func New(root string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", root, err)
	}
	w := &Watcher{
		root:     abs,
		patterns: slices.Clone(DefaultPatterns),
		ignores:  slices.Clone(defaultIgnores),
		debounce: defaultDebounce,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, pat := range slices.Concat(w.patterns, w.ignores) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := w.addTree(w.root); err != nil {
		_ = w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled or the watcher breaks. Cancellation is
// not an error; the context passed to rebuild is cancelled as well.
func (w *Watcher) Run(ctx context.Context, rebuild RebuildFunc) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer w.fsw.Close()

	ctx, cancel := context.WithCancel(ctx)
	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		ready   = make(chan struct{}, 1)
		wg      sync.WaitGroup
	)
	defer wg.Wait()
	defer cancel()

	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ready:
			}
			mu.Lock()
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			mu.Unlock()
			if len(changed) == 0 {
				continue
			}
			w.logger.Info("sources changed, rebuilding", "files", len(changed), "first", changed[0])
			if err := rebuild(ctx, changed); err != nil && ctx.Err() == nil {
				w.logger.Error("rebuild failed", "err", err)
			}
		}
	})

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			// A full buffer means a follow-up run is already queued.
			select {
			case ready <- struct{}{}:
			default:
			}

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Op == fsnotify.Chmod {
				continue
			}
			rel := w.rel(evt.Name)
			if w.ignored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						w.logger.Warn("cannot watch new directory", "dir", rel, "err", err)
					}
				}
			}
			if !w.matches(rel) {
				continue
			}
			mu.Lock()
			pending[rel] = struct{}{}
			mu.Unlock()
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

// addTree registers dir and every non-ignored directory below it.
// Unreadable directories are skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.rel(path); rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel) || matchAny(w.ignores, rel+"/")
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
