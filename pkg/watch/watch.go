// Package watch translates filesystem activity under the project root into
// engine cache invalidations. Event bursts are debounced; one flush delivers
// the collapsed per-file signal set, so a save storm costs one invalidation
// pass.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/odvcencio/spyglass/pkg/errs"
	"github.com/odvcencio/spyglass/pkg/logging"
)

// DefaultDebounce is the quiet window before a flush.
const DefaultDebounce = 500 * time.Millisecond

// Invalidator receives collapsed file signals after each quiet window.
// The engine implements it; FileRemoved supersedes FileSaved for a path
// touched both ways within one window.
type Invalidator interface {
	FileSaved(path string)
	FileRemoved(path string)
}

// Options tune a Watcher.
type Options struct {
	Debounce time.Duration // quiet window before a flush; DefaultDebounce when zero
	Ignore   []string      // directory names and basename globs to skip
}

type action int

const (
	actionSaved action = iota
	actionRemoved
)

// Watcher follows a directory tree and reports file activity.
type Watcher struct {
	root string
	inv  Invalidator
	log  *logging.Logger
	opts Options
	fsw  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]action
	timer   *time.Timer

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New creates a watcher rooted at root. Nothing is watched until Start.
func New(root string, inv Invalidator, log *logging.Logger, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeWatchInit, "resolving watch root").WithContext("root", root)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeWatchInit, "creating filesystem watcher")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		root:    abs,
		inv:     inv,
		log:     log,
		opts:    opts,
		fsw:     fsw,
		pending: make(map[string]action),
		done:    make(chan struct{}),
	}, nil
}

// Start watches the tree and blocks until Stop is called or ctx is
// cancelled. Directories appearing later are picked up automatically.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.log.Info(logging.CategoryWatch, "watch_started", "", map[string]any{
		"root":     w.root,
		"debounce": w.opts.Debounce.String(),
	})

	w.wg.Add(1)
	go w.run(ctx)

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case <-w.done:
		return nil
	}
}

// Stop ends watching. Pending signals inside the debounce window are
// dropped, not flushed; the next load recomputes from source anyway.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
	_ = w.fsw.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		// Individual add failures are tolerable; the rest of the tree is
		// still covered.
		_ = w.fsw.Add(path)
		return nil
	})
}

func (w *Watcher) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Ignore {
		if matched, _ := filepath.Match(pattern, filepath.Base(rel)); matched {
			return true
		}
		if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
			return true
		}
	}
	return false
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn(logging.CategoryWatch, "watch_error", "", map[string]any{
				"error": err.Error(),
			})
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || w.ignored(rel) {
		return
	}

	var act action
	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
			return
		}
		act = actionSaved
	case event.Op&fsnotify.Write != 0:
		act = actionSaved
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		act = actionRemoved
	default:
		return
	}
	metricEvents.Inc()

	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.pending[event.Name]; !ok || existing != actionRemoved {
		w.pending[event.Name] = act
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]action)
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	for path, act := range batch {
		switch act {
		case actionSaved:
			w.inv.FileSaved(path)
		case actionRemoved:
			w.inv.FileRemoved(path)
		}
	}
	metricFlushes.Inc()
	metricSignals.Add(float64(len(batch)))
	w.log.Debug(logging.CategoryWatch, "watch_flush", "", map[string]any{
		"signals": len(batch),
	})
}
