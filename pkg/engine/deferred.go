package engine

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/spyglass/pkg/buffdiff"
	"github.com/odvcencio/spyglass/pkg/cache"
	"github.com/odvcencio/spyglass/pkg/highlight"
	"github.com/odvcencio/spyglass/pkg/logging"
	"github.com/odvcencio/spyglass/pkg/manifest"
	"github.com/odvcencio/spyglass/pkg/snapshot"
	"github.com/odvcencio/spyglass/pkg/tracing"
	"github.com/odvcencio/spyglass/pkg/vcs"
)

// deferredState is the point-in-time view a deferred batch computes
// against. path is the redacted active-file path, which doubles as the
// cache discriminant.
type deferredState struct {
	cycle      string
	path       string
	revision   int64
	cursorLine int
}

type deferredOp struct {
	name string
	run  func(context.Context, deferredState)
}

func (e *Engine) deferredOps() []deferredOp {
	return []deferredOp{
		{string(snapshot.FieldRecentBuffers), e.loadRecentBuffers},
		{string(snapshot.FieldHighlights), e.loadHighlights},
		{string(snapshot.FieldLSPContext), e.loadLSPContext},
		{string(snapshot.FieldPlugins), e.loadPlugins},
		{string(snapshot.FieldVCS), e.loadVCS},
		{string(snapshot.FieldSearchSnippets), e.loadSearchSnippets},
		{string(snapshot.FieldBufferDiff), e.loadBufferDiff},
	}
}

// LoadDeferred schedules the expensive phase. Each field consults its cache
// key first; cache misses compute through singleflight so overlapping loads
// share one computation. onComplete, when non-nil, fires after every
// deferred field has landed or been discarded.
func (e *Engine) LoadDeferred(ctx context.Context, onComplete func()) {
	e.mu.Lock()
	st := deferredState{
		cycle:    e.cycleID,
		revision: e.lastRevision,
	}
	if e.snap.CurrentFile != nil {
		st.path = e.snap.CurrentFile.Path
	}
	if e.snap.Cursor != nil {
		st.cursorLine = e.snap.Cursor.Line
	}
	e.mu.Unlock()

	// The deferred phase outlives the Load call. Trace context carries
	// over; cancellation does not.
	dctx := context.WithoutCancel(ctx)

	e.deferred.Add(1)
	go func() {
		defer e.deferred.Done()
		dctx, span := tracing.StartSpan(dctx, "engine.load.deferred")
		defer span.End()
		span.SetAttributes(tracing.AttrCycleID.String(st.cycle))

		start := e.clock()
		g, gctx := errgroup.WithContext(dctx)
		g.SetLimit(e.cfg.Acquire.MaxParallel)
		for _, op := range e.deferredOps() {
			g.Go(func() error {
				opStart := time.Now()
				op.run(gctx, st)
				metricDeferredSeconds.WithLabelValues(op.name).Observe(time.Since(opStart).Seconds())
				return nil
			})
		}
		_ = g.Wait()

		e.log.Debug(logging.CategoryAcquire, "load_deferred", "", map[string]any{
			"cycle":       st.cycle,
			"duration_ms": e.clock().Sub(start).Milliseconds(),
		})
		if onComplete != nil {
			onComplete()
		}
	}()
}

// setDeferred applies a snapshot mutation unless a newer load cycle has
// started; late results from superseded cycles are discarded.
func (e *Engine) setDeferred(cycle string, apply func(*snapshot.Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cycleID != cycle {
		return
	}
	apply(e.snap)
}

// cachedValue consults the cache, then computes through singleflight. Only
// successful (non-nil) results are cached; a zero ttl bypasses the cache.
func (e *Engine) cachedValue(key string, ttl time.Duration, compute func() any) any {
	if ttl > 0 {
		if v, ok := e.cache.Get(key, ttl); ok {
			return v
		}
	}
	v, _, _ := e.flight.Do(key, func() (any, error) {
		return compute(), nil
	})
	if v != nil && ttl > 0 {
		e.cache.Set(key, v)
	}
	return v
}

func (e *Engine) loadRecentBuffers(ctx context.Context, st deferredState) {
	src, ok := e.provider.(RecentBufferSource)
	if !ok || !e.fieldEnabled(snapshot.FieldRecentBuffers) {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.RecentBuffers = nil })
		return
	}

	var preview, symbols []snapshot.Buffer
	if e.cfg.FieldEnabled("recent_buffer_preview") {
		v := e.cachedValue(
			cache.Key(string(snapshot.FieldRecentBuffers), "preview"),
			e.cfg.FieldTTL("recent_buffer_preview"),
			func() any {
				if bufs := e.redactBuffers(src.RecentBuffersWithPreview(ctx, e.cfg.FieldLimit("recent_buffer_preview"))); bufs != nil {
					return bufs
				}
				return nil
			})
		preview, _ = v.([]snapshot.Buffer)
	}
	if e.cfg.FieldEnabled("recent_buffer_symbols") {
		v := e.cachedValue(
			cache.Key(string(snapshot.FieldRecentBuffers), "symbols"),
			e.cfg.FieldTTL("recent_buffer_symbols"),
			func() any {
				if bufs := e.redactBuffers(src.RecentBuffersWithSymbols(ctx, e.cfg.FieldLimit("recent_buffer_symbols"))); bufs != nil {
					return bufs
				}
				return nil
			})
		symbols, _ = v.([]snapshot.Buffer)
	}

	merged := capSlice(mergeBuffers(preview, symbols), e.fieldLimit(snapshot.FieldRecentBuffers))
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.RecentBuffers = merged })
}

func (e *Engine) redactBuffers(bufs []snapshot.Buffer) []snapshot.Buffer {
	if bufs == nil {
		return nil
	}
	out := make([]snapshot.Buffer, len(bufs))
	for i, b := range bufs {
		b.Path = e.paths.Apply(b.Path)
		out[i] = b
	}
	return out
}

// mergeBuffers folds the symbol variant into the preview inventory by
// path. Buffers only one variant saw are kept as-is.
func mergeBuffers(preview, symbols []snapshot.Buffer) []snapshot.Buffer {
	if preview == nil {
		return symbols
	}
	if symbols == nil {
		return preview
	}
	out := make([]snapshot.Buffer, len(preview))
	copy(out, preview)
	byPath := make(map[string]int, len(out))
	for i, b := range out {
		byPath[b.Path] = i
	}
	for _, sb := range symbols {
		if i, ok := byPath[sb.Path]; ok {
			out[i].Symbols = sb.Symbols
			continue
		}
		out = append(out, sb)
	}
	return out
}

func (e *Engine) loadHighlights(ctx context.Context, st deferredState) {
	src, ok := e.provider.(ActiveBufferSource)
	if !ok || !e.fieldEnabled(snapshot.FieldHighlights) || st.path == "" {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.Highlights = nil })
		return
	}

	key := cache.Key(string(snapshot.FieldHighlights), st.path,
		strconv.FormatInt(st.revision, 10), strconv.Itoa(st.cursorLine))
	v := e.cachedValue(key, e.fieldTTL(snapshot.FieldHighlights), func() any {
		buf, ok := src.ActiveBuffer(ctx)
		if !ok || buf == nil {
			return nil
		}
		hl, ok := highlight.Extract(buf.Path, strings.Join(buf.Lines, "\n"),
			st.cursorLine, 0, e.fieldLimit(snapshot.FieldHighlights))
		if !ok {
			return nil
		}
		if buf.Language != "" {
			hl.Language = buf.Language
		}
		return hl
	})
	hl, _ := v.(*snapshot.Highlights)
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.Highlights = hl })
}

func (e *Engine) loadLSPContext(ctx context.Context, st deferredState) {
	src, ok := e.provider.(LSPSource)
	if !ok || !e.fieldEnabled(snapshot.FieldLSPContext) {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.LSPContext = nil })
		return
	}

	key := cache.Key(string(snapshot.FieldLSPContext), st.path)
	v := e.cachedValue(key, e.fieldTTL(snapshot.FieldLSPContext), func() any {
		if lc := src.LSPContext(ctx); lc != nil {
			return lc
		}
		return nil
	})
	lc, _ := v.(*snapshot.LSPContext)
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.LSPContext = lc })
}

func (e *Engine) loadPlugins(ctx context.Context, st deferredState) {
	src, ok := e.provider.(PluginSource)
	if !ok || !e.fieldEnabled(snapshot.FieldPlugins) {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.Plugins = nil })
		return
	}
	path := src.PluginManifestPath()
	if path == "" {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.Plugins = nil })
		return
	}

	// The lock file's mtime is the discriminant: a package-manager run
	// naturally supersedes the old entry.
	var mtime int64
	if fi, err := os.Stat(path); err == nil {
		mtime = fi.ModTime().UnixNano()
	}
	key := cache.Key(string(snapshot.FieldPlugins), strconv.FormatInt(mtime, 10))
	v := e.cachedValue(key, e.fieldTTL(snapshot.FieldPlugins), func() any {
		plugins, err := manifest.Load(path, e.fieldLimit(snapshot.FieldPlugins))
		if err != nil {
			e.log.Debug(logging.CategoryAcquire, "plugins_unavailable", "", map[string]any{
				"error": err.Error(),
			})
			return nil
		}
		return plugins
	})
	plugins, _ := v.([]snapshot.Plugin)
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.Plugins = plugins })
}

func (e *Engine) loadVCS(ctx context.Context, st deferredState) {
	if !e.fieldEnabled(snapshot.FieldVCS) {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.VCS = nil })
		return
	}

	v := e.cachedValue(string(snapshot.FieldVCS), e.fieldTTL(snapshot.FieldVCS), func() any {
		if summary := vcs.Collect(ctx, e.runner, e.root, e.cfg.TaskTimeout(), e.fieldLimit(snapshot.FieldVCS)); summary != nil {
			return summary
		}
		return nil
	})
	summary, _ := v.(*snapshot.VCS)
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.VCS = summary })
}

func (e *Engine) loadSearchSnippets(ctx context.Context, st deferredState) {
	src, ok := e.provider.(SearchSource)
	if !ok || !e.fieldEnabled(snapshot.FieldSearchSnippets) {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.SearchSnippets = nil })
		return
	}

	key := cache.Key(string(snapshot.FieldSearchSnippets), st.path)
	v := e.cachedValue(key, e.fieldTTL(snapshot.FieldSearchSnippets), func() any {
		snips := src.SearchSnippets(ctx, e.fieldLimit(snapshot.FieldSearchSnippets))
		if snips == nil {
			return nil
		}
		out := make([]snapshot.SearchSnippet, len(snips))
		for i, sn := range snips {
			sn.Path = e.paths.Apply(sn.Path)
			out[i] = sn
		}
		return out
	})
	snips, _ := v.([]snapshot.SearchSnippet)
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.SearchSnippets = snips })
}

func (e *Engine) loadBufferDiff(ctx context.Context, st deferredState) {
	src, ok := e.provider.(ActiveBufferSource)
	if !ok || !e.fieldEnabled(snapshot.FieldBufferDiff) || st.path == "" {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.BufferDiff = nil })
		return
	}
	buf, ok := src.ActiveBuffer(ctx)
	if !ok || buf == nil || buf.Path == "" {
		e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.BufferDiff = nil })
		return
	}

	var mtime int64
	if fi, err := os.Stat(buf.Path); err == nil {
		mtime = fi.ModTime().UnixNano()
	}
	key := cache.Key(string(snapshot.FieldBufferDiff), st.path,
		strconv.FormatInt(buf.Revision, 10), strconv.FormatInt(mtime, 10))
	v := e.cachedValue(key, e.fieldTTL(snapshot.FieldBufferDiff), func() any {
		disk, err := os.ReadFile(buf.Path)
		if err != nil {
			return nil
		}
		d, ok := buffdiff.Compute(st.path, string(disk), buf.Lines, e.fieldLimit(snapshot.FieldBufferDiff))
		if !ok {
			return nil
		}
		return d
	})
	d, _ := v.(*snapshot.BufferDiff)
	e.setDeferred(st.cycle, func(s *snapshot.Snapshot) { s.BufferDiff = d })
}
