// Package engine runs the snapshot load cycle: immediate acquisition,
// cache-backed deferred acquisition, delta reduction against the last
// transmission, and message formatting. One Engine owns one process-wide
// snapshot; consumers only ever receive deep copies of it.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/spyglass/pkg/cache"
	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/encoding/toon"
	"github.com/odvcencio/spyglass/pkg/logging"
	"github.com/odvcencio/spyglass/pkg/message"
	"github.com/odvcencio/spyglass/pkg/redact"
	"github.com/odvcencio/spyglass/pkg/snapshot"
	"github.com/odvcencio/spyglass/pkg/tasks"
	"github.com/odvcencio/spyglass/pkg/tracing"
)

// Engine coordinates acquisition, caching, redaction, delta computation,
// and formatting for one editor session.
type Engine struct {
	cfg      *config.Config
	provider Provider
	cache    *cache.Cache
	runner   *tasks.Runner
	log      *logging.Logger
	notify   Notifier
	format   *message.Formatter
	paths    redact.Paths
	secrets  redact.Secrets
	root     string
	clock    func() time.Time

	flight   singleflight.Group
	deferred sync.WaitGroup

	mu               sync.Mutex
	snap             *snapshot.Snapshot
	lastSent         *snapshot.Snapshot
	pendingSent      *snapshot.Snapshot
	lastLoad         time.Time
	lastRevision     int64
	haveLoaded       bool
	cycleID          string
	notifiedMentions map[string]bool

	sessionID string
	startedAt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache overrides the field cache.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRunner overrides the external command runner.
func WithRunner(r *tasks.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLogger attaches the event logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithNotifier routes the mention-read failure notification.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithSessionID pins the session identifier instead of generating one, so
// a host can key its logger and journal to the same session.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.sessionID = id
		}
	}
}

// New builds an engine around a provider. A nil cfg uses the defaults.
func New(cfg *config.Config, provider Provider, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	root := config.ResolveProjectRoot(cfg)
	e := &Engine{
		cfg:              cfg,
		provider:         provider,
		paths:            redact.NewPaths(root, cfg.Redaction.Paths),
		secrets:          redact.NewSecrets(cfg.Redaction.Secrets),
		root:             root,
		clock:            time.Now,
		snap:             snapshot.New(),
		notifiedMentions: make(map[string]bool),
		sessionID:        ulid.Make().String(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.startedAt = e.clock()
	if e.cache == nil {
		e.cache = cache.New(cfg.Acquire.CacheCapacity)
	}
	if e.runner == nil {
		e.runner = tasks.NewRunner(
			tasks.WithMaxParallel(cfg.Acquire.MaxParallel),
			tasks.WithLogger(e.log),
		)
	}
	e.format = message.NewFormatter(toon.New(cfg.Format.Toon), e.log)
	return e
}

// SessionID returns the engine's session identifier.
func (e *Engine) SessionID() string { return e.sessionID }

// Root returns the resolved project root.
func (e *Engine) Root() string { return e.root }

// Load runs one load cycle. Immediate fields are populated before it
// returns; deferred fields are scheduled and land by some later point. The
// returned snapshot is a deep copy the caller owns. A load inside the
// debounce window with an unchanged buffer revision returns a copy of the
// previous snapshot without recomputation.
func (e *Engine) Load(ctx context.Context) *snapshot.Snapshot {
	ctx, span := tracing.StartSpan(ctx, "engine.load")
	defer span.End()

	if out, ok := e.shortCircuit(ctx); ok {
		return out
	}
	out := e.LoadImmediate(ctx)
	e.LoadDeferred(ctx, nil)
	return out
}

func (e *Engine) shortCircuit(ctx context.Context) (*snapshot.Snapshot, bool) {
	e.mu.Lock()
	loaded := e.haveLoaded
	sinceLast := e.clock().Sub(e.lastLoad)
	lastRevision := e.lastRevision
	e.mu.Unlock()

	if !loaded || sinceLast >= e.cfg.DebounceInterval() {
		return nil, false
	}
	if rs, ok := e.provider.(RevisionSource); ok {
		if rs.ActiveRevision(ctx) != lastRevision {
			return nil, false
		}
	}

	e.mu.Lock()
	out := e.snap.Clone()
	cycle := e.cycleID
	e.mu.Unlock()

	metricShortCircuits.Inc()
	e.log.Debug(logging.CategoryAcquire, "load_short_circuit", "", map[string]any{
		"cycle": cycle,
	})
	return out, true
}

// LoadImmediate runs the synchronous phase: every cheap local field is
// acquired, filtered, and written into the snapshot before it returns.
func (e *Engine) LoadImmediate(ctx context.Context) *snapshot.Snapshot {
	ctx, span := tracing.StartSpan(ctx, "engine.load.immediate")
	defer span.End()

	start := e.clock()
	imm := e.provider.Immediate(ctx)
	if imm == nil {
		imm = &Immediate{}
	}

	e.mu.Lock()
	e.cycleID = ulid.Make().String()
	cycle := e.cycleID
	e.applyImmediate(imm)
	e.lastLoad = e.clock()
	e.lastRevision = 0
	if e.snap.CurrentFile != nil {
		e.lastRevision = e.snap.CurrentFile.Revision
	}
	e.haveLoaded = true
	out := e.snap.Clone()
	e.mu.Unlock()

	span.SetAttributes(
		tracing.AttrSessionID.String(e.sessionID),
		tracing.AttrCycleID.String(cycle),
	)
	metricLoads.Inc()
	e.log.Debug(logging.CategoryAcquire, "load_immediate", "", map[string]any{
		"cycle":       cycle,
		"duration_ms": e.clock().Sub(start).Milliseconds(),
		"fields":      len(out.PresentFields()),
	})
	return out
}

// applyImmediate overwrites every immediate-phase field from the capture.
// Redaction happens here, before anything is stored: paths outside the
// project root and secret-shaped free text never reach the snapshot.
// Caller holds e.mu.
func (e *Engine) applyImmediate(imm *Immediate) {
	s := e.snap

	s.CurrentFile = nil
	if e.fieldEnabled(snapshot.FieldCurrentFile) && imm.CurrentFile != nil {
		cf := *imm.CurrentFile
		if cf.DisplayName == "" {
			cf.DisplayName = filepath.Base(cf.Path)
		}
		cf.Path = e.paths.Apply(cf.Path)
		if cf.MimeType == "" {
			cf.MimeType = message.MimeTypeForPath(cf.Path)
		}
		s.CurrentFile = &cf
	}

	s.Cursor = nil
	if e.fieldEnabled(snapshot.FieldCursor) && imm.Cursor != nil {
		c := *imm.Cursor
		s.Cursor = &c
	}

	// Selections accumulate across cycles; the load only captures the
	// active one.
	if e.fieldEnabled(snapshot.FieldSelections) && imm.ActiveSelection != nil {
		sel := *imm.ActiveSelection
		sel.Path = e.paths.Apply(sel.Path)
		s.AddSelection(sel)
	}

	s.Diagnostics = nil
	if e.fieldEnabled(snapshot.FieldDiagnostics) && imm.Diagnostics != nil {
		d := *imm.Diagnostics
		d.Items = capSlice(d.Items, e.fieldLimit(snapshot.FieldDiagnostics))
		s.Diagnostics = &d
	}

	s.Marks = nil
	if e.fieldEnabled(snapshot.FieldMarks) && imm.Marks != nil {
		marks := capSlice(imm.Marks, e.fieldLimit(snapshot.FieldMarks))
		out := make([]snapshot.Mark, len(marks))
		for i, m := range marks {
			m.Path = e.paths.Apply(m.Path)
			out[i] = m
		}
		s.Marks = out
	}

	s.Jumplist = nil
	if e.fieldEnabled(snapshot.FieldJumplist) && imm.Jumplist != nil {
		jumps := capSlice(imm.Jumplist, e.fieldLimit(snapshot.FieldJumplist))
		out := make([]snapshot.JumpEntry, len(jumps))
		for i, j := range jumps {
			j.Path = e.paths.Apply(j.Path)
			out[i] = j
		}
		s.Jumplist = out
	}

	s.UndoHistory = nil
	if e.fieldEnabled(snapshot.FieldUndoHistory) && imm.UndoHistory != nil {
		u := *imm.UndoHistory
		u.Entries = capSlice(u.Entries, e.fieldLimit(snapshot.FieldUndoHistory))
		s.UndoHistory = &u
	}

	s.Layout = nil
	if e.fieldEnabled(snapshot.FieldLayout) && imm.Layout != nil {
		l := *imm.Layout
		windows := make([]snapshot.Window, len(l.Windows))
		for i, w := range l.Windows {
			w.Path = e.paths.Apply(w.Path)
			windows[i] = w
		}
		l.Windows = windows
		s.Layout = &l
	}

	s.Session = nil
	if e.fieldEnabled(snapshot.FieldSession) && imm.Session != nil {
		sess := *imm.Session
		if sess.ID == "" {
			sess.ID = e.sessionID
		}
		sess.WorkingDir = e.paths.Apply(sess.WorkingDir)
		s.Session = &sess
	}

	s.Registers = nil
	if e.fieldEnabled(snapshot.FieldRegisters) && imm.Registers != nil {
		regs := capSlice(imm.Registers, e.fieldLimit(snapshot.FieldRegisters))
		out := make([]snapshot.Register, len(regs))
		for i, r := range regs {
			// Register metadata survives; only the content is screened.
			r.Content = e.secrets.Apply(r.Content)
			out[i] = r
		}
		s.Registers = out
	}

	s.CommandHistory = nil
	if e.fieldEnabled(snapshot.FieldCommandHistory) && imm.CommandHistory != nil {
		limit := e.fieldLimit(snapshot.FieldCommandHistory)
		s.CommandHistory = &snapshot.CommandHistory{
			Commands: e.secrets.ApplyAll(capSlice(imm.CommandHistory.Commands, limit)),
			Searches: e.secrets.ApplyAll(capSlice(imm.CommandHistory.Searches, limit)),
		}
	}

	s.Debugger = nil
	if e.fieldEnabled(snapshot.FieldDebugger) && imm.Debugger != nil {
		d := *imm.Debugger
		if d.StoppedAt != nil {
			at := *d.StoppedAt
			at.Path = e.paths.Apply(at.Path)
			d.StoppedAt = &at
		}
		if d.Breakpoints != nil {
			bps := make([]snapshot.Location, len(d.Breakpoints))
			for i, bp := range d.Breakpoints {
				bp.Path = e.paths.Apply(bp.Path)
				bps[i] = bp
			}
			d.Breakpoints = bps
		}
		s.Debugger = &d
	}

	s.Folds = nil
	if e.fieldEnabled(snapshot.FieldFolds) && imm.Folds != nil {
		f := *imm.Folds
		f.Closed = capSlice(f.Closed, e.fieldLimit(snapshot.FieldFolds))
		s.Folds = &f
	}

	s.ContextLines = nil
	if e.fieldEnabled(snapshot.FieldContextLines) && imm.ContextLines != nil {
		cl := *imm.ContextLines
		cl.Path = e.paths.Apply(cl.Path)
		cl.Lines = capSlice(cl.Lines, e.fieldLimit(snapshot.FieldContextLines))
		s.ContextLines = &cl
	}

	s.Quickfix = nil
	if e.fieldEnabled(snapshot.FieldQuickfix) && imm.Quickfix != nil {
		limit := e.fieldLimit(snapshot.FieldQuickfix)
		s.Quickfix = &snapshot.Quickfix{
			Items:    e.redactQuickfix(capSlice(imm.Quickfix.Items, limit)),
			Location: e.redactQuickfix(capSlice(imm.Quickfix.Location, limit)),
		}
	}

	s.Macros = nil
	if e.fieldEnabled(snapshot.FieldMacros) && imm.Macros != nil {
		macros := capSlice(imm.Macros, e.fieldLimit(snapshot.FieldMacros))
		out := make([]snapshot.Macro, len(macros))
		for i, m := range macros {
			m.Content = e.secrets.Apply(m.Content)
			out[i] = m
		}
		s.Macros = out
	}

	s.TerminalBuffers = nil
	if e.fieldEnabled(snapshot.FieldTerminalBuffers) && imm.TerminalBuffers != nil {
		terms := capSlice(imm.TerminalBuffers, e.fieldLimit(snapshot.FieldTerminalBuffers))
		out := make([]snapshot.TerminalBuffer, len(terms))
		for i, t := range terms {
			t.Tail = e.secrets.ApplyAll(t.Tail)
			out[i] = t
		}
		s.TerminalBuffers = out
	}

	s.SessionDurationMillis = nil
	if e.fieldEnabled(snapshot.FieldSessionDuration) {
		base := e.startedAt
		if s.Session != nil && !s.Session.StartedAt.IsZero() {
			base = s.Session.StartedAt
		}
		d := e.clock().Sub(base).Milliseconds()
		s.SessionDurationMillis = &d
	}
}

func (e *Engine) redactQuickfix(items []snapshot.QuickfixItem) []snapshot.QuickfixItem {
	if items == nil {
		return nil
	}
	out := make([]snapshot.QuickfixItem, len(items))
	for i, item := range items {
		item.Path = e.paths.Apply(item.Path)
		out[i] = item
	}
	return out
}

func (e *Engine) fieldEnabled(f snapshot.Field) bool {
	return e.cfg.FieldEnabled(string(f))
}

func (e *Engine) fieldLimit(f snapshot.Field) int {
	return e.cfg.FieldLimit(string(f))
}

func (e *Engine) fieldTTL(f snapshot.Field) time.Duration {
	return e.cfg.FieldTTL(string(f))
}

func capSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit:limit]
	}
	return in
}

// Snapshot returns a deep copy of the current snapshot.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// Wait blocks until deferred work scheduled by prior loads has landed.
func (e *Engine) Wait() {
	e.deferred.Wait()
}

// AddFile records an @-mentioned file. Content is read at format time, so
// mentioning is cheap and the message always carries fresh bytes.
func (e *Engine) AddFile(path, displayName string) {
	if path == "" {
		return
	}
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.AddMentionedFile(snapshot.MentionedFile{
		Path:        path,
		DisplayName: displayName,
		MimeType:    message.MimeTypeForPath(path),
	})
}

// AddSubagent records an @-mentioned agent name.
func (e *Engine) AddSubagent(name string) {
	if name == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.AddSubagent(name)
}

// AddSelection records a selection the user attached explicitly.
func (e *Engine) AddSelection(sel snapshot.Selection) {
	sel.Path = e.paths.Apply(sel.Path)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.AddSelection(sel)
}

// ClearFiles drops all file mentions and their loaded contents.
func (e *Engine) ClearFiles() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.ClearMentionedFiles()
	e.notifiedMentions = make(map[string]bool)
}

// ClearSubagents drops all agent mentions.
func (e *Engine) ClearSubagents() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.ClearSubagents()
}

// UnloadAttachments drops selections, file mentions, and agent mentions.
func (e *Engine) UnloadAttachments() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.UnloadAttachments()
	e.notifiedMentions = make(map[string]bool)
}

// Unload resets the engine to its pre-first-load state. The cache survives;
// its entries are still discriminant-correct.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Unload()
	e.lastSent = nil
	e.pendingSent = nil
	e.haveLoaded = false
	e.lastLoad = time.Time{}
	e.lastRevision = 0
	e.cycleID = ""
	e.notifiedMentions = make(map[string]bool)
}

// Invalidate clears cache entries under a key prefix.
func (e *Engine) Invalidate(prefix string) {
	e.cache.Clear(prefix)
	e.log.Debug(logging.CategoryCache, "invalidate", "", map[string]any{
		"prefix": prefix,
	})
}

// FileSaved handles a file-save signal: repository state and the saved
// file's unsaved-diff entries are stale now.
func (e *Engine) FileSaved(path string) {
	p := e.paths.Apply(path)
	e.Invalidate(string(snapshot.FieldVCS))
	e.Invalidate(cache.Key(string(snapshot.FieldBufferDiff), p))
	e.Invalidate(string(snapshot.FieldRecentBuffers))
	if ps, ok := e.provider.(PluginSource); ok && ps.PluginManifestPath() == path {
		e.Invalidate(string(snapshot.FieldPlugins))
	}
}

// FileRemoved handles a file-remove or buffer-close signal.
func (e *Engine) FileRemoved(path string) {
	p := e.paths.Apply(path)
	e.Invalidate(cache.Key(string(snapshot.FieldBufferDiff), p))
	e.Invalidate(cache.Key(string(snapshot.FieldHighlights), p))
	e.Invalidate(string(snapshot.FieldRecentBuffers))
	e.Invalidate(string(snapshot.FieldVCS))
}
