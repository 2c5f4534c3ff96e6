package engine

import (
	"context"

	"github.com/odvcencio/spyglass/pkg/snapshot"
)

// Immediate bundles the cheap synchronous host introspections, captured in
// one call so a load cycle sees a consistent point-in-time view. Members
// the host cannot supply stay nil and resolve to field absence. Returned
// values are handed off to the engine; the provider must not retain or
// mutate them.
type Immediate struct {
	CurrentFile     *snapshot.CurrentFile
	Cursor          *snapshot.Cursor
	ActiveSelection *snapshot.Selection
	Diagnostics     *snapshot.Diagnostics
	Marks           []snapshot.Mark
	Jumplist        []snapshot.JumpEntry
	UndoHistory     *snapshot.UndoHistory
	Layout          *snapshot.Layout
	Session         *snapshot.Session
	Registers       []snapshot.Register
	CommandHistory  *snapshot.CommandHistory
	Debugger        *snapshot.DebuggerState
	Folds           *snapshot.Folds
	ContextLines    *snapshot.ContextLinesBlock
	Quickfix        *snapshot.Quickfix
	Macros          []snapshot.Macro
	TerminalBuffers []snapshot.TerminalBuffer
}

// Provider supplies raw editor state. Implementations live outside the
// engine: an editor RPC bridge, or the headless host for CLI use. Optional
// capabilities are separate interfaces discovered by type assertion; a
// provider without one simply leaves those fields absent.
type Provider interface {
	Immediate(ctx context.Context) *Immediate
}

// ActiveBuffer is the buffer under the cursor, with content, for the
// acquisition paths that need it: highlight extraction and the unsaved
// diff. Revision is the host's monotonically increasing mutation counter.
type ActiveBuffer struct {
	Path     string
	Name     string
	Language string
	Lines    []string
	Revision int64
}

// ActiveBufferSource exposes the active buffer's content.
type ActiveBufferSource interface {
	ActiveBuffer(ctx context.Context) (*ActiveBuffer, bool)
}

// RevisionSource reports the active buffer's mutation counter without a
// full introspection pass. It drives the reload short-circuit; providers
// without revision tracking debounce on time alone.
type RevisionSource interface {
	ActiveRevision(ctx context.Context) int64
}

// RecentBufferSource lists recently visited buffers. The two acquisition
// depths are separate named operations with separate freshness windows:
// previews are cheap reads, symbols go through a language server.
type RecentBufferSource interface {
	RecentBuffersWithPreview(ctx context.Context, limit int) []snapshot.Buffer
	RecentBuffersWithSymbols(ctx context.Context, limit int) []snapshot.Buffer
}

// LSPSource is implemented by providers with a live language-server client.
type LSPSource interface {
	LSPContext(ctx context.Context) *snapshot.LSPContext
}

// SearchSource is implemented by providers backed by a semantic search
// index. The query derivation is the provider's business.
type SearchSource interface {
	SearchSnippets(ctx context.Context, limit int) []snapshot.SearchSnippet
}

// PluginSource exposes the package-manager lock file location.
type PluginSource interface {
	PluginManifestPath() string
}

// Notifier surfaces the one user-visible failure the engine produces: an
// explicitly mentioned file that cannot be read.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }
