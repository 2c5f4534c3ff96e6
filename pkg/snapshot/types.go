package snapshot

import "time"

// CurrentFile describes the buffer the editor considers active.
type CurrentFile struct {
	Path        string `json:"path"`                   // redacted before storage
	DisplayName string `json:"display_name"`           // basename, stable across path redaction
	Language    string `json:"language,omitempty"`     // filetype as reported by the host
	Modified    bool   `json:"modified"`               // unsaved changes present
	SizeBytes   int64  `json:"size_bytes,omitempty"`   // on-disk size, 0 when never saved
	LineCount   int    `json:"line_count,omitempty"`   // buffer lines
	Revision    int64  `json:"revision,omitempty"`     // host buffer mutation counter
	MimeType    string `json:"mime_type,omitempty"`
}

// Cursor is the active window cursor position. Lines are 1-based, columns
// 0-based, matching the host convention.
type Cursor struct {
	Line    int `json:"line"`
	Column  int `json:"column"`
	TopLine int `json:"top_line,omitempty"` // first visible line of the window
}

// Selection is a visually selected span of buffer text.
type Selection struct {
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Text      string `json:"text"`
}

// Diagnostic is a single linter or language-server finding.
type Diagnostic struct {
	Severity string `json:"severity"` // error, warning, info, hint
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
}

// Diagnostics aggregates buffer diagnostics with severity counts. Items is
// capped by the configured limit; the counts always reflect the full set.
type Diagnostics struct {
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
	Info     int          `json:"info"`
	Hints    int          `json:"hints"`
	Items    []Diagnostic `json:"items,omitempty"`
}

// Mark is a named position the user set in a buffer.
type Mark struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// JumpEntry is one slot of the navigation jumplist, most recent first.
type JumpEntry struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// Symbol is a document symbol reported by a language server.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line int    `json:"line"`
}

// Buffer summarizes a recently visited buffer. Preview and Symbols are
// filled only by the expensive acquisition variants and stay nil otherwise.
type Buffer struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Modified bool     `json:"modified"`
	Preview  []string `json:"preview,omitempty"`
	Symbols  []Symbol `json:"symbols,omitempty"`
}

// UndoEntry is one undo-tree state.
type UndoEntry struct {
	Seq      int   `json:"seq"`
	TimeUnix int64 `json:"time"`
}

// UndoHistory captures the undo-tree head and its most recent states.
type UndoHistory struct {
	Seq      int         `json:"seq"`       // current state sequence number
	SavedSeq int         `json:"saved_seq"` // sequence last written to disk
	Entries  []UndoEntry `json:"entries,omitempty"`
}

// Window is a single window of the editor layout.
type Window struct {
	Path   string `json:"path,omitempty"`
	Active bool   `json:"active"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Layout describes tabs and window geometry.
type Layout struct {
	Tabs       int      `json:"tabs"`
	CurrentTab int      `json:"current_tab"`
	Windows    []Window `json:"windows,omitempty"`
}

// HighlightToken is a syntax token near the cursor.
type HighlightToken struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	Scope string `json:"scope"`
}

// Highlights carries syntax tokens extracted around the cursor position.
type Highlights struct {
	Language string           `json:"language"`
	Tokens   []HighlightToken `json:"tokens"`
}

// Session identifies the editor session the snapshot belongs to.
type Session struct {
	ID         string    `json:"id"`
	Editor     string    `json:"editor,omitempty"`
	Version    string    `json:"version,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	WorkingDir string    `json:"working_dir"`
}

// Register is a named yank register. Content passes the secret filter
// before storage.
type Register struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // charwise, linewise, blockwise
	Content string `json:"content"`
}

// CommandHistory holds recent ex commands and searches, most recent first.
type CommandHistory struct {
	Commands []string `json:"commands,omitempty"`
	Searches []string `json:"searches,omitempty"`
}

// Location is a file position used by debugger state.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// DebuggerState reflects an attached debug adapter, if any.
type DebuggerState struct {
	Active      bool       `json:"active"`
	Adapter     string     `json:"adapter,omitempty"`
	StoppedAt   *Location  `json:"stopped_at,omitempty"`
	Breakpoints []Location `json:"breakpoints,omitempty"`
}

// LSPContext summarizes language-server knowledge about the cursor position.
type LSPContext struct {
	Clients        []string `json:"clients,omitempty"`
	SymbolAtCursor *Symbol  `json:"symbol_at_cursor,omitempty"`
	Hover          string   `json:"hover,omitempty"`
	References     int      `json:"references,omitempty"`
}

// Plugin is one entry of the host plugin inventory.
type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
}

// VCS summarizes repository state for the working directory.
type VCS struct {
	Branch    string   `json:"branch,omitempty"`
	Status    string   `json:"status,omitempty"` // porcelain output, possibly truncated
	Diff      string   `json:"diff,omitempty"`   // stat summary of unstaged changes
	RecentLog []string `json:"recent_log,omitempty"`
}

// FoldRange is a closed fold span in the active buffer.
type FoldRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Folds describes folding state of the active buffer.
type Folds struct {
	Enabled bool        `json:"enabled"`
	Method  string      `json:"method,omitempty"`
	Closed  []FoldRange `json:"closed,omitempty"`
}

// ContextLinesBlock is the raw text surrounding the cursor.
type ContextLinesBlock struct {
	Path  string   `json:"path"`
	Start int      `json:"start"` // line number of Lines[0]
	Lines []string `json:"lines"`
}

// QuickfixItem is one quickfix or location-list entry.
type QuickfixItem struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Quickfix holds the quickfix list and the active window location list.
type Quickfix struct {
	Items    []QuickfixItem `json:"items,omitempty"`
	Location []QuickfixItem `json:"location,omitempty"`
}

// Macro is a recorded keystroke register. Content passes the secret filter
// before storage.
type Macro struct {
	Register string `json:"register"`
	Content  string `json:"content"`
}

// TerminalBuffer is the visible tail of an embedded terminal.
type TerminalBuffer struct {
	Name string   `json:"name"`
	Tail []string `json:"tail"`
}

// SearchSnippet is one semantic search result related to the prompt context.
type SearchSnippet struct {
	Path    string  `json:"path"`
	Line    int     `json:"line,omitempty"`
	Score   float64 `json:"score,omitempty"`
	Snippet string  `json:"snippet"`
}

// MentionedFile records an explicit @-mention of a file in the prompt.
type MentionedFile struct {
	Path        string `json:"path"` // as typed by the user
	DisplayName string `json:"display_name"`
	MimeType    string `json:"mime_type,omitempty"`
}

// FileContent is the loaded content of a mentioned file.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// BufferDiff is the unified diff between the active buffer and its on-disk
// content.
type BufferDiff struct {
	Path    string `json:"path"`
	Unified string `json:"unified"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}
