// Package snapshot defines the editor context snapshot: the full set of
// optional sections the engine acquires, filters, and eventually serializes
// into message parts.
//
// Absence is meaningful everywhere. A nil pointer or nil slice means the
// section was never acquired, was disabled, or failed to load; a non-nil
// empty slice means the section was acquired and is empty. Downstream
// consumers must preserve that distinction, which is why JSON round-trips of
// whole snapshots are avoided in favor of per-field emission.
package snapshot

import (
	"reflect"

	"github.com/tiendc/go-deepcopy"
)

// Snapshot is the process-wide editor context. All sections are optional.
type Snapshot struct {
	CurrentFile           *CurrentFile       `json:"current_file,omitempty"`
	Cursor                *Cursor            `json:"cursor,omitempty"`
	Selections            []Selection        `json:"selections,omitempty"`
	Diagnostics           *Diagnostics       `json:"diagnostics,omitempty"`
	Marks                 []Mark             `json:"marks,omitempty"`
	Jumplist              []JumpEntry        `json:"jumplist,omitempty"`
	RecentBuffers         []Buffer           `json:"recent_buffers,omitempty"`
	UndoHistory           *UndoHistory       `json:"undo_history,omitempty"`
	Layout                *Layout            `json:"layout,omitempty"`
	Highlights            *Highlights        `json:"highlights,omitempty"`
	Session               *Session           `json:"session,omitempty"`
	Registers             []Register         `json:"registers,omitempty"`
	CommandHistory        *CommandHistory    `json:"command_history,omitempty"`
	Debugger              *DebuggerState     `json:"debugger,omitempty"`
	LSPContext            *LSPContext        `json:"lsp_context,omitempty"`
	Plugins               []Plugin           `json:"plugins,omitempty"`
	VCS                   *VCS               `json:"vcs,omitempty"`
	Folds                 *Folds             `json:"folds,omitempty"`
	ContextLines          *ContextLinesBlock `json:"context_lines,omitempty"`
	Quickfix              *Quickfix          `json:"quickfix,omitempty"`
	Macros                []Macro            `json:"macros,omitempty"`
	TerminalBuffers       []TerminalBuffer   `json:"terminal_buffers,omitempty"`
	SessionDurationMillis *int64             `json:"session_duration,omitempty"`
	SearchSnippets        []SearchSnippet    `json:"search_snippets,omitempty"`
	MentionedFiles        []MentionedFile    `json:"mentioned_files,omitempty"`
	MentionedFileContents []FileContent      `json:"mentioned_file_contents,omitempty"`
	MentionedSubagents    []string           `json:"mentioned_subagents,omitempty"`
	BufferDiff            *BufferDiff        `json:"buffer_diff,omitempty"`
}

// New returns an empty snapshot with every section absent.
func New() *Snapshot {
	return &Snapshot{}
}

// Clone returns a deep copy. Mutating the copy never affects the original,
// including nested slices and pointers.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{}
	if err := deepcopy.Copy(out, s); err != nil {
		// Copy only fails on type mismatches or unexported fields, and
		// Snapshot has neither. A partial copy must never circulate.
		panic(err)
	}
	return out
}

// AddSelection appends a selection unless an identical one is already
// recorded. Order of first insertion is preserved.
func (s *Snapshot) AddSelection(sel Selection) {
	for _, existing := range s.Selections {
		if existing == sel {
			return
		}
	}
	s.Selections = append(s.Selections, sel)
}

// AddMentionedFile records an @-mentioned file, deduplicated by path.
func (s *Snapshot) AddMentionedFile(f MentionedFile) {
	for _, existing := range s.MentionedFiles {
		if existing.Path == f.Path {
			return
		}
	}
	s.MentionedFiles = append(s.MentionedFiles, f)
}

// AddMentionedFileContent stores loaded content for a mentioned file,
// replacing any previous content recorded for the same path.
func (s *Snapshot) AddMentionedFileContent(fc FileContent) {
	for i, existing := range s.MentionedFileContents {
		if existing.Path == fc.Path {
			s.MentionedFileContents[i] = fc
			return
		}
	}
	s.MentionedFileContents = append(s.MentionedFileContents, fc)
}

// AddSubagent records an @-mentioned agent name, deduplicated, order
// preserved.
func (s *Snapshot) AddSubagent(name string) {
	for _, existing := range s.MentionedSubagents {
		if existing == name {
			return
		}
	}
	s.MentionedSubagents = append(s.MentionedSubagents, name)
}

// ClearMentionedFiles drops all file mentions and their loaded contents.
func (s *Snapshot) ClearMentionedFiles() {
	s.MentionedFiles = nil
	s.MentionedFileContents = nil
}

// ClearSubagents drops all agent mentions.
func (s *Snapshot) ClearSubagents() {
	s.MentionedSubagents = nil
}

// UnloadAttachments drops everything the user attached explicitly:
// selections, file mentions with contents, and agent mentions. Acquired
// editor state is kept.
func (s *Snapshot) UnloadAttachments() {
	s.Selections = nil
	s.ClearMentionedFiles()
	s.ClearSubagents()
}

// Unload resets the snapshot to the empty state.
func (s *Snapshot) Unload() {
	*s = Snapshot{}
}

// Present reports whether a field carries a value. Nil slices count as
// absent, non-nil empty slices as present.
func (s *Snapshot) Present(f Field) bool {
	_, ok := s.Value(f)
	return ok
}

// Value returns the raw value stored under a field and whether the field is
// present. The returned value aliases snapshot internals; callers that hold
// it across mutations should Clone first.
func (s *Snapshot) Value(f Field) (any, bool) {
	switch f {
	case FieldCurrentFile:
		if s.CurrentFile != nil {
			return s.CurrentFile, true
		}
	case FieldCursor:
		if s.Cursor != nil {
			return s.Cursor, true
		}
	case FieldSelections:
		if s.Selections != nil {
			return s.Selections, true
		}
	case FieldDiagnostics:
		if s.Diagnostics != nil {
			return s.Diagnostics, true
		}
	case FieldMarks:
		if s.Marks != nil {
			return s.Marks, true
		}
	case FieldJumplist:
		if s.Jumplist != nil {
			return s.Jumplist, true
		}
	case FieldRecentBuffers:
		if s.RecentBuffers != nil {
			return s.RecentBuffers, true
		}
	case FieldUndoHistory:
		if s.UndoHistory != nil {
			return s.UndoHistory, true
		}
	case FieldLayout:
		if s.Layout != nil {
			return s.Layout, true
		}
	case FieldHighlights:
		if s.Highlights != nil {
			return s.Highlights, true
		}
	case FieldSession:
		if s.Session != nil {
			return s.Session, true
		}
	case FieldRegisters:
		if s.Registers != nil {
			return s.Registers, true
		}
	case FieldCommandHistory:
		if s.CommandHistory != nil {
			return s.CommandHistory, true
		}
	case FieldDebugger:
		if s.Debugger != nil {
			return s.Debugger, true
		}
	case FieldLSPContext:
		if s.LSPContext != nil {
			return s.LSPContext, true
		}
	case FieldPlugins:
		if s.Plugins != nil {
			return s.Plugins, true
		}
	case FieldVCS:
		if s.VCS != nil {
			return s.VCS, true
		}
	case FieldFolds:
		if s.Folds != nil {
			return s.Folds, true
		}
	case FieldContextLines:
		if s.ContextLines != nil {
			return s.ContextLines, true
		}
	case FieldQuickfix:
		if s.Quickfix != nil {
			return s.Quickfix, true
		}
	case FieldMacros:
		if s.Macros != nil {
			return s.Macros, true
		}
	case FieldTerminalBuffers:
		if s.TerminalBuffers != nil {
			return s.TerminalBuffers, true
		}
	case FieldSessionDuration:
		if s.SessionDurationMillis != nil {
			return *s.SessionDurationMillis, true
		}
	case FieldSearchSnippets:
		if s.SearchSnippets != nil {
			return s.SearchSnippets, true
		}
	case FieldMentionedFiles:
		if s.MentionedFiles != nil {
			return s.MentionedFiles, true
		}
	case FieldMentionedFileContents:
		if s.MentionedFileContents != nil {
			return s.MentionedFileContents, true
		}
	case FieldMentionedSubagents:
		if s.MentionedSubagents != nil {
			return s.MentionedSubagents, true
		}
	case FieldBufferDiff:
		if s.BufferDiff != nil {
			return s.BufferDiff, true
		}
	}
	return nil, false
}

// Suppress marks a field absent in place. Used by delta computation.
func (s *Snapshot) Suppress(f Field) {
	switch f {
	case FieldCurrentFile:
		s.CurrentFile = nil
	case FieldCursor:
		s.Cursor = nil
	case FieldSelections:
		s.Selections = nil
	case FieldDiagnostics:
		s.Diagnostics = nil
	case FieldMarks:
		s.Marks = nil
	case FieldJumplist:
		s.Jumplist = nil
	case FieldRecentBuffers:
		s.RecentBuffers = nil
	case FieldUndoHistory:
		s.UndoHistory = nil
	case FieldLayout:
		s.Layout = nil
	case FieldHighlights:
		s.Highlights = nil
	case FieldSession:
		s.Session = nil
	case FieldRegisters:
		s.Registers = nil
	case FieldCommandHistory:
		s.CommandHistory = nil
	case FieldDebugger:
		s.Debugger = nil
	case FieldLSPContext:
		s.LSPContext = nil
	case FieldPlugins:
		s.Plugins = nil
	case FieldVCS:
		s.VCS = nil
	case FieldFolds:
		s.Folds = nil
	case FieldContextLines:
		s.ContextLines = nil
	case FieldQuickfix:
		s.Quickfix = nil
	case FieldMacros:
		s.Macros = nil
	case FieldTerminalBuffers:
		s.TerminalBuffers = nil
	case FieldSessionDuration:
		s.SessionDurationMillis = nil
	case FieldSearchSnippets:
		s.SearchSnippets = nil
	case FieldMentionedFiles:
		s.MentionedFiles = nil
	case FieldMentionedFileContents:
		s.MentionedFileContents = nil
	case FieldMentionedSubagents:
		s.MentionedSubagents = nil
	case FieldBufferDiff:
		s.BufferDiff = nil
	}
}

// PresentFields lists present fields in canonical order.
func (s *Snapshot) PresentFields() []Field {
	var out []Field
	for _, f := range Order {
		if s.Present(f) {
			out = append(out, f)
		}
	}
	return out
}

// Equal reports deep equality of two snapshots, including the present
// versus absent distinction on slice fields.
func Equal(a, b *Snapshot) bool {
	return reflect.DeepEqual(a, b)
}
