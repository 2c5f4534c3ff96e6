package snapshot

// Field names a snapshot section. The string value is used three ways: as
// the JSON key on the wire, as the context_type tag on synthetic message
// parts, and as the leading segment of cache keys.
type Field string

const (
	FieldCurrentFile           Field = "current_file"
	FieldCursor                Field = "cursor"
	FieldSelections            Field = "selections"
	FieldDiagnostics           Field = "diagnostics"
	FieldMarks                 Field = "marks"
	FieldJumplist              Field = "jumplist"
	FieldRecentBuffers         Field = "recent_buffers"
	FieldUndoHistory           Field = "undo_history"
	FieldLayout                Field = "layout"
	FieldHighlights            Field = "highlights"
	FieldSession               Field = "session"
	FieldRegisters             Field = "registers"
	FieldCommandHistory        Field = "command_history"
	FieldDebugger              Field = "debugger"
	FieldLSPContext            Field = "lsp_context"
	FieldPlugins               Field = "plugins"
	FieldVCS                   Field = "vcs"
	FieldFolds                 Field = "folds"
	FieldContextLines          Field = "context_lines"
	FieldQuickfix              Field = "quickfix"
	FieldMacros                Field = "macros"
	FieldTerminalBuffers       Field = "terminal_buffers"
	FieldSessionDuration       Field = "session_duration"
	FieldSearchSnippets        Field = "search_snippets"
	FieldMentionedFiles        Field = "mentioned_files"
	FieldMentionedFileContents Field = "mentioned_file_contents"
	FieldMentionedSubagents    Field = "mentioned_subagents"
	FieldBufferDiff            Field = "buffer_diff"
)

// Order is the canonical emission order for message formatting. Mention
// fields come last so file and agent reference parts trail the synthetic
// context blocks they annotate.
var Order = []Field{
	FieldCurrentFile,
	FieldCursor,
	FieldSelections,
	FieldDiagnostics,
	FieldMarks,
	FieldJumplist,
	FieldRecentBuffers,
	FieldUndoHistory,
	FieldLayout,
	FieldHighlights,
	FieldSession,
	FieldRegisters,
	FieldCommandHistory,
	FieldDebugger,
	FieldLSPContext,
	FieldPlugins,
	FieldVCS,
	FieldFolds,
	FieldContextLines,
	FieldQuickfix,
	FieldMacros,
	FieldTerminalBuffers,
	FieldSessionDuration,
	FieldSearchSnippets,
	FieldBufferDiff,
	FieldMentionedFileContents,
	FieldMentionedFiles,
	FieldMentionedSubagents,
}

func (f Field) String() string { return string(f) }
