package snapshot

import (
	"testing"
)

func TestCloneIsDeep(t *testing.T) {
	orig := New()
	orig.CurrentFile = &CurrentFile{Path: "/work/main.go", DisplayName: "main.go", Modified: true}
	orig.Selections = []Selection{{StartLine: 1, EndLine: 3, Text: "abc"}}
	orig.MentionedSubagents = []string{"reviewer"}
	dur := int64(1500)
	orig.SessionDurationMillis = &dur

	cp := orig.Clone()
	if !Equal(orig, cp) {
		t.Fatalf("clone differs from original")
	}

	cp.CurrentFile.Path = "/work/other.go"
	cp.Selections[0].Text = "xyz"
	cp.MentionedSubagents[0] = "planner"
	*cp.SessionDurationMillis = 9

	if orig.CurrentFile.Path != "/work/main.go" {
		t.Errorf("clone mutation leaked into original current_file")
	}
	if orig.Selections[0].Text != "abc" {
		t.Errorf("clone mutation leaked into original selections")
	}
	if orig.MentionedSubagents[0] != "reviewer" {
		t.Errorf("clone mutation leaked into original subagents")
	}
	if *orig.SessionDurationMillis != 1500 {
		t.Errorf("clone mutation leaked into original duration")
	}
}

func TestCloneNil(t *testing.T) {
	var s *Snapshot
	if s.Clone() != nil {
		t.Fatalf("expected nil clone of nil snapshot")
	}
}

func TestAddSelectionDeduplicates(t *testing.T) {
	s := New()
	sel := Selection{Path: "/work/a.go", StartLine: 1, EndLine: 2, Text: "x"}
	s.AddSelection(sel)
	s.AddSelection(sel)
	s.AddSelection(Selection{Path: "/work/a.go", StartLine: 1, EndLine: 2, Text: "y"})

	if len(s.Selections) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(s.Selections))
	}
	if s.Selections[0].Text != "x" || s.Selections[1].Text != "y" {
		t.Errorf("selection order not preserved: %+v", s.Selections)
	}
}

func TestAddMentionedFileDeduplicatesByPath(t *testing.T) {
	s := New()
	s.AddMentionedFile(MentionedFile{Path: "a.go", DisplayName: "a.go"})
	s.AddMentionedFile(MentionedFile{Path: "a.go", DisplayName: "renamed.go"})
	s.AddMentionedFile(MentionedFile{Path: "b.go", DisplayName: "b.go"})

	if len(s.MentionedFiles) != 2 {
		t.Fatalf("expected 2 mentioned files, got %d", len(s.MentionedFiles))
	}
	if s.MentionedFiles[0].DisplayName != "a.go" {
		t.Errorf("first mention should win, got %q", s.MentionedFiles[0].DisplayName)
	}
}

func TestAddMentionedFileContentReplaces(t *testing.T) {
	s := New()
	s.AddMentionedFileContent(FileContent{Path: "a.go", Content: "v1"})
	s.AddMentionedFileContent(FileContent{Path: "a.go", Content: "v2"})

	if len(s.MentionedFileContents) != 1 {
		t.Fatalf("expected 1 content entry, got %d", len(s.MentionedFileContents))
	}
	if s.MentionedFileContents[0].Content != "v2" {
		t.Errorf("expected replacement content, got %q", s.MentionedFileContents[0].Content)
	}
}

func TestAddSubagentOrderAndDedup(t *testing.T) {
	s := New()
	for _, name := range []string{"planner", "reviewer", "planner", "tester"} {
		s.AddSubagent(name)
	}
	want := []string{"planner", "reviewer", "tester"}
	if len(s.MentionedSubagents) != len(want) {
		t.Fatalf("expected %d subagents, got %d", len(want), len(s.MentionedSubagents))
	}
	for i := range want {
		if s.MentionedSubagents[i] != want[i] {
			t.Errorf("subagent[%d] = %q, want %q", i, s.MentionedSubagents[i], want[i])
		}
	}
}

func TestUnloadAttachmentsKeepsAcquiredState(t *testing.T) {
	s := New()
	s.Cursor = &Cursor{Line: 10, Column: 2}
	s.AddSelection(Selection{Text: "sel"})
	s.AddMentionedFile(MentionedFile{Path: "a.go"})
	s.AddMentionedFileContent(FileContent{Path: "a.go", Content: "body"})
	s.AddSubagent("reviewer")

	s.UnloadAttachments()

	if s.Selections != nil || s.MentionedFiles != nil || s.MentionedFileContents != nil || s.MentionedSubagents != nil {
		t.Errorf("attachments survived unload: %+v", s)
	}
	if s.Cursor == nil {
		t.Errorf("cursor should survive attachment unload")
	}
}

func TestUnloadResetsEverything(t *testing.T) {
	s := New()
	s.Cursor = &Cursor{Line: 1}
	s.VCS = &VCS{Branch: "main"}
	s.Unload()
	if !Equal(s, New()) {
		t.Errorf("unload did not reset snapshot: %+v", s)
	}
}

func TestPresentDistinguishesNilFromEmpty(t *testing.T) {
	s := New()
	if s.Present(FieldSelections) {
		t.Errorf("nil selections reported present")
	}
	s.Selections = []Selection{}
	if !s.Present(FieldSelections) {
		t.Errorf("empty non-nil selections reported absent")
	}

	if s.Present(FieldSessionDuration) {
		t.Errorf("nil duration reported present")
	}
	zero := int64(0)
	s.SessionDurationMillis = &zero
	if !s.Present(FieldSessionDuration) {
		t.Errorf("zero duration reported absent")
	}
}

func TestValueAndSuppressCoverEveryField(t *testing.T) {
	s := fullSnapshot()
	for _, f := range Order {
		if _, ok := s.Value(f); !ok {
			t.Errorf("field %s absent in full snapshot", f)
		}
	}
	for _, f := range Order {
		s.Suppress(f)
		if s.Present(f) {
			t.Errorf("field %s still present after suppress", f)
		}
	}
	if !Equal(s, New()) {
		t.Errorf("suppressing every field should yield the empty snapshot")
	}
}

func TestPresentFieldsFollowsCanonicalOrder(t *testing.T) {
	s := New()
	s.VCS = &VCS{Branch: "main"}
	s.Cursor = &Cursor{Line: 1}
	s.AddSubagent("reviewer")

	got := s.PresentFields()
	want := []Field{FieldCursor, FieldVCS, FieldMentionedSubagents}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func fullSnapshot() *Snapshot {
	dur := int64(42)
	return &Snapshot{
		CurrentFile:           &CurrentFile{Path: "a"},
		Cursor:                &Cursor{Line: 1},
		Selections:            []Selection{},
		Diagnostics:           &Diagnostics{},
		Marks:                 []Mark{},
		Jumplist:              []JumpEntry{},
		RecentBuffers:         []Buffer{},
		UndoHistory:           &UndoHistory{},
		Layout:                &Layout{},
		Highlights:            &Highlights{},
		Session:               &Session{},
		Registers:             []Register{},
		CommandHistory:        &CommandHistory{},
		Debugger:              &DebuggerState{},
		LSPContext:            &LSPContext{},
		Plugins:               []Plugin{},
		VCS:                   &VCS{},
		Folds:                 &Folds{},
		ContextLines:          &ContextLinesBlock{},
		Quickfix:              &Quickfix{},
		Macros:                []Macro{},
		TerminalBuffers:       []TerminalBuffer{},
		SessionDurationMillis: &dur,
		SearchSnippets:        []SearchSnippet{},
		MentionedFiles:        []MentionedFile{},
		MentionedFileContents: []FileContent{},
		MentionedSubagents:    []string{},
		BufferDiff:            &BufferDiff{},
	}
}
