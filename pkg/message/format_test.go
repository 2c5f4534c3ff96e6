package message

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/odvcencio/spyglass/pkg/encoding/toon"
	"github.com/odvcencio/spyglass/pkg/snapshot"
)

func jsonFormatter() *Formatter {
	return NewFormatter(toon.New(false), nil)
}

func TestFormatFirstPartIsAlwaysPrompt(t *testing.T) {
	f := jsonFormatter()

	snap := snapshot.New()
	snap.Cursor = &snapshot.Cursor{Line: 3, Column: 1}

	for _, prompt := range []string{"explain this", ""} {
		parts := f.Format(prompt, snap)
		if len(parts) == 0 {
			t.Fatalf("no parts for prompt %q", prompt)
		}
		if parts[0].Type != PartText || parts[0].Text != prompt {
			t.Errorf("first part = %+v, want prompt text %q", parts[0], prompt)
		}
	}
}

func TestFormatEmitsSyntheticPartsInOrder(t *testing.T) {
	f := jsonFormatter()

	snap := snapshot.New()
	snap.VCS = &snapshot.VCS{Branch: "main"}
	snap.Cursor = &snapshot.Cursor{Line: 1}
	snap.CurrentFile = &snapshot.CurrentFile{Path: "a.go", DisplayName: "a.go"}

	parts := f.Format("p", snap)

	var types []string
	for _, part := range parts[1:] {
		if part.Type != PartSynthetic {
			t.Fatalf("unexpected part type %s", part.Type)
		}
		types = append(types, part.Synthetic.ContextType)
	}
	want := []string{"current_file", "cursor", "vcs"}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("synthetic[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestFormatAbsentFieldsEmitNothing(t *testing.T) {
	f := jsonFormatter()
	parts := f.Format("just the prompt", snapshot.New())
	if len(parts) != 1 {
		t.Fatalf("empty snapshot should yield only the prompt part, got %d parts", len(parts))
	}
}

func TestFormatPresentEmptyCollectionEmitsPart(t *testing.T) {
	f := jsonFormatter()
	snap := snapshot.New()
	snap.Selections = []snapshot.Selection{}

	parts := f.Format("p", snap)
	if len(parts) != 2 {
		t.Fatalf("present-but-empty selections should still emit a part, got %d parts", len(parts))
	}
	if parts[1].Synthetic.ContextType != "selections" {
		t.Errorf("got context_type %q", parts[1].Synthetic.ContextType)
	}
}

func TestFormatFileMentionSpans(t *testing.T) {
	f := jsonFormatter()
	prompt := "please review @src/main.go and @missing.go"

	snap := snapshot.New()
	snap.AddMentionedFile(snapshot.MentionedFile{Path: "src/main.go", DisplayName: "main.go"})
	snap.AddMentionedFile(snapshot.MentionedFile{Path: "other/lib.go", DisplayName: "lib.go"})

	parts := f.Format(prompt, snap)

	var files []*FileRef
	for _, part := range parts {
		if part.Type == PartFile {
			files = append(files, part.File)
		}
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 file parts, got %d", len(files))
	}

	first := files[0]
	wantStart := strings.Index(prompt, "@src/main.go")
	if first.Span.Start != wantStart || first.Span.End != wantStart+len("@src/main.go") {
		t.Errorf("span = %+v, want start %d", first.Span, wantStart)
	}

	second := files[1]
	if second.Span != (Span{}) {
		t.Errorf("unmentioned file should carry the zero span, got %+v", second.Span)
	}
}

func TestFormatAgentParts(t *testing.T) {
	f := jsonFormatter()
	prompt := "ask @reviewer to check"

	snap := snapshot.New()
	snap.AddSubagent("reviewer")

	parts := f.Format(prompt, snap)
	last := parts[len(parts)-1]
	if last.Type != PartAgent || last.Agent.Name != "reviewer" {
		t.Fatalf("expected trailing agent part, got %+v", last)
	}
	if last.Agent.Span.Start != strings.Index(prompt, "@reviewer") {
		t.Errorf("agent span = %+v", last.Agent.Span)
	}
}

func TestMimeTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"doc.html", "text/html"},
		{"data.json", "application/json"},
		{"noext", "text/plain"},
	}
	for _, tt := range tests {
		if got := MimeTypeForPath(tt.path); got != tt.want {
			t.Errorf("MimeTypeForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtractRoundTrip(t *testing.T) {
	f := jsonFormatter()
	prompt := "look at @a.go"

	snap := snapshot.New()
	snap.Cursor = &snapshot.Cursor{Line: 7, Column: 2}
	snap.AddMentionedFile(snapshot.MentionedFile{Path: "a.go", DisplayName: "a.go"})
	snap.AddSubagent("planner")

	extracted := f.Extract(f.Format(prompt, snap))

	if extracted.Prompt != prompt {
		t.Errorf("prompt = %q", extracted.Prompt)
	}
	if len(extracted.Files) != 1 || extracted.Files[0].Path != "a.go" {
		t.Errorf("files = %+v", extracted.Files)
	}
	if len(extracted.Agents) != 1 || extracted.Agents[0].Name != "planner" {
		t.Errorf("agents = %+v", extracted.Agents)
	}

	raw, ok := extracted.Context["cursor"]
	if !ok {
		t.Fatalf("cursor context missing, got keys %v", keys(extracted.Context))
	}
	var cur snapshot.Cursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		t.Fatalf("cursor content: %v", err)
	}
	if cur.Line != 7 || cur.Column != 2 {
		t.Errorf("cursor = %+v", cur)
	}
}

func TestExtractSkipsMalformedSynthetic(t *testing.T) {
	f := jsonFormatter()
	parts := []Part{
		TextPart("p"),
		{Type: PartSynthetic, Synthetic: &Synthetic{ContextType: "vcs", Payload: "not json"}},
		{Type: PartSynthetic, Synthetic: &Synthetic{ContextType: "cursor", Payload: `{"context_type":"cursor","content":{"line":1}}`}},
	}

	extracted := f.Extract(parts)
	if _, ok := extracted.Context["vcs"]; ok {
		t.Errorf("malformed payload should be skipped")
	}
	if _, ok := extracted.Context["cursor"]; !ok {
		t.Errorf("well-formed sibling should survive")
	}
}

func keys(m map[string]json.RawMessage) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
