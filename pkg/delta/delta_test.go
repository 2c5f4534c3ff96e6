package delta

import (
	"testing"

	"github.com/odvcencio/spyglass/pkg/snapshot"
)

func TestFirstSendSuppressesNothing(t *testing.T) {
	current := snapshot.New()
	current.CurrentFile = &snapshot.CurrentFile{DisplayName: "main.go"}
	current.AddSubagent("reviewer")

	got := Compute(current, nil, Options{})

	if got.CurrentFile == nil {
		t.Errorf("current_file suppressed on first send")
	}
	if got.MentionedSubagents == nil {
		t.Errorf("subagents suppressed on first send")
	}
}

func TestSameDisplayNameSuppressesCurrentFile(t *testing.T) {
	last := snapshot.New()
	last.CurrentFile = &snapshot.CurrentFile{DisplayName: "main.go", Path: "/a/main.go", Modified: false}

	current := snapshot.New()
	// Same display name, different everything else: still suppressed.
	current.CurrentFile = &snapshot.CurrentFile{DisplayName: "main.go", Path: "/b/main.go", Modified: true, SizeBytes: 99}
	current.Cursor = &snapshot.Cursor{Line: 5}

	got := Compute(current, last, Options{})

	if got.CurrentFile != nil {
		t.Errorf("current_file should be suppressed when display name is unchanged")
	}
	if got.Cursor == nil {
		t.Errorf("cursor must always be resent when present")
	}
}

func TestDifferentDisplayNameKeepsCurrentFile(t *testing.T) {
	last := snapshot.New()
	last.CurrentFile = &snapshot.CurrentFile{DisplayName: "main.go"}

	current := snapshot.New()
	current.CurrentFile = &snapshot.CurrentFile{DisplayName: "other.go"}

	got := Compute(current, last, Options{})
	if got.CurrentFile == nil {
		t.Errorf("changed display name must be resent")
	}
}

func TestSubagentSuppression(t *testing.T) {
	tests := []struct {
		name     string
		current  []string
		last     []string
		suppress bool
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, true},
		{"reordered", []string{"b", "a"}, []string{"a", "b"}, false},
		{"grew", []string{"a", "b", "c"}, []string{"a", "b"}, false},
		{"shrunk", []string{"a"}, []string{"a", "b"}, false},
		{"both_empty", []string{}, []string{}, true},
		{"current_empty_last_nil", []string{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := snapshot.New()
			current.MentionedSubagents = tt.current
			last := snapshot.New()
			last.MentionedSubagents = tt.last

			got := Compute(current, last, Options{})
			suppressed := got.MentionedSubagents == nil
			if suppressed != tt.suppress {
				t.Errorf("suppressed = %v, want %v", suppressed, tt.suppress)
			}
		})
	}
}

func TestOtherFieldsNeverSuppressed(t *testing.T) {
	current := snapshot.New()
	current.VCS = &snapshot.VCS{Branch: "main"}
	current.Diagnostics = &snapshot.Diagnostics{Errors: 1}

	// Last sent snapshot is byte-identical; these fields still go out.
	got := Compute(current, current.Clone(), Options{})

	if got.VCS == nil || got.Diagnostics == nil {
		t.Errorf("non-suppressible fields were dropped: %+v", got)
	}
}

func TestDisabledForcesFullResend(t *testing.T) {
	current := snapshot.New()
	current.CurrentFile = &snapshot.CurrentFile{DisplayName: "main.go"}
	current.AddSubagent("reviewer")

	got := Compute(current, current.Clone(), Options{Disabled: true})

	if got.CurrentFile == nil || got.MentionedSubagents == nil {
		t.Errorf("disabled delta must resend all present fields")
	}
}

func TestComputeReturnsIndependentCopy(t *testing.T) {
	current := snapshot.New()
	current.VCS = &snapshot.VCS{Branch: "main"}

	got := Compute(current, nil, Options{})
	got.VCS.Branch = "mutated"

	if current.VCS.Branch != "main" {
		t.Errorf("delta result aliases the live snapshot")
	}
}

func TestAbsentStaysAbsent(t *testing.T) {
	last := snapshot.New()
	last.CurrentFile = &snapshot.CurrentFile{DisplayName: "main.go"}

	got := Compute(snapshot.New(), last, Options{})
	if got.CurrentFile != nil {
		t.Errorf("absent field materialized in delta")
	}
}
