// Package delta suppresses snapshot fields the assistant has already seen.
// The policy is deliberately narrow: only the current file identity and the
// subagent mention list are compared against the last sent snapshot. Every
// other field is resent whenever present, trading bandwidth for a simple,
// predictable contract.
package delta

import (
	"reflect"

	"github.com/odvcencio/spyglass/pkg/snapshot"
)

// Options control delta computation.
type Options struct {
	// Disabled forces a full resend: the current snapshot is returned with
	// every present field intact.
	Disabled bool
}

// Compute returns a copy of current with unchanged suppressible fields
// removed. The result is always a fresh deep copy; mutating it never
// touches current or lastSent.
//
// Suppression rules:
//   - current_file is dropped when its display name matches the last sent
//     snapshot, even if path, modified flag, or size differ.
//   - mentioned_subagents is dropped when deep-equal to the last sent list,
//     order included.
//
// A nil lastSent (nothing sent yet) suppresses nothing.
func Compute(current, lastSent *snapshot.Snapshot, opts Options) *snapshot.Snapshot {
	out := current.Clone()
	if out == nil {
		out = snapshot.New()
	}
	if opts.Disabled || lastSent == nil {
		return out
	}

	if out.CurrentFile != nil && lastSent.CurrentFile != nil &&
		out.CurrentFile.DisplayName == lastSent.CurrentFile.DisplayName {
		out.Suppress(snapshot.FieldCurrentFile)
	}

	if out.MentionedSubagents != nil &&
		reflect.DeepEqual(out.MentionedSubagents, lastSent.MentionedSubagents) {
		out.Suppress(snapshot.FieldMentionedSubagents)
	}

	return out
}
