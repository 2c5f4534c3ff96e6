// Package buffdiff renders the divergence between a live buffer and its
// on-disk content as a unified diff, so the assistant can see unsaved work.
package buffdiff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/odvcencio/spyglass/pkg/snapshot"
)

// contextLines around each hunk, matching the usual git presentation.
const contextLines = 3

// Compute diffs disk content against buffer lines. Returns false when the
// two are identical or the diff cannot be produced. maxLines caps the
// rendered diff body, with a trailing marker naming the dropped line count;
// 0 means uncapped.
func Compute(path string, diskContent string, bufferLines []string, maxLines int) (*snapshot.BufferDiff, bool) {
	buffer := strings.Join(bufferLines, "\n")
	if len(bufferLines) > 0 {
		buffer += "\n"
	}
	if diskContent == buffer {
		return nil, false
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(diskContent),
		B:        difflib.SplitLines(buffer),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil || text == "" {
		return nil, false
	}

	out := &snapshot.BufferDiff{Path: path}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		dropped := len(lines) - maxLines
		lines = append(lines[:maxLines], fmt.Sprintf("... (%d more lines truncated)", dropped))
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			out.Added++
		case strings.HasPrefix(line, "-"):
			out.Removed++
		}
	}
	out.Unified = strings.Join(lines, "\n")
	return out, true
}
