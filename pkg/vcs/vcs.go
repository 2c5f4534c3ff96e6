// Package vcs assembles a version-control summary by fanning read-only git
// commands through the task runner. Each sub-field degrades independently:
// a failed diff leaves a diff-less summary, never an absent one.
package vcs

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/spyglass/pkg/snapshot"
	"github.com/odvcencio/spyglass/pkg/tasks"
)

// Task names double as result keys.
const (
	TaskBranch = "branch"
	TaskStatus = "status"
	TaskLog    = "log"
	TaskDiff   = "diff"
)

// DefaultLogLines bounds the recent-commit listing.
const DefaultLogLines = 5

// TaskSet builds the git fan-out for dir. logLines caps the recent log;
// non-positive values fall back to DefaultLogLines.
func TaskSet(dir string, logLines int) tasks.Set {
	if logLines <= 0 {
		logLines = DefaultLogLines
	}
	git := func(args ...string) []string {
		base := []string{"git", "--no-pager"}
		if dir != "" {
			base = append(base, "-C", dir)
		}
		return append(base, args...)
	}
	return tasks.Set{
		{Name: TaskBranch, Argv: git("rev-parse", "--abbrev-ref", "HEAD")},
		{Name: TaskStatus, Argv: git("status", "--porcelain")},
		{Name: TaskLog, Argv: git("log", "--oneline", "-n", strconv.Itoa(logLines))},
		{Name: TaskDiff, Argv: git("diff", "--stat")},
	}
}

// FromResults folds runner output into a summary. A task absent from the
// results leaves its field empty; when every task is absent the summary
// itself is absent.
func FromResults(res tasks.Results) *snapshot.VCS {
	if len(res) == 0 {
		return nil
	}
	out := &snapshot.VCS{}
	if v, ok := res[TaskBranch]; ok {
		out.Branch = strings.TrimSpace(v)
	}
	if v, ok := res[TaskStatus]; ok {
		out.Status = strings.TrimSpace(v)
	}
	if v, ok := res[TaskLog]; ok {
		out.RecentLog = splitLines(v)
	}
	if v, ok := res[TaskDiff]; ok {
		out.Diff = strings.TrimSpace(v)
	}
	return out
}

// Collect runs the fan-out and blocks for the aggregate.
func Collect(ctx context.Context, r *tasks.Runner, dir string, timeout time.Duration, logLines int) *snapshot.VCS {
	return FromResults(r.RunWait(ctx, TaskSet(dir, logLines), timeout))
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}
