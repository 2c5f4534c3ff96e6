// Package headless implements the provider interface for running without
// an editor attached. State that only an editor can know (cursor motion,
// registers, layout) stays absent; what a repository checkout can tell is
// reconstructed with go-git: the active file from worktree heuristics,
// recently touched files as recent buffers, and the current branch.
package headless

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/odvcencio/spyglass/pkg/engine"
	"github.com/odvcencio/spyglass/pkg/logging"
	"github.com/odvcencio/spyglass/pkg/snapshot"
)

const (
	contextSpread   = 12 // lines offered around the cursor
	previewLines    = 8  // preview lines per recent buffer
	maxLogCommits   = 5  // commits consulted when the worktree is clean
	defaultBufLimit = 5
)

var errStopIteration = stderrors.New("stop iteration")

// Options select the file the headless session is "about".
type Options struct {
	// File is the active file, absolute or relative to the project root.
	// Empty means detect: the most recently modified dirty file wins.
	File string
	// Line is the 1-based cursor line within File; 0 means no cursor.
	Line int
}

// Provider supplies editor state reconstructed from the filesystem and
// the enclosing git repository, when one exists.
type Provider struct {
	root     string
	repoRoot string
	file     string
	line     int
	started  time.Time
	repo     *git.Repository
	log      *logging.Logger
}

var (
	_ engine.Provider           = (*Provider)(nil)
	_ engine.ActiveBufferSource = (*Provider)(nil)
	_ engine.RevisionSource     = (*Provider)(nil)
	_ engine.RecentBufferSource = (*Provider)(nil)
)

// New creates a provider rooted at root. Running outside a git repository
// is fine; repository-derived fields stay absent.
func New(root string, opts Options, log *logging.Logger) *Provider {
	p := &Provider{
		root:    root,
		line:    opts.Line,
		started: time.Now(),
		log:     log,
	}
	if repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		p.repo = repo
		if wt, err := repo.Worktree(); err == nil {
			p.repoRoot = wt.Filesystem.Root()
		}
		_ = log.Debug(logging.CategorySession, "repo_detected", "running inside a git repository", map[string]any{
			"repo_root": p.repoRoot,
		})
	}
	p.file = p.resolveFile(opts.File)
	return p
}

// File reports the resolved active file, empty when none was found.
func (p *Provider) File() string { return p.file }

// Branch reports the checked-out branch, or a short hash when HEAD is
// detached, or empty outside a repository.
func (p *Provider) Branch() string {
	if p.repo == nil {
		return ""
	}
	head, err := p.repo.Head()
	if err != nil {
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return head.Hash().String()[:8]
}

func (p *Provider) resolveFile(file string) string {
	if file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(p.root, file)
		}
		return filepath.Clean(file)
	}

	newest := ""
	var newestMod time.Time
	for _, path := range p.dirtyFiles() {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
	}
	return newest
}

// dirtyFiles lists worktree paths with staged or unstaged changes,
// untracked files included. Absolute paths.
func (p *Provider) dirtyFiles() []string {
	if p.repo == nil || p.repoRoot == "" {
		return nil
	}
	wt, err := p.repo.Worktree()
	if err != nil {
		return nil
	}
	status, err := wt.Status()
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(status))
	for rel, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		files = append(files, filepath.Join(p.repoRoot, filepath.FromSlash(rel)))
	}
	sort.Strings(files)
	return files
}

func (p *Provider) Immediate(ctx context.Context) *engine.Immediate {
	imm := &engine.Immediate{
		Session: &snapshot.Session{
			Editor:     "headless",
			StartedAt:  p.started,
			WorkingDir: p.root,
		},
	}

	if p.file != "" {
		cf := &snapshot.CurrentFile{
			Path:        p.file,
			DisplayName: filepath.Base(p.file),
			Modified:    p.fileDirty(p.file),
			Revision:    p.ActiveRevision(ctx),
		}
		if info, err := os.Stat(p.file); err == nil {
			cf.SizeBytes = info.Size()
		}
		imm.CurrentFile = cf
		imm.ContextLines = p.contextLines()
	}

	if p.line > 0 {
		imm.Cursor = &snapshot.Cursor{Line: p.line}
	}

	return imm
}

// ActiveRevision is the active file's mtime; saves from the outside move
// it forward, which is all the reload short-circuit needs.
func (p *Provider) ActiveRevision(ctx context.Context) int64 {
	if p.file == "" {
		return 0
	}
	info, err := os.Stat(p.file)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}

func (p *Provider) ActiveBuffer(ctx context.Context) (*engine.ActiveBuffer, bool) {
	if p.file == "" {
		return nil, false
	}
	lines, err := readLines(p.file)
	if err != nil {
		return nil, false
	}
	return &engine.ActiveBuffer{
		Path:     p.file,
		Name:     filepath.Base(p.file),
		Lines:    lines,
		Revision: p.ActiveRevision(ctx),
	}, true
}

// RecentBuffersWithPreview lists recently touched files: dirty worktree
// entries first, topped up from the latest commits when the tree is clean.
func (p *Provider) RecentBuffersWithPreview(ctx context.Context, limit int) []snapshot.Buffer {
	if limit <= 0 {
		limit = defaultBufLimit
	}
	bufs := p.recentFiles(limit)
	for i := range bufs {
		if lines, err := readLines(bufs[i].Path); err == nil {
			bufs[i].Preview = capLines(lines, previewLines)
		}
	}
	return bufs
}

// RecentBuffersWithSymbols returns nothing: there is no language server
// behind the CLI host.
func (p *Provider) RecentBuffersWithSymbols(ctx context.Context, limit int) []snapshot.Buffer {
	return nil
}

func (p *Provider) recentFiles(limit int) []snapshot.Buffer {
	seen := make(map[string]struct{})
	bufs := make([]snapshot.Buffer, 0, limit)
	add := func(path string, modified bool) {
		if path == p.file {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		seen[path] = struct{}{}
		bufs = append(bufs, snapshot.Buffer{
			Path:     path,
			Name:     filepath.Base(path),
			Modified: modified,
		})
	}

	for _, path := range p.dirtyFiles() {
		if len(bufs) >= limit {
			return bufs
		}
		add(path, true)
	}

	for _, rel := range p.committedFiles() {
		if len(bufs) >= limit {
			return bufs
		}
		add(filepath.Join(p.repoRoot, filepath.FromSlash(rel)), false)
	}
	return bufs
}

// committedFiles lists paths touched by the most recent commits, newest
// commit first.
func (p *Provider) committedFiles() []string {
	if p.repo == nil || p.repoRoot == "" {
		return nil
	}
	head, err := p.repo.Head()
	if err != nil {
		return nil
	}
	iter, err := p.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var files []string
	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if count >= maxLogCommits {
			return errStopIteration
		}
		count++
		stats, err := c.Stats()
		if err != nil {
			return nil
		}
		for _, st := range stats {
			files = append(files, st.Name)
		}
		return nil
	})
	if err != nil && !stderrors.Is(err, errStopIteration) {
		return files
	}
	return files
}

func (p *Provider) fileDirty(path string) bool {
	if p.repo == nil || p.repoRoot == "" {
		return false
	}
	wt, err := p.repo.Worktree()
	if err != nil {
		return false
	}
	status, err := wt.Status()
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(p.repoRoot, path)
	if err != nil {
		return false
	}
	// Direct lookup: Status.File fabricates an untracked entry for paths
	// it has never seen, which would mark every clean file dirty.
	st, ok := status[filepath.ToSlash(rel)]
	if !ok {
		return false
	}
	return st.Staging != git.Unmodified || st.Worktree != git.Unmodified
}

// contextLines reads the window around the cursor, or the head of the
// file when no cursor line is set.
func (p *Provider) contextLines() *snapshot.ContextLinesBlock {
	lines, err := readLines(p.file)
	if err != nil || len(lines) == 0 {
		return nil
	}
	start := 1
	if p.line > 3 {
		start = p.line - 3
	}
	if start > len(lines) {
		start = len(lines)
	}
	window := capLines(lines[start-1:], contextSpread)
	return &snapshot.ContextLinesBlock{
		Path:  p.file,
		Start: start,
		Lines: window,
	}
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func capLines(lines []string, limit int) []string {
	if limit <= 0 || len(lines) <= limit {
		return append([]string(nil), lines...)
	}
	return append([]string(nil), lines[:limit]...)
}
