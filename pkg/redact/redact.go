// Package redact enforces the privacy boundary on snapshot data. Two
// distinct concerns live here: path redaction hides file locations outside
// the project root, and secret filtering masks credential-shaped substrings
// in free text before it can leave the process.
package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ExternalPrefix replaces the directory portion of out-of-root paths.
const ExternalPrefix = "[EXTERNAL]"

// Marker replaces every secret match. A fixed marker leaks neither the
// length nor the shape of the original value.
const Marker = "[REDACTED]"

// Paths redacts file paths against a project root.
type Paths struct {
	Root    string
	Enabled bool
}

// NewPaths creates a path redactor rooted at root. Redaction is on unless
// disabled through configuration.
func NewPaths(root string, enabled bool) Paths {
	return Paths{Root: filepath.Clean(root), Enabled: enabled}
}

// Apply returns the path unchanged when it resolves under the project root,
// and ExternalPrefix plus the basename otherwise. Relative paths are taken
// to be project-relative and pass unchanged. An empty path stays empty.
func (p Paths) Apply(path string) string {
	if !p.Enabled || path == "" {
		return path
	}
	if !filepath.IsAbs(path) {
		return path
	}
	if p.inside(path) {
		return path
	}
	return ExternalPrefix + "/" + filepath.Base(path)
}

// ApplyAll redacts a slice of paths in place and returns it.
func (p Paths) ApplyAll(paths []string) []string {
	for i, path := range paths {
		paths[i] = p.Apply(path)
	}
	return paths
}

func (p Paths) inside(path string) bool {
	if p.Root == "" || p.Root == "." {
		return false
	}
	rel, err := filepath.Rel(p.Root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// secretPattern pairs a detection regex with a short name for logs.
type secretPattern struct {
	name    string
	pattern *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{
		name:    "jwt",
		pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`),
	},
	{
		name:    "assignment",
		pattern: regexp.MustCompile(`(?i)\b(api[_-]?key|key|token|password|passwd|pwd|secret)\b\s*[:=]\s*\S+`),
	},
	{
		name:    "aws_access_key",
		pattern: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	},
	{
		name:    "private_key",
		pattern: regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`),
	},
	{
		name:    "hex_blob",
		pattern: regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
	},
}

// Secrets masks credential-shaped substrings in free text.
type Secrets struct {
	Enabled bool
}

// NewSecrets creates a secret filter. Filtering is on unless disabled
// through configuration.
func NewSecrets(enabled bool) Secrets {
	return Secrets{Enabled: enabled}
}

// Apply returns Marker when any pattern matches, and the text unchanged
// otherwise. The whole value is replaced on a match: a secret can recur
// past the matched span, so masking only the match would still leak.
func (s Secrets) Apply(text string) string {
	if !s.Enabled || text == "" {
		return text
	}
	if s.Match(text) {
		return Marker
	}
	return text
}

// ApplyAll filters a slice of strings in place and returns it.
func (s Secrets) ApplyAll(texts []string) []string {
	for i, t := range texts {
		texts[i] = s.Apply(t)
	}
	return texts
}

// Match reports whether text contains anything the filter would mask.
func (s Secrets) Match(text string) bool {
	if text == "" {
		return false
	}
	for _, sp := range secretPatterns {
		if sp.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
