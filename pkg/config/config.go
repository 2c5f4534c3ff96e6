// Package config holds the engine configuration: global toggles, timing
// knobs, and per-field enable/ttl/limit overrides layered over built-in
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/spyglass/pkg/errs"
)

// Default configuration values exported for documentation and validation
const (
	DefaultDebounceMillis    = 500
	DefaultTaskTimeoutMillis = 2000
	DefaultMaxParallel       = 8
	DefaultCacheCapacity     = 512
	DefaultListenAddr        = "127.0.0.1:7483"
	DefaultMaxTokens         = 24000
	DefaultRatePerSecond     = 5.0
	DefaultRateBurst         = 10
	DefaultLogLevel          = "info"
)

// EnvConfigPath names the environment variable that overrides the config
// file search.
const EnvConfigPath = "SPYGLASS_CONFIG"

// Config represents the complete engine configuration
type Config struct {
	ProjectRoot string                 `yaml:"project_root"`
	Log         LogConfig              `yaml:"log"`
	Acquire     AcquireConfig          `yaml:"acquire"`
	Delta       DeltaConfig            `yaml:"delta"`
	Redaction   RedactionConfig        `yaml:"redaction"`
	Format      FormatConfig           `yaml:"format"`
	Budget      BudgetConfig           `yaml:"budget"`
	Fields      map[string]FieldConfig `yaml:"fields"`
	Journal     JournalConfig          `yaml:"journal"`
	Server      ServerConfig           `yaml:"server"`
	Tracing     TracingConfig          `yaml:"tracing"`
	Watch       WatchConfig            `yaml:"watch"`
}

// LogConfig controls the JSONL event logger.
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// AcquireConfig tunes the load cycle and the parallel task runner.
type AcquireConfig struct {
	DebounceMillis    int `yaml:"debounce_ms"`     // load short-circuit window
	TaskTimeoutMillis int `yaml:"task_timeout_ms"` // batch aggregation window
	MaxParallel       int `yaml:"max_parallel"`
	CacheCapacity     int `yaml:"cache_capacity"`
}

// DeltaConfig controls suppression of already-sent fields.
type DeltaConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RedactionConfig toggles the privacy boundary.
type RedactionConfig struct {
	Paths   bool `yaml:"paths"`
	Secrets bool `yaml:"secrets"`
}

// FormatConfig controls message part serialization.
type FormatConfig struct {
	Toon bool `yaml:"toon"`
}

// BudgetConfig bounds the token footprint of formatted messages.
type BudgetConfig struct {
	Enabled   bool `yaml:"enabled"`
	MaxTokens int  `yaml:"max_tokens"`
}

// FieldConfig overrides one snapshot field. Nil members fall back to the
// built-in default for that field.
type FieldConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	TTLMillis *int64 `yaml:"ttl_ms"`
	Limit     *int   `yaml:"limit"`
}

// JournalConfig controls the local send journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig controls the loopback HTTP server.
type ServerConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Listen        string  `yaml:"listen"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WatchConfig controls filesystem-driven cache invalidation.
type WatchConfig struct {
	Enabled        bool     `yaml:"enabled"`
	DebounceMillis int      `yaml:"debounce_ms"`
	Ignore         []string `yaml:"ignore"`
}

// fieldDefault carries the built-in ttl and item limit for one field key.
// A zero ttl means the field is recomputed on every load and never cached.
type fieldDefault struct {
	ttl   time.Duration
	limit int
}

// Field keys match snapshot field names, plus the two acquisition variants
// of recent_buffers which carry their own freshness windows.
var fieldDefaults = map[string]fieldDefault{
	"current_file":            {0, 0},
	"cursor":                  {0, 0},
	"selections":              {0, 0},
	"diagnostics":             {time.Second, 20},
	"marks":                   {500 * time.Millisecond, 26},
	"jumplist":                {500 * time.Millisecond, 10},
	"recent_buffers":          {30 * time.Second, 5},
	"recent_buffer_preview":   {30 * time.Second, 10},
	"recent_buffer_symbols":   {60 * time.Second, 20},
	"undo_history":            {2 * time.Second, 10},
	"layout":                  {300 * time.Millisecond, 0},
	"highlights":              {2 * time.Second, 120},
	"session":                 {0, 0},
	"registers":               {time.Second, 10},
	"command_history":         {2 * time.Second, 20},
	"debugger":                {time.Second, 0},
	"lsp_context":             {5 * time.Second, 0},
	"plugins":                 {60 * time.Second, 50},
	"vcs":                     {5 * time.Second, 5},
	"folds":                   {500 * time.Millisecond, 50},
	"context_lines":           {0, 10},
	"quickfix":                {time.Second, 20},
	"macros":                  {2 * time.Second, 10},
	"terminal_buffers":        {2 * time.Second, 3},
	"session_duration":        {0, 0},
	"search_snippets":         {30 * time.Second, 3},
	"mentioned_files":         {0, 0},
	"mentioned_file_contents": {0, 0},
	"mentioned_subagents":     {0, 0},
	"buffer_diff":             {5 * time.Second, 400},
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Acquire: AcquireConfig{
			DebounceMillis:    DefaultDebounceMillis,
			TaskTimeoutMillis: DefaultTaskTimeoutMillis,
			MaxParallel:       DefaultMaxParallel,
			CacheCapacity:     DefaultCacheCapacity,
		},
		Delta: DeltaConfig{Enabled: true},
		Redaction: RedactionConfig{
			Paths:   true,
			Secrets: true,
		},
		Format: FormatConfig{Toon: true},
		Budget: BudgetConfig{
			Enabled:   true,
			MaxTokens: DefaultMaxTokens,
		},
		Fields: make(map[string]FieldConfig),
		Journal: JournalConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Enabled:       false,
			Listen:        DefaultListenAddr,
			RatePerSecond: DefaultRatePerSecond,
			RateBurst:     DefaultRateBurst,
		},
		Tracing: TracingConfig{Enabled: false},
		Watch: WatchConfig{
			Enabled:        false,
			DebounceMillis: DefaultDebounceMillis,
			Ignore:         []string{".git", "node_modules", "dist", "target"},
		},
	}
}

// Load reads configuration from path, layered over defaults. An empty path
// walks the search order: $SPYGLASS_CONFIG, ./.spyglass.yaml, then
// ~/.config/spyglass/config.yaml. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errs.Wrap(err, errs.CodeConfigLoad, "reading config file").WithContext("path", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigParse, "parsing config file").WithContext("path", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return expandHomeDir(path)
	}
	if _, err := os.Stat(".spyglass.yaml"); err == nil {
		return ".spyglass.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidate := filepath.Join(home, ".config", "spyglass", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate checks invariants that would otherwise fail deep in the engine.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errs.New(errs.CodeConfigInvalid, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Acquire.DebounceMillis < 0 {
		return errs.New(errs.CodeConfigInvalid, "acquire.debounce_ms must not be negative")
	}
	if c.Acquire.TaskTimeoutMillis < 0 {
		return errs.New(errs.CodeConfigInvalid, "acquire.task_timeout_ms must not be negative")
	}
	if c.Budget.Enabled && c.Budget.MaxTokens <= 0 {
		return errs.New(errs.CodeConfigInvalid, "budget.max_tokens must be positive when the budget is enabled")
	}
	if c.Server.Enabled {
		if c.Server.Listen == "" {
			return errs.New(errs.CodeConfigInvalid, "server.listen must be set when the server is enabled")
		}
		if c.Server.RatePerSecond <= 0 || c.Server.RateBurst <= 0 {
			return errs.New(errs.CodeConfigInvalid, "server rate limit must be positive")
		}
	}
	return nil
}

// FieldEnabled reports whether a field participates in acquisition.
// Unknown field keys are enabled; the engine simply never asks for them.
func (c *Config) FieldEnabled(name string) bool {
	if fc, ok := c.Fields[name]; ok && fc.Enabled != nil {
		return *fc.Enabled
	}
	return true
}

// FieldTTL returns the freshness window for a field key. Zero means the
// field is never cached.
func (c *Config) FieldTTL(name string) time.Duration {
	if fc, ok := c.Fields[name]; ok && fc.TTLMillis != nil {
		return time.Duration(*fc.TTLMillis) * time.Millisecond
	}
	return fieldDefaults[name].ttl
}

// FieldLimit returns the item cap for a field key, 0 when uncapped.
func (c *Config) FieldLimit(name string) int {
	if fc, ok := c.Fields[name]; ok && fc.Limit != nil {
		return *fc.Limit
	}
	return fieldDefaults[name].limit
}

// DebounceInterval is the load short-circuit window.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Acquire.DebounceMillis) * time.Millisecond
}

// TaskTimeout is the aggregation window for external command batches.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Acquire.TaskTimeoutMillis) * time.Millisecond
}

// WatchDebounce is the quiet window for filesystem invalidation bursts.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// ResolveProjectRoot returns the absolute project root the engine should
// operate in: the explicit project_root setting when present, then the
// toplevel of the repository enclosing the working directory, then the
// working directory itself.
func ResolveProjectRoot(cfg *Config) string {
	if cfg != nil {
		root := expandHomeDir(strings.TrimSpace(cfg.ProjectRoot))
		if root != "" {
			if abs, err := filepath.Abs(root); err == nil {
				return abs
			}
			return root
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if top := gitToplevel(cwd); top != "" {
		return top
	}
	return cwd
}

// gitToplevel resolves the worktree root enclosing dir, empty when dir is
// not inside a repository. The same DetectDotGit walk the headless provider
// performs keeps the redaction boundary and repo introspection on one root.
func gitToplevel(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	return wt.Filesystem.Root()
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
