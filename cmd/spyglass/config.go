package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/spyglass/pkg/config"
)

func runConfigCommand(args []string) error {
	subCmd := "show"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "check":
		return runConfigCheck()
	case "show":
		return runConfigShow()
	case "path":
		return runConfigPath()
	default:
		return fmt.Errorf("unknown config command: %s (use check, show, or path)", subCmd)
	}
}

func runConfigCheck() error {
	fmt.Println("Checking Spyglass configuration...")
	fmt.Println()

	fmt.Println("Configuration files:")
	if env := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); env != "" {
		if _, err := os.Stat(env); err == nil {
			fmt.Printf("  ✓ %s:  %s\n", config.EnvConfigPath, env)
		} else {
			fmt.Printf("  ✗ %s:  %s (not found)\n", config.EnvConfigPath, env)
		}
	}
	if _, err := os.Stat(".spyglass.yaml"); err == nil {
		fmt.Printf("  ✓ Project config: .spyglass.yaml\n")
	} else {
		fmt.Printf("  - Project config: .spyglass.yaml (not found)\n")
	}
	userConfig := userConfigPath()
	if _, err := os.Stat(userConfig); err == nil {
		fmt.Printf("  ✓ User config:    %s\n", userConfig)
	} else {
		fmt.Printf("  - User config:    %s (not found)\n", userConfig)
	}
	fmt.Println()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Validation: %v\n", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Validation: %v\n", err)
		return err
	}
	fmt.Println("Validation: ok")
	return nil
}

func runConfigShow() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Printf("Project root: %s\n", config.ResolveProjectRoot(cfg))
	fmt.Println()
	fmt.Printf("Acquire:\n")
	fmt.Printf("  Debounce:       %s\n", cfg.DebounceInterval())
	fmt.Printf("  Task timeout:   %s\n", cfg.TaskTimeout())
	fmt.Printf("  Max parallel:   %d\n", cfg.Acquire.MaxParallel)
	fmt.Printf("  Cache capacity: %d\n", cfg.Acquire.CacheCapacity)
	fmt.Println()
	fmt.Printf("Delta:     %s\n", onOff(cfg.Delta.Enabled))
	fmt.Printf("Redaction: paths=%v secrets=%v\n", cfg.Redaction.Paths, cfg.Redaction.Secrets)
	fmt.Printf("Format:    toon=%v\n", cfg.Format.Toon)
	if cfg.Budget.Enabled {
		fmt.Printf("Budget:    enabled, max %d tokens\n", cfg.Budget.MaxTokens)
	} else {
		fmt.Printf("Budget:    disabled\n")
	}
	fmt.Println()
	if cfg.Journal.Enabled {
		fmt.Printf("Journal:   %s\n", resolveJournalPath(cfg))
	} else {
		fmt.Printf("Journal:   disabled\n")
	}
	if cfg.Server.Enabled {
		fmt.Printf("Server:    %s (%.0f req/s, burst %d)\n", cfg.Server.Listen, cfg.Server.RatePerSecond, cfg.Server.RateBurst)
	} else {
		fmt.Printf("Server:    disabled (would bind %s)\n", cfg.Server.Listen)
	}
	if cfg.Watch.Enabled {
		fmt.Printf("Watch:     %s debounce, ignoring %s\n", time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond, strings.Join(cfg.Watch.Ignore, ","))
	} else {
		fmt.Printf("Watch:     disabled\n")
	}

	if len(cfg.Fields) > 0 {
		fmt.Println()
		fmt.Printf("Field overrides:\n")
		for name := range cfg.Fields {
			fmt.Printf("  %s: enabled=%v ttl=%s limit=%d\n", name, cfg.FieldEnabled(name), cfg.FieldTTL(name), cfg.FieldLimit(name))
		}
	}
	return nil
}

func runConfigPath() error {
	fmt.Println("Configuration file locations:")
	fmt.Printf("  Env:     $%s\n", config.EnvConfigPath)
	fmt.Printf("  Project: .spyglass.yaml\n")
	fmt.Printf("  User:    %s\n", userConfigPath())
	return nil
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", ".config", "spyglass", "config.yaml")
	}
	return filepath.Join(home, ".config", "spyglass", "config.yaml")
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
