// Command spyglass drives the context engine from a shell: one-shot
// collection, the loopback server, and the send journal.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/logging"
)

// Build-time variables (set via ldflags)
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if handled, exitCode := dispatchSubcommand(os.Args[1:]); handled {
		os.Exit(exitCode)
	}
	printHelp()
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return true, 0
	case "--help", "-h", "help":
		printHelp()
		return true, 0
	case "collect":
		return true, runCommand(runCollectCommand, args[1:])
	case "serve":
		return true, runCommand(runServeCommand, args[1:])
	case "journal":
		return true, runCommand(runJournalCommand, args[1:])
	case "config":
		return true, runCommand(runConfigCommand, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(os.Stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(os.Stderr, "Run 'spyglass --help' for usage.")
		return true, 1
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("Spyglass %s\n", version)
	if commit != "unknown" {
		fmt.Printf("  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Printf("  Built:      %s\n", buildDate)
	}
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

func printHelp() {
	fmt.Println("Spyglass - Editor Context Engine")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  spyglass <COMMAND> [FLAGS]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  collect [--prompt <p>]           Collect context once and print the message parts")
	fmt.Println("  collect --file <f> --line <n>    Pin the active file and cursor for collection")
	fmt.Println("  collect --pretty                 Render a markdown summary instead of JSON")
	fmt.Println("  serve [--bind host:port]         Start the loopback HTTP/WebSocket server")
	fmt.Println("  journal [--limit <n>] [--json]   List recent sends from the journal")
	fmt.Println("  config [check|show|path]         Inspect configuration")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  --config <path>                  Use a specific config file (per command)")
	fmt.Println("  -v, --version                    Show version information")
	fmt.Println("  -h, --help                       Show this help")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  SPYGLASS_CONFIG                  Config file path (overrides the search order)")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("  Project config: ./.spyglass.yaml")
	fmt.Println("  User config:    ~/.config/spyglass/config.yaml")
	fmt.Println("  Run 'spyglass config check' to validate your setup")
	fmt.Println()
	fmt.Println("DOCUMENTATION:")
	fmt.Println("  https://github.com/odvcencio/spyglass")
}

// openLogger builds the JSONL event logger for one session. Logging never
// blocks a command: failures degrade to a nil logger, which every consumer
// tolerates.
func openLogger(cfg *config.Config, sessionID string) *logging.Logger {
	dir := strings.TrimSpace(cfg.Log.Dir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		dir = filepath.Join(home, ".spyglass", "logs")
	}
	log, err := logging.NewLogger(dir, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event log disabled: %v\n", err)
		return nil
	}
	log.SetMinLevel(logging.Level(cfg.Log.Level))
	return log
}
