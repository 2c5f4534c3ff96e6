package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/journal"
)

// resolveJournalPath returns the journal database location: the configured
// path, or ~/.spyglass/journal.db when unset.
func resolveJournalPath(cfg *config.Config) string {
	if path := strings.TrimSpace(cfg.Journal.Path); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "journal.db"
	}
	return filepath.Join(home, ".spyglass", "journal.db")
}

// runJournalCommand lists recent sends recorded by the serve mode.
func runJournalCommand(args []string) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config file (default: search order)")
	limit := fs.Int("limit", journal.DefaultRecentLimit, "maximum entries to list")
	asJSON := fs.Bool("json", false, "emit entries as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	path := resolveJournalPath(cfg)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no journal at %s (enable journal.enabled and send a message first)", path)
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(*limit)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No sends recorded.")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "CREATED\tSESSION\tPARTS\tTOKENS\tFIELDS")
	for _, e := range entries {
		created := e.CreatedAt.Local().Format(time.RFC3339)
		fields := strings.Join(e.Fields, ",")
		if fields == "" {
			fields = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\n", created, e.SessionID, e.Parts, e.Tokens, fields)
	}
	return writer.Flush()
}
