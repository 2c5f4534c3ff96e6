package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/spyglass/pkg/budget"
	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/engine"
	"github.com/odvcencio/spyglass/pkg/host/headless"
	"github.com/odvcencio/spyglass/pkg/message"
)

type collectOutput struct {
	SessionID string         `json:"session_id"`
	Parts     []message.Part `json:"parts"`
	Budget    budget.Report  `json:"budget"`
}

// runCollectCommand performs one full load cycle against the headless
// provider and prints the message the engine would send.
func runCollectCommand(args []string) error {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config file (default: search order)")
	file := fs.String("file", "", "active file, absolute or relative to the project root")
	line := fs.Int("line", 0, "1-based cursor line inside --file")
	prompt := fs.String("prompt", "", "prompt text to format the message for")
	full := fs.Bool("full", false, "resend all context instead of the delta")
	pretty := fs.Bool("pretty", false, "render a markdown summary instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*prompt) == "" && fs.NArg() > 0 {
		*prompt = strings.Join(fs.Args(), " ")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	sessionID := ulid.Make().String()
	log := openLogger(cfg, sessionID)
	if log != nil {
		defer log.Close()
	}

	root := config.ResolveProjectRoot(cfg)
	provider := headless.New(root, headless.Options{File: *file, Line: *line}, log)
	eng := engine.New(cfg, provider,
		engine.WithLogger(log),
		engine.WithSessionID(sessionID),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// One-shot: run the deferred phase to completion so the output carries
	// everything the provider can describe.
	eng.Load(ctx)
	eng.Wait()

	parts := eng.FormatMessage(ctx, *prompt, engine.FormatOptions{FullResend: *full})
	report := budget.Measure(parts)

	if *pretty {
		return renderCollectMarkdown(parts, report)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(collectOutput{
		SessionID: eng.SessionID(),
		Parts:     parts,
		Budget:    report,
	})
}

// collectMarkdown builds a human-oriented markdown view of the part list.
func collectMarkdown(parts []message.Part, report budget.Report) string {
	var b strings.Builder
	b.WriteString("# Context message\n\n")
	for _, p := range parts {
		switch p.Type {
		case message.PartText:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			b.WriteString("## Prompt\n\n")
			b.WriteString(p.Text)
			b.WriteString("\n\n")
		case message.PartSynthetic:
			if p.Synthetic == nil {
				continue
			}
			fmt.Fprintf(&b, "## %s\n\n```\n%s\n```\n\n", p.Synthetic.ContextType, p.Synthetic.Payload)
		case message.PartFile:
			if p.File == nil {
				continue
			}
			fmt.Fprintf(&b, "- mentioned file: `%s`\n", p.File.DisplayName)
		case message.PartAgent:
			if p.Agent == nil {
				continue
			}
			fmt.Fprintf(&b, "- mentioned agent: `%s`\n", p.Agent.Name)
		}
	}
	fmt.Fprintf(&b, "\n---\n\n%d parts, %d tokens\n", report.Parts, report.TotalTokens)
	return b.String()
}

// renderCollectMarkdown prints the markdown summary. Rendering falls back
// to plain markdown when the terminal renderer cannot be built, so --pretty
// works in pipes too.
func renderCollectMarkdown(parts []message.Part, report budget.Report) error {
	md := collectMarkdown(parts, report)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil || renderer == nil {
		fmt.Print(md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	fmt.Print(out)
	return nil
}
