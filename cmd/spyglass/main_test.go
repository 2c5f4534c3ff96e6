package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/spyglass/pkg/budget"
	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/message"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	out, _ := io.ReadAll(r)
	return string(out)
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	fn()
	_ = w.Close()
	os.Stderr = old
	out, _ := io.ReadAll(r)
	return string(out)
}

// writeTestConfig writes a config that keeps commands hermetic: temp project
// root, temp log dir, no journal, no token encoder.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`project_root: %s
log:
  dir: %s
budget:
  enabled: false
%s`, dir, filepath.Join(dir, "logs"), extra)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDispatchSubcommandEmptyPassthrough(t *testing.T) {
	handled, code := dispatchSubcommand(nil)
	if handled || code != 0 {
		t.Fatalf("empty args handled=%v code=%d, want passthrough", handled, code)
	}
}

func TestDispatchSubcommandHelpAndVersion(t *testing.T) {
	helpOut := captureStdout(t, func() {
		handled, code := dispatchSubcommand([]string{"--help"})
		if !handled || code != 0 {
			t.Fatalf("help handled=%v code=%d", handled, code)
		}
	})
	if !strings.Contains(helpOut, "Spyglass - Editor Context Engine") {
		t.Fatalf("unexpected help output: %q", helpOut)
	}
	if !strings.Contains(helpOut, "collect") || !strings.Contains(helpOut, "serve") {
		t.Fatalf("expected help to list commands, got: %q", helpOut)
	}

	versionOut := captureStdout(t, func() {
		handled, code := dispatchSubcommand([]string{"version"})
		if !handled || code != 0 {
			t.Fatalf("version handled=%v code=%d", handled, code)
		}
	})
	if !strings.Contains(versionOut, "Spyglass") {
		t.Fatalf("unexpected version output: %q", versionOut)
	}
}

func TestDispatchSubcommandUnknown(t *testing.T) {
	errOut := captureStderr(t, func() {
		handled, code := dispatchSubcommand([]string{"bogus"})
		if !handled || code != 1 {
			t.Fatalf("unknown handled=%v code=%d", handled, code)
		}
	})
	if !strings.Contains(errOut, "unknown command: bogus") {
		t.Fatalf("expected unknown command message, got %q", errOut)
	}

	errOut = captureStderr(t, func() {
		handled, code := dispatchSubcommand([]string{"--bogus"})
		if !handled || code != 1 {
			t.Fatalf("unknown flag handled=%v code=%d", handled, code)
		}
	})
	if !strings.Contains(errOut, "unknown flag: --bogus") {
		t.Fatalf("expected unknown flag message, got %q", errOut)
	}
}

func TestRunCommandReportsErrors(t *testing.T) {
	errOut := captureStderr(t, func() {
		code := runCommand(func([]string) error {
			return fmt.Errorf("bad wiring")
		}, nil)
		if code != 1 {
			t.Fatalf("exitCode=%d want 1", code)
		}
	})
	if !strings.Contains(errOut, "bad wiring") {
		t.Fatalf("expected error output, got %q", errOut)
	}

	code := runCommand(func([]string) error { return nil }, nil)
	if code != 0 {
		t.Fatalf("exitCode=%d want 0", code)
	}
}

func TestRunCollectCommandJSON(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out := captureStdout(t, func() {
		if err := runCollectCommand([]string{"--config", cfgPath, "--prompt", "explain this"}); err != nil {
			t.Fatalf("collect: %v", err)
		}
	})

	var got collectOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("collect output is not JSON: %v\n%s", err, out)
	}
	if got.SessionID == "" {
		t.Fatalf("expected a session id")
	}
	if len(got.Parts) == 0 || got.Parts[0].Type != message.PartText || got.Parts[0].Text != "explain this" {
		t.Fatalf("expected prompt first, got %+v", got.Parts)
	}
	if got.Budget.Parts != len(got.Parts) {
		t.Fatalf("budget parts=%d want %d", got.Budget.Parts, len(got.Parts))
	}
}

func TestRunCollectCommandPositionalPrompt(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out := captureStdout(t, func() {
		if err := runCollectCommand([]string{"--config", cfgPath, "explain", "this"}); err != nil {
			t.Fatalf("collect: %v", err)
		}
	})

	var got collectOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("collect output is not JSON: %v", err)
	}
	if got.Parts[0].Text != "explain this" {
		t.Fatalf("positional prompt=%q want %q", got.Parts[0].Text, "explain this")
	}
}

func TestRunCollectCommandPretty(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out := captureStdout(t, func() {
		if err := runCollectCommand([]string{"--config", cfgPath, "--pretty", "--prompt", "hello"}); err != nil {
			t.Fatalf("collect --pretty: %v", err)
		}
	})
	if !strings.Contains(out, "Context message") {
		t.Fatalf("expected rendered summary, got %q", out)
	}
}

func TestCollectMarkdownSections(t *testing.T) {
	parts := []message.Part{
		message.TextPart("fix the bug"),
		{Type: message.PartSynthetic, Synthetic: &message.Synthetic{ContextType: "current_file", Payload: `{"path":"a.go"}`}},
		{Type: message.PartFile, File: &message.FileRef{Path: "a.go", DisplayName: "a.go"}},
		{Type: message.PartAgent, Agent: &message.AgentRef{Name: "reviewer"}},
	}
	md := collectMarkdown(parts, budget.Measure(parts))

	for _, want := range []string{"## Prompt", "fix the bug", "## current_file", "mentioned file: `a.go`", "mentioned agent: `reviewer`", "4 parts"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestCollectMarkdownSkipsEmptyPrompt(t *testing.T) {
	parts := []message.Part{message.TextPart("")}
	md := collectMarkdown(parts, budget.Measure(parts))
	if strings.Contains(md, "## Prompt") {
		t.Fatalf("empty prompt should be omitted:\n%s", md)
	}
}

func TestResolveJournalPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Journal.Path = "/tmp/custom.db"
	if got := resolveJournalPath(cfg); got != "/tmp/custom.db" {
		t.Fatalf("path=%q want explicit setting", got)
	}

	cfg.Journal.Path = ""
	got := resolveJournalPath(cfg)
	if !strings.Contains(got, ".spyglass") || !strings.HasSuffix(got, "journal.db") {
		t.Fatalf("default path=%q want ~/.spyglass/journal.db", got)
	}
}

func TestRunJournalCommandMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, fmt.Sprintf("journal:\n  enabled: true\n  path: %s\n", filepath.Join(dir, "absent.db")))

	err := runJournalCommand([]string{"--config", cfgPath})
	if err == nil || !strings.Contains(err.Error(), "no journal at") {
		t.Fatalf("expected missing-journal error, got %v", err)
	}
}

func TestRunServeCommandRejectsUnknownFlag(t *testing.T) {
	if err := runServeCommand([]string{"--bogus"}); err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestRunServeWithWatchAnswersHealth(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfgPath := writeTestConfig(t, "watch:\n  enabled: true\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, []string{"--config", cfgPath, "--bind", addr}) }()

	// The watcher runs for the whole serve lifetime; the listener must
	// come up anyway.
	client := &http.Client{Timeout: time.Second}
	healthy := false
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
		resp, err := client.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !healthy {
		t.Fatal("server never answered /healthz with watching enabled")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down on cancel")
	}
}

func TestRunConfigCommandUnknown(t *testing.T) {
	err := runConfigCommand([]string{"bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown config command") {
		t.Fatalf("expected unknown config command error, got %v", err)
	}
}

func TestRunConfigShow(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	t.Setenv(config.EnvConfigPath, cfgPath)

	out := captureStdout(t, func() {
		if err := runConfigShow(); err != nil {
			t.Fatalf("config show: %v", err)
		}
	})
	for _, want := range []string{"Current configuration:", "Acquire:", "Budget:    disabled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestRunConfigPath(t *testing.T) {
	out := captureStdout(t, func() {
		if err := runConfigPath(); err != nil {
			t.Fatalf("config path: %v", err)
		}
	})
	if !strings.Contains(out, ".spyglass.yaml") || !strings.Contains(out, config.EnvConfigPath) {
		t.Fatalf("unexpected config path output: %q", out)
	}
}
