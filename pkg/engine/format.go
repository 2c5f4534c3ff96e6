package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/spyglass/pkg/budget"
	"github.com/odvcencio/spyglass/pkg/delta"
	"github.com/odvcencio/spyglass/pkg/errs"
	"github.com/odvcencio/spyglass/pkg/logging"
	"github.com/odvcencio/spyglass/pkg/message"
	"github.com/odvcencio/spyglass/pkg/snapshot"
	"github.com/odvcencio/spyglass/pkg/tracing"
)

// FormatOptions adjust one outgoing message.
type FormatOptions struct {
	// FullResend skips delta suppression for this message.
	FullResend bool
}

// ComputeDelta returns the current snapshot reduced against the last
// transmission. It does not stage anything for MarkSent.
func (e *Engine) ComputeDelta() *snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return delta.Compute(e.snap, e.lastSent, delta.Options{Disabled: !e.cfg.Delta.Enabled})
}

// FormatMessage builds the outgoing message parts for a prompt: delta
// reduction, mention content loading, then part serialization. The snapshot
// as of this call is staged so a later MarkSent records exactly what was
// formatted, not whatever loads land in between.
func (e *Engine) FormatMessage(ctx context.Context, prompt string, opts FormatOptions) []message.Part {
	_, span := tracing.StartSpan(ctx, "engine.format")
	defer span.End()

	disabled := !e.cfg.Delta.Enabled || opts.FullResend

	e.mu.Lock()
	out := delta.Compute(e.snap, e.lastSent, delta.Options{Disabled: disabled})
	e.pendingSent = e.snap.Clone()
	cycle := e.cycleID
	e.mu.Unlock()

	e.attachMentionContents(out)

	parts := e.format.Format(prompt, out)
	span.SetAttributes(
		tracing.AttrSessionID.String(e.sessionID),
		tracing.AttrPartCount.Int(len(parts)),
	)

	if e.cfg.Budget.Enabled {
		report := budget.Measure(parts)
		if report.Exceeds(e.cfg.Budget.MaxTokens) {
			e.log.Warn(logging.CategoryFormat, "budget_exceeded", "", map[string]any{
				"tokens": report.TotalTokens,
				"limit":  e.cfg.Budget.MaxTokens,
				"parts":  report.Parts,
			})
		}
	}

	metricFormats.Inc()
	e.log.Info(logging.CategoryFormat, "format", "", map[string]any{
		"cycle": cycle,
		"parts": len(parts),
	})
	return parts
}

// attachMentionContents reads each mentioned file from disk into the
// outgoing copy. Mention paths stay verbatim; path redaction does not apply
// to explicit attachments. A file that cannot be read contributes nothing.
func (e *Engine) attachMentionContents(out *snapshot.Snapshot) {
	out.MentionedFileContents = nil
	if !e.fieldEnabled(snapshot.FieldMentionedFileContents) || len(out.MentionedFiles) == 0 {
		return
	}

	var contents []snapshot.FileContent
	for _, mf := range out.MentionedFiles {
		path := mf.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.root, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			e.reportMentionFailure(mf.Path, err)
			continue
		}
		contents = append(contents, snapshot.FileContent{
			Path:    mf.Path,
			Content: string(data),
		})
	}
	out.MentionedFileContents = contents
}

// reportMentionFailure logs every failed read but notifies the host at most
// once per path until the mention set is cleared.
func (e *Engine) reportMentionFailure(path string, err error) {
	metricMentionFailures.Inc()
	werr := errs.Wrap(err, errs.CodeMentionRead, "failed to read mentioned file")
	e.log.Warn(logging.CategoryMention, "mention_read_failed", "", map[string]any{
		"path":  path,
		"error": werr.Error(),
	})

	e.mu.Lock()
	seen := e.notifiedMentions[path]
	e.notifiedMentions[path] = true
	notify := e.notify
	e.mu.Unlock()

	if seen || notify == nil {
		return
	}
	notify.Notify(fmt.Sprintf("could not read mentioned file: %s", path))
}

// MarkSent commits the staged snapshot as the delta baseline. Callers
// invoke it after the host confirms transmission. Without a staged
// snapshot, the current one is used.
func (e *Engine) MarkSent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingSent != nil {
		e.lastSent = e.pendingSent
		e.pendingSent = nil
		return
	}
	e.lastSent = e.snap.Clone()
}
