package message

import (
	"encoding/json"
	"mime"
	"path/filepath"
	"strings"

	"github.com/odvcencio/spyglass/pkg/encoding/toon"
	"github.com/odvcencio/spyglass/pkg/logging"
	"github.com/odvcencio/spyglass/pkg/snapshot"
)

// DefaultMimeType is assumed when no type can be derived from the file
// extension.
const DefaultMimeType = "text/plain"

// Formatter serializes snapshots into part lists.
type Formatter struct {
	codec *toon.Codec
	log   *logging.Logger
}

// NewFormatter creates a formatter using codec for synthetic payloads.
func NewFormatter(codec *toon.Codec, log *logging.Logger) *Formatter {
	if codec == nil {
		codec = toon.New(false)
	}
	return &Formatter{codec: codec, log: log}
}

// Format builds the outgoing part list: the prompt first, then one
// synthetic part per present snapshot field in canonical order, then file
// and agent reference parts for the recorded mentions. An empty prompt
// still yields the leading text part.
//
// A field whose payload cannot be serialized is skipped, never fatal.
func (f *Formatter) Format(prompt string, snap *snapshot.Snapshot) []Part {
	parts := []Part{TextPart(prompt)}
	if snap == nil {
		return parts
	}

	for _, field := range snapshot.Order {
		switch field {
		case snapshot.FieldMentionedFiles:
			for _, mf := range snap.MentionedFiles {
				parts = append(parts, f.filePart(prompt, mf))
			}
		case snapshot.FieldMentionedSubagents:
			for _, name := range snap.MentionedSubagents {
				parts = append(parts, Part{
					Type:  PartAgent,
					Agent: &AgentRef{Name: name, Span: mentionSpan(prompt, name)},
				})
			}
		default:
			value, ok := snap.Value(field)
			if !ok {
				continue
			}
			payload, err := f.codec.EncodePayload(field.String(), value)
			if err != nil {
				f.log.Warn(logging.CategoryFormat, "payload_skipped", field.String(), map[string]any{
					"error": err.Error(),
				})
				continue
			}
			parts = append(parts, Part{
				Type: PartSynthetic,
				Synthetic: &Synthetic{
					ContextType: field.String(),
					Payload:     string(payload),
				},
			})
		}
	}
	return parts
}

func (f *Formatter) filePart(prompt string, mf snapshot.MentionedFile) Part {
	mimeType := mf.MimeType
	if mimeType == "" {
		mimeType = MimeTypeForPath(mf.Path)
	}
	return Part{
		Type: PartFile,
		File: &FileRef{
			Path:        mf.Path,
			DisplayName: mf.DisplayName,
			MimeType:    mimeType,
			Span:        mentionSpan(prompt, mf.Path, mf.DisplayName),
		},
	}
}

// MimeTypeForPath derives a mime type from the file extension.
func MimeTypeForPath(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return DefaultMimeType
	}
	// Strip parameters such as charset; consumers only route on the type.
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// mentionSpan locates the first literal @token occurrence for any of the
// candidate tokens. A missing token yields the zero span, pointing at the
// start of the prompt.
func mentionSpan(prompt string, candidates ...string) Span {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		token := "@" + c
		if idx := strings.Index(prompt, token); idx >= 0 {
			return Span{Start: idx, End: idx + len(token)}
		}
	}
	return Span{}
}

// Extract recovers structured context from a received part list: the prompt
// from the first text part, file and agent references, and decodable
// synthetic payloads keyed by context_type. Malformed synthetic parts are
// skipped.
func (f *Formatter) Extract(parts []Part) Extracted {
	out := Extracted{Context: make(map[string]json.RawMessage)}
	promptSeen := false

	for _, part := range parts {
		switch part.Type {
		case PartText:
			if !promptSeen {
				out.Prompt = part.Text
				promptSeen = true
			}
		case PartFile:
			if part.File != nil {
				out.Files = append(out.Files, *part.File)
			}
		case PartAgent:
			if part.Agent != nil {
				out.Agents = append(out.Agents, *part.Agent)
			}
		case PartSynthetic:
			if part.Synthetic == nil || part.Synthetic.Payload == "" {
				continue
			}
			var record struct {
				ContextType string          `json:"context_type"`
				Content     json.RawMessage `json:"content"`
			}
			if err := f.codec.Unmarshal([]byte(part.Synthetic.Payload), &record); err != nil {
				f.log.Debug(logging.CategoryFormat, "payload_undecodable", part.Synthetic.ContextType, nil)
				continue
			}
			key := record.ContextType
			if key == "" {
				key = part.Synthetic.ContextType
			}
			if key == "" {
				continue
			}
			out.Context[key] = record.Content
		}
	}
	return out
}
