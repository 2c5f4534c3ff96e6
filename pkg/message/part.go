// Package message turns a snapshot into the ordered part list sent to the
// assistant, and recovers structured context from received part lists.
package message

import "encoding/json"

// PartType discriminates the message part union.
type PartType string

const (
	// PartText is free prompt text. The first part of every message is the
	// user's prompt, verbatim.
	PartText PartType = "text"
	// PartFile references an @-mentioned file without embedding it.
	PartFile PartType = "file"
	// PartAgent references an @-mentioned agent.
	PartAgent PartType = "agent"
	// PartSynthetic carries one serialized snapshot field.
	PartSynthetic PartType = "synthetic_text"
)

// Span locates an @-mention inside the prompt text, 0-based byte offsets.
// A zero Span means the mention token does not occur literally.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FileRef is the payload of a PartFile part.
type FileRef struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	MimeType    string `json:"mime_type,omitempty"`
	Span        Span   `json:"span"`
}

// AgentRef is the payload of a PartAgent part.
type AgentRef struct {
	Name string `json:"name"`
	Span Span   `json:"span"`
}

// Synthetic is the payload of a PartSynthetic part. Payload holds the
// serialized {context_type, content} record; ContextType repeats the field
// name so consumers can route without parsing the record.
type Synthetic struct {
	ContextType string `json:"context_type"`
	Payload     string `json:"payload"`
}

// Part is one element of a message. Exactly one payload field is set,
// matching Type.
type Part struct {
	Type      PartType   `json:"type"`
	Text      string     `json:"text,omitempty"`
	File      *FileRef   `json:"file,omitempty"`
	Agent     *AgentRef  `json:"agent,omitempty"`
	Synthetic *Synthetic `json:"synthetic,omitempty"`
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// Extracted is the structured view of a received part list.
type Extracted struct {
	Prompt  string
	Files   []FileRef
	Agents  []AgentRef
	Context map[string]json.RawMessage // context_type to content
}
