// Package toon serializes synthetic context payloads. TOON output is
// compact and model-friendly; JSON is the fallback and the only decode
// format, since payloads travel one way.
package toon

import (
	"encoding/json"
	"fmt"

	"github.com/alpkeskin/gotoon"
)

// Payload is the self-describing record carried by synthetic message parts.
// ContextType repeats the snapshot field name so a consumer can route the
// record without knowing the part layout.
type Payload struct {
	ContextType string `json:"context_type"`
	Content     any    `json:"content"`
}

// Codec wraps gotoon serialization with JSON fallback.
type Codec struct {
	useToon bool
}

// New creates a codec that prefers TOON for compact serialization.
func New(useToon bool) *Codec {
	return &Codec{useToon: useToon}
}

// Marshal encodes v into TOON (or JSON when disabled).
func (c *Codec) Marshal(v any) ([]byte, error) {
	if !c.useToon || v == nil {
		return json.Marshal(v)
	}
	encoded, err := gotoon.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("toon encode: %w", err)
	}
	return []byte(encoded), nil
}

// EncodePayload serializes a {context_type, content} record for a snapshot
// field. When TOON encoding fails for a value shape it cannot express, the
// record falls back to JSON rather than dropping the field.
func (c *Codec) EncodePayload(contextType string, content any) ([]byte, error) {
	p := Payload{ContextType: contextType, Content: content}
	if c.useToon {
		if encoded, err := gotoon.Encode(p); err == nil {
			return []byte(encoded), nil
		}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payload encode %s: %w", contextType, err)
	}
	return data, nil
}

// Unmarshal decodes JSON payloads back into Go values. TOON is designed for
// one-way transmission to models, so we always fall back to standard JSON
// parsing when we need to recover data.
func (c *Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DecodePayload recovers a payload record from its JSON form. TOON-encoded
// payloads are not recoverable and return an error; callers treat that as
// skip, not failure.
func (c *Codec) DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("payload decode: %w", err)
	}
	return p, nil
}
