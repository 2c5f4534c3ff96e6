package toon

import (
	"strings"
	"testing"
)

type sample struct {
	Message string
	Count   int
}

func TestCodecProducesToonPayload(t *testing.T) {
	codec := New(true)
	value := sample{Message: "hello", Count: 3}

	data, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	if string(data) == "" || data[0] == '{' {
		t.Fatalf("expected TOON output, got %q", string(data))
	}
}

func TestCodecJSONRoundTrip(t *testing.T) {
	codec := New(false)
	value := sample{Message: "json", Count: 1}

	data, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded sample
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded != value {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, value)
	}
}

func TestEncodePayloadCarriesContextType(t *testing.T) {
	codec := New(false)

	data, err := codec.EncodePayload("cursor", map[string]int{"line": 12, "column": 4})
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	p, err := codec.DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	if p.ContextType != "cursor" {
		t.Errorf("context_type = %q, want cursor", p.ContextType)
	}
	content, ok := p.Content.(map[string]any)
	if !ok {
		t.Fatalf("content has unexpected shape: %T", p.Content)
	}
	if content["line"] != float64(12) {
		t.Errorf("content line = %v", content["line"])
	}
}

func TestEncodePayloadToonMentionsField(t *testing.T) {
	codec := New(true)

	data, err := codec.EncodePayload("vcs", map[string]string{"branch": "main"})
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}
	if !strings.Contains(string(data), "vcs") {
		t.Errorf("payload should name its field, got %q", string(data))
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	codec := New(false)
	if _, err := codec.DecodePayload([]byte("not a record")); err == nil {
		t.Fatalf("expected decode error for malformed payload")
	}
}
