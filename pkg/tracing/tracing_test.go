package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// One test function so the no-provider check runs before a provider is
// installed globally.
func TestTracing(t *testing.T) {
	ctx := context.Background()

	// Before installation spans are no-ops.
	_, span := StartSpan(ctx, "engine.load")
	if span.IsRecording() {
		t.Error("span should not record without a provider")
	}
	span.End()

	var buf bytes.Buffer
	tp, err := NewTracerProvider("spyglass", "0.1.0", &buf)
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}

	sctx, span := StartSpan(ctx, "engine.load")
	span.SetAttributes(AttrCycleID.String("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	RecordError(sctx, context.Canceled)
	span.End()

	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "engine.load") {
		t.Errorf("exported spans missing span name:\n%s", out)
	}
	if !strings.Contains(out, "spyglass.cycle.id") {
		t.Errorf("exported spans missing attributes:\n%s", out)
	}
}
