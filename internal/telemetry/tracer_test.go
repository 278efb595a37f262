package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/teslashibe/go-xeo/internal/log"
)

func TestInitTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer("xeo-test", &buf, log.Discard())
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}

	_, span := Tracer("test").Start(context.Background(), "dispatch")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"Name": "dispatch"`) {
		t.Errorf("Expected exported span, got %s", buf.String())
	}
}
