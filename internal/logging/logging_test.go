package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestContextRoundTrip(t *testing.T) {
	logger := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected logger to round-trip through context")
	}
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger for bare context")
	}
	if ContextWithLogger(context.Background(), nil) != context.Background() {
		t.Fatalf("expected nil logger to leave context unchanged")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("expected console logger, got %v", err)
	}
	if _, err := New(Options{}); err != nil {
		t.Fatalf("expected defaults to build, got %v", err)
	}
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatalf("expected invalid level to fail")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected invalid format to fail")
	}
}
