package logging_test

import (
	"context"
	"strings"
	"testing"

	"polytrain/internal/logging"
	"polytrain/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithItem(context.Background(), "cantonese")
	ctx = services.WithStage(ctx, "prepare")
	ctx = services.WithRunID(ctx, "run-1")

	fields := logging.ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	joined := make([]string, 0, len(fields))
	for _, f := range fields {
		joined = append(joined, f.Key+"="+f.Value.String())
	}
	got := strings.Join(joined, " ")
	for _, want := range []string{"item=cantonese", "stage=prepare", "run_id=run-1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected fallback logger")
	}
	logger.Info("safe to log")
}
