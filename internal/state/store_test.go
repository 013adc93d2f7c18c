package state_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/testsupport"
)

func TestMarkerLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exp", "mono")
	if state.IsComplete(dir) {
		t.Fatal("fresh directory should not be complete")
	}
	if err := state.MarkComplete(dir); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if !state.IsComplete(dir) {
		t.Fatal("expected marker after MarkComplete")
	}
	if err := state.ClearMarker(dir); err != nil {
		t.Fatalf("ClearMarker: %v", err)
	}
	if state.IsComplete(dir) {
		t.Fatal("expected marker removed")
	}
	// Clearing twice stays silent.
	if err := state.ClearMarker(dir); err != nil {
		t.Fatalf("ClearMarker on absent marker: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, 3)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if run.ID == "" || run.Status != state.RunStatusRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	event := state.StepEvent{
		RunID:    run.ID,
		Stage:    "mono",
		Step:     "train",
		Status:   state.StepStatusCompleted,
		Duration: 2 * time.Second,
	}
	if err := store.RecordStep(ctx, event); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}

	if err := store.FinishRun(ctx, run.ID, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	last, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last == nil || last.ID != run.ID {
		t.Fatalf("unexpected last run %+v", last)
	}
	if last.Status != state.RunStatusCompleted {
		t.Fatalf("expected completed, got %q", last.Status)
	}
	if last.StartStage != 3 {
		t.Fatalf("expected start stage 3, got %d", last.StartStage)
	}

	events, err := store.StepEvents(ctx, run.ID)
	if err != nil {
		t.Fatalf("StepEvents: %v", err)
	}
	if len(events) != 1 || events[0].Step != "train" || events[0].Duration != 2*time.Second {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestFinishRunRecordsFailureClass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, 0)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	failure := services.Wrap(services.ErrData, "combine", "merge corpora", "duplicate utterance id", errors.New("zulu__u1"))
	if err := store.FinishRun(ctx, run.ID, failure); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	last, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last.Status != state.RunStatusFailed {
		t.Fatalf("expected failed, got %q", last.Status)
	}
	if last.FailureClass != "data" {
		t.Fatalf("expected failure class data, got %q", last.FailureClass)
	}
	if last.ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}
}

func TestRecordStepRequiresRunID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.RecordStep(context.Background(), state.StepEvent{Stage: "mono", Step: "train"}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}
