package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"polytrain/internal/config"
	"polytrain/internal/corpus"
	"polytrain/internal/dispatch"
	"polytrain/internal/lexicon"
	"polytrain/internal/pipeline"
	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/testsupport"
)

// toolkitExecutor simulates the toolkit script suite: the preparation script
// writes corpus files and a raw lexicon into the item workspace, every other
// script succeeds without output. failOn makes the named script fail.
type toolkitExecutor struct {
	failOn  string
	scripts []string
}

func (e *toolkitExecutor) Run(_ context.Context, dir, _ string, args []string, _ func(string)) error {
	script := filepath.Base(args[2])
	e.scripts = append(e.scripts, script)
	if script == e.failOn {
		return errors.New("exit status 1")
	}
	if script != "prepare_item.sh" {
		return nil
	}

	item := filepath.Base(dir)
	c := corpus.New()
	for i := 0; i < 2; i++ {
		c.Add(corpus.Utterance{
			ID:         fmt.Sprintf("u%03d", i),
			Speaker:    "spk1",
			Transcript: "hello",
			Audio:      fmt.Sprintf("sox %s_%03d.wav |", item, i),
		})
	}
	if err := corpus.Write(c, filepath.Join(dir, "data")); err != nil {
		return err
	}
	// Distinct pronunciations per item so the merge records a conflict.
	raw := fmt.Sprintf("hello\th %c\n", item[0])
	return os.WriteFile(filepath.Join(dir, "lexicon.raw"), []byte(raw), 0o644)
}

func newFixture(t *testing.T, exec dispatch.Executor) (*pipeline.Runner, *config.Config, *state.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithItems(
			config.Item{ID: "cantonese", Tier: config.TierLimited},
			config.Item{ID: "turkish", Tier: config.TierLarge},
		),
		testsupport.WithDispatchCommand("sh"),
		testsupport.WithSubsets(1, 2, 3),
	)
	cfg.Workflow.MinFreeGiB = 0
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ConfDir, "cantonese.limited.conf"), "# cantonese\n")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ConfDir, "turkish.conf"), "# turkish\n")
	testsupport.MkdirAll(t, cfg.Paths.ResourceDir)

	store := testsupport.MustOpenStore(t, cfg)
	client, err := dispatch.New(cfg.Dispatch.Command, cfg.Dispatch.MaxJobs, dispatch.WithExecutor(exec))
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return pipeline.Build(cfg, client, store, nil), cfg, store
}

func TestRunExecutesAllStages(t *testing.T) {
	exec := &toolkitExecutor{}
	runner, cfg, store := newFixture(t, exec)

	if err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	combined, err := corpus.Read(cfg.CombinedCorpusDir())
	if err != nil {
		t.Fatalf("read combined corpus: %v", err)
	}
	if combined.Len() != 4 {
		t.Fatalf("combined corpus has %d utterances, want 4", combined.Len())
	}
	for _, id := range []string{"cantonese__u000", "turkish__u001"} {
		if _, ok := combined.Get(id); !ok {
			t.Fatalf("missing prefixed utterance %q", id)
		}
	}

	dict, err := lexicon.ReadDict(cfg.CombinedDictDir())
	if err != nil {
		t.Fatalf("read combined dict: %v", err)
	}
	if prons := dict.Pronunciations("hello"); len(prons) != 2 {
		t.Fatalf("conflicting pronunciations not preserved: %v", prons)
	}

	for _, status := range pipeline.Status(cfg) {
		if !status.Complete {
			t.Fatalf("stage %s not complete after full run", status.Name)
		}
	}

	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("LastRun: %v %v", run, err)
	}
	if run.Status != state.RunStatusCompleted {
		t.Fatalf("run status %q", run.Status)
	}
	events, err := store.StepEvents(context.Background(), run.ID)
	if err != nil || len(events) == 0 {
		t.Fatalf("expected step events, got %d (%v)", len(events), err)
	}
}

func TestRerunRedispatchesNothing(t *testing.T) {
	exec := &toolkitExecutor{}
	runner, _, _ := newFixture(t, exec)

	if err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	dispatched := len(exec.scripts)
	if err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(exec.scripts) != dispatched {
		t.Fatalf("rerun dispatched %d extra scripts: %v", len(exec.scripts)-dispatched, exec.scripts[dispatched:])
	}
}

func TestRunFailsFastOnStepFailure(t *testing.T) {
	exec := &toolkitExecutor{failOn: "train_mono.sh"}
	runner, _, store := newFixture(t, exec)

	err := runner.Run(context.Background(), 0)
	if err == nil || !errors.Is(err, services.ErrStep) {
		t.Fatalf("expected step failure, got %v", err)
	}
	joined := strings.Join(exec.scripts, " ")
	if strings.Contains(joined, "align_si.sh") || strings.Contains(joined, "train_chain.sh") {
		t.Fatalf("stages beyond the failure ran: %v", exec.scripts)
	}

	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("LastRun: %v %v", run, err)
	}
	if run.Status != state.RunStatusFailed || run.FailureClass != "step" {
		t.Fatalf("run outcome %q/%q", run.Status, run.FailureClass)
	}
}

func TestRunFailsWhenAnyItemFails(t *testing.T) {
	exec := &toolkitExecutor{failOn: "prepare_item.sh"}
	runner, cfg, _ := newFixture(t, exec)

	err := runner.Run(context.Background(), 0)
	if err == nil || !errors.Is(err, services.ErrStep) {
		t.Fatalf("expected step failure, got %v", err)
	}
	if state.IsComplete(cfg.CombinedCorpusDir()) {
		t.Fatal("merge must not run after an item failure")
	}
}

func TestRunRefusesConcurrentInvocation(t *testing.T) {
	runner, cfg, _ := newFixture(t, &toolkitExecutor{})

	testsupport.MkdirAll(t, cfg.Paths.WorkDir)
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: %v %v", locked, err)
	}
	defer lock.Unlock()

	err = runner.Run(context.Background(), 0)
	if err == nil || !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error while locked, got %v", err)
	}
}

func TestRunRejectsInvalidThreshold(t *testing.T) {
	runner, _, _ := newFixture(t, &toolkitExecutor{})
	err := runner.Run(context.Background(), 99)
	if err == nil || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResumeThresholdSkipsEarlierStages(t *testing.T) {
	exec := &toolkitExecutor{}
	runner, _, store := newFixture(t, exec)

	if err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("full Run: %v", err)
	}
	if err := runner.Run(context.Background(), 7); err != nil {
		t.Fatalf("resumed Run: %v", err)
	}

	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("LastRun: %v %v", run, err)
	}
	if run.StartStage != 7 {
		t.Fatalf("recorded start stage %d", run.StartStage)
	}
	events, err := store.StepEvents(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("StepEvents: %v", err)
	}
	skipped := 0
	for _, event := range events {
		if event.Step == "stage" && event.Status == state.StepStatusSkipped {
			skipped++
		}
	}
	if skipped != 7 {
		t.Fatalf("expected 7 skipped stages, got %d", skipped)
	}
}

func TestResetForcesRerun(t *testing.T) {
	exec := &toolkitExecutor{}
	runner, cfg, _ := newFixture(t, exec)

	if err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cleared, err := pipeline.Reset(cfg, 5)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(cleared) == 0 {
		t.Fatal("expected markers cleared")
	}

	statuses := pipeline.Status(cfg)
	if !statuses[4].Complete || statuses[5].Complete {
		t.Fatalf("unexpected statuses after reset: %+v", statuses)
	}

	dispatched := len(exec.scripts)
	if err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	rerun := exec.scripts[dispatched:]
	if len(rerun) == 0 {
		t.Fatal("reset stages did not rerun")
	}
	for _, script := range rerun {
		switch script {
		case "train_mono.sh", "prepare_item.sh":
			t.Fatalf("stage before the reset point reran: %v", rerun)
		}
	}
}
