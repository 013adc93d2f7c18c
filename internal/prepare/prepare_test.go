package prepare_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"polytrain/internal/config"
	"polytrain/internal/corpus"
	"polytrain/internal/dispatch"
	"polytrain/internal/lexicon"
	"polytrain/internal/prepare"
	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/testsupport"
)

// scriptExecutor simulates the toolkit preparation script by writing the
// corpus files and raw lexicon the real script would leave behind.
type scriptExecutor struct {
	calls   int
	fail    error
	itemDir string
}

func (s *scriptExecutor) Run(_ context.Context, dir, _ string, _ []string, _ func(string)) error {
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.itemDir = dir

	c := corpus.New()
	c.Add(corpus.Utterance{ID: "u001", Speaker: "spk1", Transcript: "ni hou", Audio: "sox a.wav |"})
	c.Add(corpus.Utterance{ID: "u002", Speaker: "spk1", Transcript: "zoi gin", Audio: "sox b.wav |"})
	if err := corpus.Write(c, filepath.Join(dir, "data")); err != nil {
		return err
	}
	raw := "!SIL\tSIL\nni\tn i\nhou\th ou2\n"
	return os.WriteFile(filepath.Join(dir, "lexicon.raw"), []byte(raw), 0o644)
}

func newPreparer(t *testing.T, exec dispatch.Executor) (*prepare.Preparer, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ConfDir, "cantonese.limited.conf"), "# item config\n")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ConfDir, "rules", "cantonese.rules"),
		"split ou2 o u_t2\ntone 2 t2\n")
	testsupport.MkdirAll(t, cfg.Paths.ResourceDir)

	client, err := dispatch.New(cfg.Dispatch.Command, cfg.Dispatch.MaxJobs, dispatch.WithExecutor(exec))
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return prepare.New(cfg, client, nil), cfg
}

func TestPrepareProducesCorpusAndDictionary(t *testing.T) {
	exec := &scriptExecutor{}
	preparer, cfg := newPreparer(t, exec)

	ws, err := preparer.Prepare(context.Background(), cfg.Items[0])
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected one dispatch call, got %d", exec.calls)
	}
	if exec.itemDir != ws.Dir {
		t.Fatalf("script ran in %q, want workspace %q", exec.itemDir, ws.Dir)
	}
	if !state.IsComplete(ws.DataDir()) {
		t.Fatal("data directory not marked complete")
	}
	if !state.IsComplete(ws.DictDir()) {
		t.Fatal("dict directory not marked complete")
	}

	dict, err := lexicon.ReadDict(ws.DictDir())
	if err != nil {
		t.Fatalf("ReadDict: %v", err)
	}
	prons := dict.Pronunciations("hou")
	if len(prons) != 1 || prons[0].String() != "h o u_t2" {
		t.Fatalf("rules not applied, got %v", prons)
	}
}

func TestPrepareSkipsCompletedSteps(t *testing.T) {
	exec := &scriptExecutor{}
	preparer, cfg := newPreparer(t, exec)

	if _, err := preparer.Prepare(context.Background(), cfg.Items[0]); err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	if _, err := preparer.Prepare(context.Background(), cfg.Items[0]); err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("completed step re-dispatched: %d calls", exec.calls)
	}
}

func TestPrepareLeavesNoMarkerOnScriptFailure(t *testing.T) {
	exec := &scriptExecutor{fail: errors.New("exit status 1")}
	preparer, cfg := newPreparer(t, exec)

	_, err := preparer.Prepare(context.Background(), cfg.Items[0])
	if err == nil || !errors.Is(err, services.ErrStep) {
		t.Fatalf("expected step failure, got %v", err)
	}
	if state.IsComplete(filepath.Join(cfg.ItemDir("cantonese"), "data")) {
		t.Fatal("failed step must not be marked complete")
	}

	// Retry after the failure is repaired.
	exec.fail = nil
	if _, err := preparer.Prepare(context.Background(), cfg.Items[0]); err != nil {
		t.Fatalf("retry Prepare: %v", err)
	}
}

func TestPrepareRejectsEmptyCorpus(t *testing.T) {
	exec := &emptyCorpusExecutor{}
	preparer, cfg := newPreparer(t, exec)

	_, err := preparer.Prepare(context.Background(), cfg.Items[0])
	if err == nil || !errors.Is(err, services.ErrData) {
		t.Fatalf("expected data error for empty corpus, got %v", err)
	}
}

type emptyCorpusExecutor struct{}

func (emptyCorpusExecutor) Run(_ context.Context, dir, _ string, _ []string, _ func(string)) error {
	return corpus.Write(corpus.New(), filepath.Join(dir, "data"))
}

func TestPrepareFailsWithoutItemConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MkdirAll(t, cfg.Paths.ConfDir)
	testsupport.MkdirAll(t, cfg.Paths.ResourceDir)

	client, err := dispatch.New(cfg.Dispatch.Command, 1, dispatch.WithExecutor(&scriptExecutor{}))
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	preparer := prepare.New(cfg, client, nil)

	_, err = preparer.Prepare(context.Background(), cfg.Items[0])
	if err == nil || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
