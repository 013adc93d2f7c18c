package trainer_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"polytrain/internal/config"
	"polytrain/internal/corpus"
	"polytrain/internal/dispatch"
	"polytrain/internal/lexicon"
	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/testsupport"
	"polytrain/internal/trainer"
)

type recordingExecutor struct {
	fail    error
	scripts []string
	args    [][]string
}

func (r *recordingExecutor) Run(_ context.Context, _, _ string, args []string, _ func(string)) error {
	// args[0:2] are the dispatcher options, args[2] the script.
	r.scripts = append(r.scripts, filepath.Base(args[2]))
	r.args = append(r.args, args[3:])
	return r.fail
}

func seedCombined(t *testing.T, cfg *config.Config, utterances int) {
	t.Helper()
	c := corpus.New()
	for i := 0; i < utterances; i++ {
		c.Add(corpus.Utterance{
			ID:         fmt.Sprintf("item__u%03d", i),
			Speaker:    "item__spk",
			Transcript: "hello",
			Audio:      fmt.Sprintf("sox %03d.wav |", i),
		})
	}
	if err := corpus.Write(c, cfg.CombinedCorpusDir()); err != nil {
		t.Fatalf("write combined corpus: %v", err)
	}
	if err := state.MarkComplete(cfg.CombinedCorpusDir()); err != nil {
		t.Fatalf("mark combined corpus: %v", err)
	}

	dict := lexicon.NewDictionary()
	dict.AddPronunciation("hello", lexicon.ParsePronunciation("h e l o"))
	if err := lexicon.WriteDict(dict, cfg.CombinedDictDir()); err != nil {
		t.Fatalf("write combined dict: %v", err)
	}
	if err := state.MarkComplete(cfg.CombinedDictDir()); err != nil {
		t.Fatalf("mark combined dict: %v", err)
	}
}

func newTrainer(t *testing.T, cfg *config.Config, exec dispatch.Executor, opts ...trainer.Option) *trainer.Trainer {
	t.Helper()
	client, err := dispatch.New(cfg.Dispatch.Command, cfg.Dispatch.MaxJobs, dispatch.WithExecutor(exec))
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return trainer.New(cfg, client, opts...)
}

func runChain(t *testing.T, tr *trainer.Trainer) {
	t.Helper()
	ctx := context.Background()
	for _, step := range []func(context.Context) error{
		tr.BuildLang, tr.TrainMono, tr.TrainTri, tr.TrainSat, tr.Segment, tr.TrainFinal,
	} {
		if err := step(ctx); err != nil {
			t.Fatalf("chain: %v", err)
		}
	}
}

func TestChainRunsScriptsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubsets(2, 3, 100))
	seedCombined(t, cfg, 5)
	exec := &recordingExecutor{}
	tr := newTrainer(t, cfg, exec)

	runChain(t, tr)

	want := []string{
		"prepare_lang.sh",
		"train_mono.sh",
		"align_si.sh", "train_deltas.sh",
		"align_si.sh", "train_sat.sh", "reestimate_prons.sh", "prepare_lang.sh",
		"align_fmllr.sh", "cleanup_segment.sh",
		"align_fmllr.sh", "train_chain.sh",
	}
	if len(exec.scripts) != len(want) {
		t.Fatalf("scripts %v, want %v", exec.scripts, want)
	}
	for i, script := range want {
		if exec.scripts[i] != script {
			t.Fatalf("step %d: got %q want %q", i, exec.scripts[i], script)
		}
	}

	for _, dir := range []string{
		cfg.LangDir(), cfg.LangPPDir(), cfg.CleanedCorpusDir(),
		filepath.Join(cfg.ExpDir(), "mono"),
		filepath.Join(cfg.ExpDir(), "tri"),
		filepath.Join(cfg.ExpDir(), "sat"),
		filepath.Join(cfg.ExpDir(), "final"),
	} {
		if !state.IsComplete(dir) {
			t.Fatalf("expected completion marker in %s", dir)
		}
	}
}

func TestSubsetsAreNestedAndDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubsets(2, 3, 100))
	seedCombined(t, cfg, 5)
	tr := newTrainer(t, cfg, &recordingExecutor{})

	runChain(t, tr)

	small, err := corpus.Read(cfg.SubsetDir(trainer.SubsetSmall))
	if err != nil {
		t.Fatalf("read small subset: %v", err)
	}
	medium, err := corpus.Read(cfg.SubsetDir(trainer.SubsetMedium))
	if err != nil {
		t.Fatalf("read medium subset: %v", err)
	}
	if small.Len() != 2 || medium.Len() != 3 {
		t.Fatalf("subset sizes small=%d medium=%d", small.Len(), medium.Len())
	}
	for _, id := range small.IDs() {
		if _, ok := medium.Get(id); !ok {
			t.Fatalf("small subset utterance %q missing from medium subset", id)
		}
	}
}

func TestOversizedSubsetAliasesFullCorpus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubsets(2, 3, 100))
	seedCombined(t, cfg, 5)
	exec := &recordingExecutor{}
	tr := newTrainer(t, cfg, exec)

	runChain(t, tr)

	if state.IsComplete(cfg.SubsetDir(trainer.SubsetLarge)) {
		t.Fatal("oversized subset must not be materialized")
	}
	// The sat alignment step (script index 4) must run on the merged corpus.
	if got := exec.args[4][0]; got != cfg.CombinedCorpusDir() {
		t.Fatalf("sat align data dir %q, want merged corpus %q", got, cfg.CombinedCorpusDir())
	}
}

func TestRerunSkipsCompletedSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubsets(2, 3, 100))
	seedCombined(t, cfg, 5)
	exec := &recordingExecutor{}

	var skipped []string
	observer := func(stage, step, status, _ string, _ time.Duration) {
		if status == state.StepStatusSkipped {
			skipped = append(skipped, stage+"/"+step)
		}
	}
	tr := newTrainer(t, cfg, exec, trainer.WithObserver(observer))

	runChain(t, tr)
	dispatched := len(exec.scripts)
	runChain(t, tr)

	if len(exec.scripts) != dispatched {
		t.Fatalf("rerun dispatched %d extra jobs", len(exec.scripts)-dispatched)
	}
	if len(skipped) != dispatched {
		t.Fatalf("expected %d skip events, got %d (%v)", dispatched, len(skipped), skipped)
	}
}

func TestStepFailureLeavesNoMarker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubsets(2, 3, 100))
	seedCombined(t, cfg, 5)
	exec := &recordingExecutor{fail: errors.New("exit status 1")}
	tr := newTrainer(t, cfg, exec)

	err := tr.BuildLang(context.Background())
	if err == nil || !errors.Is(err, services.ErrStep) {
		t.Fatalf("expected step failure, got %v", err)
	}
	if state.IsComplete(cfg.LangDir()) {
		t.Fatal("failed step must not be marked complete")
	}
}

func TestMissingUpstreamMarkerIsStateError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubsets(2, 3, 100))
	tr := newTrainer(t, cfg, &recordingExecutor{})

	err := tr.TrainMono(context.Background())
	if err == nil || !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}
