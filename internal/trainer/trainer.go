// Package trainer runs the sequential training chain over the merged corpus:
// monophone, triphone, and speaker-adaptive models in strict order, each
// consuming the previous model's alignments, followed by corpus cleanup and
// the final sequence model. Early steps run on deterministic nested subsets;
// every step is guarded by a completion marker.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"polytrain/internal/config"
	"polytrain/internal/corpus"
	"polytrain/internal/dispatch"
	"polytrain/internal/logging"
	"polytrain/internal/services"
	"polytrain/internal/state"
)

// Toolkit scripts invoked by the chain, relative to the toolkit root.
const (
	scriptPrepareLang = "local/prepare_lang.sh"
	scriptCleanup     = "local/cleanup_segment.sh"
	scriptTrainMono   = "steps/train_mono.sh"
	scriptAlignSI     = "steps/align_si.sh"
	scriptTrainDeltas = "steps/train_deltas.sh"
	scriptTrainSat    = "steps/train_sat.sh"
	scriptAlignFMLLR  = "steps/align_fmllr.sh"
	scriptReestimate  = "steps/reestimate_prons.sh"
	scriptTrainChain  = "steps/train_chain.sh"
)

// Subset labels in nesting order.
const (
	SubsetSmall  = "small"
	SubsetMedium = "medium"
	SubsetLarge  = "large"
)

// Observer receives the outcome of every chain step, including skips.
type Observer func(stage, step, status, detail string, duration time.Duration)

// Option configures the trainer.
type Option func(*Trainer)

// WithObserver attaches a step outcome observer.
func WithObserver(observe Observer) Option {
	return func(t *Trainer) {
		if observe != nil {
			t.observe = observe
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Trainer drives the training chain through the job dispatcher.
type Trainer struct {
	cfg     *config.Config
	client  *dispatch.Client
	logger  *slog.Logger
	observe Observer
}

// New constructs a Trainer.
func New(cfg *config.Config, client *dispatch.Client, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:     cfg,
		client:  client,
		logger:  logging.NewNop(),
		observe: func(string, string, string, string, time.Duration) {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BuildLang builds the linguistic model from the merged dictionary.
func (t *Trainer) BuildLang(ctx context.Context) error {
	if err := t.require("lang", t.cfg.CombinedDictDir(), "merged dictionary"); err != nil {
		return err
	}
	return t.runStep(ctx, "lang", "build", t.cfg.LangDir(), dispatch.Job{
		Name:   "lang/build",
		Script: t.script(scriptPrepareLang),
		Args:   []string{t.cfg.CombinedDictDir(), t.cfg.LangDir()},
	})
}

// TrainMono trains the monophone model on the small subset.
func (t *Trainer) TrainMono(ctx context.Context) error {
	if err := t.require("mono", t.cfg.LangDir(), "linguistic model"); err != nil {
		return err
	}
	data, err := t.subsetData(SubsetSmall, t.cfg.Trainer.SubsetSmall)
	if err != nil {
		return err
	}
	return t.runStep(ctx, "mono", "train", t.expDir("mono"), dispatch.Job{
		Name:   "mono/train",
		Script: t.script(scriptTrainMono),
		Args: []string{
			"--num-gauss", strconv.Itoa(t.cfg.Trainer.MonoGauss),
			data, t.cfg.LangDir(), t.expDir("mono"),
		},
	})
}

// TrainTri aligns the monophone model on the medium subset and trains the
// triphone model over those alignments.
func (t *Trainer) TrainTri(ctx context.Context) error {
	if err := t.require("tri", t.expDir("mono"), "monophone model"); err != nil {
		return err
	}
	data, err := t.subsetData(SubsetMedium, t.cfg.Trainer.SubsetMedium)
	if err != nil {
		return err
	}
	if err := t.runStep(ctx, "tri", "align", t.expDir("mono_ali"), dispatch.Job{
		Name:   "tri/align",
		Script: t.script(scriptAlignSI),
		Args:   []string{data, t.cfg.LangDir(), t.expDir("mono"), t.expDir("mono_ali")},
	}); err != nil {
		return err
	}
	return t.runStep(ctx, "tri", "train", t.expDir("tri"), dispatch.Job{
		Name:   "tri/train",
		Script: t.script(scriptTrainDeltas),
		Args: []string{
			"--num-leaves", strconv.Itoa(t.cfg.Trainer.TriLeaves),
			"--num-gauss", strconv.Itoa(t.cfg.Trainer.TriGauss),
			data, t.cfg.LangDir(), t.expDir("mono_ali"), t.expDir("tri"),
		},
	})
}

// TrainSat aligns the triphone model on the large subset, trains the
// speaker-adaptive model, re-estimates pronunciation probabilities from its
// alignments, and rebuilds the linguistic model consumed by later stages.
func (t *Trainer) TrainSat(ctx context.Context) error {
	if err := t.require("sat", t.expDir("tri"), "triphone model"); err != nil {
		return err
	}
	data, err := t.subsetData(SubsetLarge, t.cfg.Trainer.SubsetLarge)
	if err != nil {
		return err
	}
	if err := t.runStep(ctx, "sat", "align", t.expDir("tri_ali"), dispatch.Job{
		Name:   "sat/align",
		Script: t.script(scriptAlignSI),
		Args:   []string{data, t.cfg.LangDir(), t.expDir("tri"), t.expDir("tri_ali")},
	}); err != nil {
		return err
	}
	if err := t.runStep(ctx, "sat", "train", t.expDir("sat"), dispatch.Job{
		Name:   "sat/train",
		Script: t.script(scriptTrainSat),
		Args: []string{
			"--num-leaves", strconv.Itoa(t.cfg.Trainer.SatLeaves),
			"--num-gauss", strconv.Itoa(t.cfg.Trainer.SatGauss),
			data, t.cfg.LangDir(), t.expDir("tri_ali"), t.expDir("sat"),
		},
	}); err != nil {
		return err
	}
	if err := t.runStep(ctx, "sat", "reestimate_prons", t.expDir("sat_prons"), dispatch.Job{
		Name:   "sat/reestimate_prons",
		Script: t.script(scriptReestimate),
		Args:   []string{data, t.cfg.LangDir(), t.expDir("sat"), t.expDir("sat_prons")},
	}); err != nil {
		return err
	}
	return t.runStep(ctx, "sat", "rebuild_lang", t.cfg.LangPPDir(), dispatch.Job{
		Name:   "sat/rebuild_lang",
		Script: t.script(scriptPrepareLang),
		Args: []string{
			"--pron-probs", t.expDir("sat_prons"),
			t.cfg.CombinedDictDir(), t.cfg.LangPPDir(),
		},
	})
}

// Segment aligns the speaker-adaptive model against the full corpus and
// rewrites it as a cleaned, re-segmented corpus for the final stage.
func (t *Trainer) Segment(ctx context.Context) error {
	if err := t.require("segment", t.expDir("sat"), "speaker-adaptive model"); err != nil {
		return err
	}
	if err := t.require("segment", t.cfg.LangPPDir(), "rebuilt linguistic model"); err != nil {
		return err
	}
	full := t.cfg.CombinedCorpusDir()
	if err := t.runStep(ctx, "segment", "align", t.expDir("sat_ali"), dispatch.Job{
		Name:   "segment/align",
		Script: t.script(scriptAlignFMLLR),
		Args:   []string{full, t.cfg.LangPPDir(), t.expDir("sat"), t.expDir("sat_ali")},
	}); err != nil {
		return err
	}
	return t.runStep(ctx, "segment", "cleanup", t.cfg.CleanedCorpusDir(), dispatch.Job{
		Name:   "segment/cleanup",
		Script: t.script(scriptCleanup),
		Args:   []string{full, t.cfg.LangPPDir(), t.expDir("sat_ali"), t.cfg.CleanedCorpusDir()},
	})
}

// TrainFinal trains the final sequence model on the cleaned corpus.
func (t *Trainer) TrainFinal(ctx context.Context) error {
	if err := t.require("final", t.cfg.CleanedCorpusDir(), "cleaned corpus"); err != nil {
		return err
	}
	if err := t.runStep(ctx, "final", "align", t.expDir("final_ali"), dispatch.Job{
		Name:   "final/align",
		Script: t.script(scriptAlignFMLLR),
		Args:   []string{t.cfg.CleanedCorpusDir(), t.cfg.LangPPDir(), t.expDir("sat"), t.expDir("final_ali")},
	}); err != nil {
		return err
	}
	return t.runStep(ctx, "final", "train", t.expDir("final"), dispatch.Job{
		Name:   "final/train",
		Script: t.script(scriptTrainChain),
		Args:   []string{t.cfg.CleanedCorpusDir(), t.cfg.LangPPDir(), t.expDir("final_ali"), t.expDir("final")},
	})
}

// require verifies that an upstream artifact carries its completion marker
// before a stage starts consuming it.
func (t *Trainer) require(stage, dir, what string) error {
	if state.IsComplete(dir) {
		return nil
	}
	return services.Wrap(services.ErrState, stage, "check upstream",
		fmt.Sprintf("%s %s is not complete", what, dir), nil)
}

// subsetData materializes a named subset of the merged corpus and returns its
// data directory. When the merged corpus is no larger than the requested size
// the subset degrades into the merged directory itself and nothing is copied.
func (t *Trainer) subsetData(label string, size int) (string, error) {
	combined := t.cfg.CombinedCorpusDir()
	if !state.IsComplete(combined) {
		return "", services.Wrap(services.ErrState, "trainer", "subset "+label,
			fmt.Sprintf("merged corpus %s is not complete", combined), nil)
	}
	dir := t.cfg.SubsetDir(label)
	if state.IsComplete(dir) {
		return dir, nil
	}

	full, err := corpus.Read(combined)
	if err != nil {
		return "", err
	}
	sub, aliased := full.Subset(size)
	if aliased {
		t.logger.Debug("subset degrades to full corpus",
			logging.String("subset", label), logging.Int("size", size), logging.Int("corpus", full.Len()))
		return combined, nil
	}
	if err := corpus.Write(sub, dir); err != nil {
		return "", err
	}
	if err := state.MarkComplete(dir); err != nil {
		return "", err
	}
	t.logger.Info("subset materialized",
		logging.String("subset", label), logging.Int("utterances", sub.Len()))
	return dir, nil
}

// runStep runs one marker-guarded chain step: skip when outDir is already
// complete, otherwise submit the job and set the marker only on success.
func (t *Trainer) runStep(ctx context.Context, stage, step, outDir string, job dispatch.Job) error {
	logger := t.logger.With(logging.Args(
		logging.String(logging.FieldComponent, "trainer"),
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldStep, step),
	)...)

	if state.IsComplete(outDir) {
		logger.Debug("step already complete", logging.String("dir", outDir))
		t.observe(stage, step, state.StepStatusSkipped, outDir, 0)
		return nil
	}

	logger.Info("running step", logging.String("script", filepath.Base(job.Script)))
	start := time.Now()
	if err := t.client.Submit(ctx, job); err != nil {
		t.observe(stage, step, state.StepStatusFailed, err.Error(), time.Since(start))
		return err
	}
	if err := state.MarkComplete(outDir); err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.Info("step complete", logging.Duration("elapsed", elapsed))
	t.observe(stage, step, state.StepStatusCompleted, outDir, elapsed)
	return nil
}

func (t *Trainer) script(rel string) string {
	return filepath.Join(t.cfg.Paths.ToolkitDir, rel)
}

func (t *Trainer) expDir(name string) string {
	return filepath.Join(t.cfg.ExpDir(), name)
}
