// Package pipeline executes the ordered stage chain: per-item preparation,
// corpus and dictionary merge, linguistic-model build, and the sequential
// training chain. Stages run strictly in ordinal order under a single-run
// lock; a resume threshold skips earlier stages and completion markers guard
// the work inside each stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"polytrain/internal/config"
	"polytrain/internal/logging"
	"polytrain/internal/preflight"
	"polytrain/internal/services"
	"polytrain/internal/state"
)

// Stage is one ordered pipeline stage. Ordinals are dense and start at zero.
type Stage struct {
	Ordinal int
	Name    string
	Run     func(ctx context.Context) error
}

// StageNames lists the stages in ordinal order.
func StageNames() []string {
	return []string{"prepare", "combine", "lang", "mono", "tri", "sat", "segment", "final"}
}

// Runner drives the stage chain for one invocation at a time.
type Runner struct {
	cfg    *config.Config
	store  *state.Store
	logger *slog.Logger
	stages []Stage

	runID string
}

// Run executes every stage with ordinal >= from in order. Stages below the
// threshold are assumed complete from a prior run and are not re-verified
// beyond their markers. The first error aborts the run.
func (r *Runner) Run(ctx context.Context, from int) error {
	if from < 0 || from >= len(r.stages) {
		return services.Wrap(services.ErrConfiguration, "pipeline", "run",
			fmt.Sprintf("resume threshold %d outside stage range 0..%d", from, len(r.stages)-1), nil)
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock := flock.New(r.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrState, "pipeline", "lock", "acquire run lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrState, "pipeline", "lock",
			fmt.Sprintf("another run holds %s", r.cfg.LockPath()), nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if err := preflight.FirstFailure(preflight.RunAll(r.cfg)); err != nil {
		return err
	}

	run, err := r.store.BeginRun(ctx, from)
	if err != nil {
		return err
	}
	r.runID = run.ID
	ctx = services.WithRunID(ctx, run.ID)

	runErr := r.runStages(ctx, from)
	if err := r.store.FinishRun(context.WithoutCancel(ctx), run.ID, runErr); err != nil {
		r.logger.Error("record run outcome", logging.Error(err))
	}
	return runErr
}

func (r *Runner) runStages(ctx context.Context, from int) error {
	logger := logging.WithContext(ctx, r.logger)
	for _, stage := range r.stages {
		stageLogger := logger.With(logging.Args(logging.String(logging.FieldStage, stage.Name))...)
		if stage.Ordinal < from {
			stageLogger.Info("stage below resume threshold, skipping")
			r.recordStep(stage.Name, "stage", state.StepStatusSkipped, "below resume threshold", 0)
			continue
		}

		stageCtx := logging.WithStage(ctx, stage.Name)
		cancel := context.CancelFunc(func() {})
		if r.cfg.Workflow.StageTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(stageCtx, time.Duration(r.cfg.Workflow.StageTimeout)*time.Minute)
		}

		stageLogger.Info("stage starting")
		start := time.Now()
		err := stage.Run(stageCtx)
		cancel()
		elapsed := time.Since(start)
		if err != nil {
			stageLogger.Error("stage failed", logging.Error(err), logging.Duration("elapsed", elapsed))
			r.recordStep(stage.Name, "stage", state.StepStatusFailed, err.Error(), elapsed)
			return err
		}
		stageLogger.Info("stage complete", logging.Duration("elapsed", elapsed))
		r.recordStep(stage.Name, "stage", state.StepStatusCompleted, "", elapsed)
	}
	return nil
}

// recordStep appends a step event to the current run's history. Recording is
// best-effort; the markers, not the database, gate resume decisions.
func (r *Runner) recordStep(stage, step, status, detail string, duration time.Duration) {
	if r.runID == "" {
		return
	}
	event := state.StepEvent{
		RunID:    r.runID,
		Stage:    stage,
		Step:     step,
		Status:   status,
		Detail:   detail,
		Duration: duration,
	}
	if err := r.store.RecordStep(context.Background(), event); err != nil {
		r.logger.Warn("record step event", logging.Error(err),
			logging.String(logging.FieldStage, stage), logging.String(logging.FieldStep, step))
	}
}
