package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"polytrain/internal/dispatch"
	"polytrain/internal/logging"
	"polytrain/internal/pipeline"
	"polytrain/internal/state"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var from int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the training pipeline",
		Long: "Runs every pipeline stage in order. Stages below the resume threshold " +
			"are skipped, and completed work inside a stage is skipped via its " +
			"completion markers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("from") {
				from = cfg.Workflow.StartStage
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logPath := filepath.Join(cfg.Paths.LogDir,
				fmt.Sprintf("polytrain-%s.log", time.Now().UTC().Format("20060102T150405Z")))
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout", logPath},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := state.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := dispatch.New(cfg.Dispatch.Command, cfg.Dispatch.MaxJobs, dispatch.WithLogger(logger))
			if err != nil {
				return err
			}

			runner := pipeline.Build(cfg, client, store, logger)
			if err := runner.Run(signalCtx, from); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pipeline complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "Resume threshold: stage ordinal to start from")
	return cmd
}
