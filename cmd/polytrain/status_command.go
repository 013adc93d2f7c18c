package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"polytrain/internal/pipeline"
	"polytrain/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stage completion and run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			stageRows := make([][]string, 0, len(pipeline.StageNames()))
			for _, status := range pipeline.Status(cfg) {
				stateText := colorizeState("pending", ansiGray, colorize)
				if status.Complete {
					stateText = colorizeState("done", ansiGreen, colorize)
				}
				stageRows = append(stageRows, []string{
					strconv.Itoa(status.Ordinal), status.Name, stateText,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Stage", "State"}, stageRows, 1))

			store, err := state.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), 5)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			runRows := make([][]string, 0, len(runs))
			for _, run := range runs {
				runRows = append(runRows, []string{
					shortID(run.ID),
					strconv.Itoa(run.StartStage),
					renderRunStatus(run.Status, colorize),
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					renderRunDuration(run),
					run.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "From", "Status", "Started", "Duration", "Error"}, runRows, 2))
			return nil
		},
	}
}

func renderRunStatus(status string, colorize bool) string {
	switch status {
	case state.RunStatusCompleted:
		return colorizeState(status, ansiGreen, colorize)
	case state.RunStatusFailed:
		return colorizeState(status, ansiRed, colorize)
	default:
		return status
	}
}

func renderRunDuration(run *state.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
