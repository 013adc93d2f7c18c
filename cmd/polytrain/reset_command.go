package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"polytrain/internal/pipeline"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var from int

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear completion markers so stages rerun",
		Long: "Removes the completion markers of every stage at or after the given " +
			"ordinal. The next run redoes those stages from scratch. Stage ordinals: " +
			strings.Join(pipeline.StageNames(), ", ") + " (0-based).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cleared, err := pipeline.Reset(cfg, from)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cleared) == 0 {
				fmt.Fprintln(out, "No completion markers to clear")
				return nil
			}
			for _, dir := range cleared {
				fmt.Fprintf(out, "Cleared %s\n", dir)
			}
			fmt.Fprintf(out, "%d marker(s) cleared; rerun with 'polytrain run --from %d'\n", len(cleared), from)
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "First stage ordinal to reset")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
