package cmd

import (
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/report"
	"github.com/ashstep2/agent-eval-harness/internal/scoring"
)

var (
	flagRescorePreset  string
	flagRescoreWeights []string
	flagSave           bool
)

func newRescoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescore <run-id>",
		Short: "Re-aggregate a stored run under different weights",
		Long:  "Reuse the stored judge scores of a run, recompute weighted scores and the winner with another preset or custom weights, and optionally save the result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			custom, err := parseWeights(flagRescoreWeights)
			if err != nil {
				return err
			}
			preset := flagRescorePreset
			if len(custom) > 0 {
				preset = catalog.PresetCustom
			}

			run, err := e.store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			rescored, err := scoring.Rescore(run, preset, custom)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rescored.Winner != run.Winner {
				fmt.Fprintf(out, "Winner changed: %s -> %s\n\n", catalog.DisplayName(run.Winner), catalog.DisplayName(rescored.Winner))
			}
			if err := report.WriteRun(rescored, out); err != nil {
				return err
			}
			if !flagSave {
				return nil
			}
			if err := e.store.Save(ctx, rescored); err != nil {
				return fmt.Errorf("saving rescored run: %w", err)
			}
			clog.InfoContextf(ctx, "saved run %s with preset %s", rescored.ID, preset)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRescorePreset, "preset", catalog.PresetDeveloperTrust, "weight preset")
	cmd.Flags().StringArrayVar(&flagRescoreWeights, "weight", nil, "custom weight dim=value (repeatable, implies --preset custom)")
	cmd.Flags().BoolVar(&flagSave, "save", false, "overwrite the stored run with the new scores")
	return cmd
}
