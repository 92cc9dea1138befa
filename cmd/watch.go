package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/client"
	"github.com/ashstep2/agent-eval-harness/internal/report"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

var (
	flagServer       string
	flagWatchTask    string
	flagWatchModels  []string
	flagWatchMode    string
	flagWatchPreset  string
	flagWatchWeights []string
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start an evaluation on a running server and follow its events",
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := parseWeights(flagWatchWeights)
			if err != nil {
				return err
			}
			in := runner.Input{
				TaskID:       flagWatchTask,
				Models:       flagWatchModels,
				Mode:         result.Mode(flagWatchMode),
				WeightPreset: flagWatchPreset,
			}
			if len(custom) > 0 {
				in.WeightPreset = catalog.PresetCustom
				in.CustomWeights = custom
			}

			out := cmd.OutOrStdout()
			var final *result.EvaluationRun
			id, err := client.New(flagServer).Run(cmd.Context(), in, func(ev runner.Event) {
				if flagJSON {
					_ = writeEnvelope(out, ev)
					return
				}
				printEvent(out, in.TaskID, ev)
				if c, ok := ev.(runner.CompleteEvent); ok {
					final = c.EvaluationRun
				}
			})
			if err != nil {
				return err
			}
			if final == nil {
				if flagJSON {
					return nil
				}
				return fmt.Errorf("evaluation %s ended without a result", id)
			}
			fmt.Fprintln(out)
			return report.WriteRun(final, out)
		},
	}
	cmd.Flags().StringVar(&flagServer, "server", "http://localhost:8080", "agenteval server URL")
	cmd.Flags().StringVar(&flagWatchTask, "task", "", "task id")
	cmd.Flags().StringSliceVar(&flagWatchModels, "models", catalog.DefaultHeadToHead, "models to compare (1-3)")
	cmd.Flags().StringVar(&flagWatchMode, "mode", string(result.ModeSingleShot), "single_shot or agent_loop")
	cmd.Flags().StringVar(&flagWatchPreset, "preset", catalog.PresetDeveloperTrust, "weight preset")
	cmd.Flags().StringArrayVar(&flagWatchWeights, "weight", nil, "custom weight dim=value (repeatable, implies --preset custom)")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print raw event envelopes as NDJSON")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}
