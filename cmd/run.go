package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/report"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

const allTasks = "all"

var (
	flagTask     string
	flagModels   []string
	flagMode     string
	flagPreset   string
	flagWeights  []string
	flagParallel int
	flagJSON     bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an evaluation and stream its events",
		RunE:  runEvaluation,
	}
	cmd.Flags().StringVar(&flagTask, "task", "", `task id, or "all" for every task`)
	cmd.Flags().StringSliceVar(&flagModels, "models", catalog.DefaultHeadToHead, "models to compare (1-3)")
	cmd.Flags().StringVar(&flagMode, "mode", string(result.ModeSingleShot), "single_shot or agent_loop")
	cmd.Flags().StringVar(&flagPreset, "preset", catalog.PresetDeveloperTrust, "weight preset")
	cmd.Flags().StringArrayVar(&flagWeights, "weight", nil, "custom weight dim=value (repeatable, implies --preset custom)")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent evaluations with --task all")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print raw event envelopes as NDJSON")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	r, err := e.runner()
	if err != nil {
		return err
	}
	custom, err := parseWeights(flagWeights)
	if err != nil {
		return err
	}
	preset := flagPreset
	if len(custom) > 0 {
		preset = catalog.PresetCustom
	}
	inputs, err := buildInputs(r.Catalog, flagTask, flagModels, result.Mode(flagMode), preset, custom)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	results := r.RunBatch(ctx, inputs, flagParallel, func(i int, ev runner.Event) {
		mu.Lock()
		defer mu.Unlock()
		if flagJSON {
			_ = writeEnvelope(out, ev)
			return
		}
		printEvent(out, inputs[i].TaskID, ev)
	})
	if flagJSON {
		return batchError(results)
	}

	fmt.Fprintln(out, "\n--- Results ---")
	for _, res := range results {
		if res.Run == nil {
			continue
		}
		if err := report.WriteRun(res.Run, out); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return batchError(results)
}

// buildInputs expands the task flag into one input per task. The custom
// preset without explicit weights uses each task's default vector.
func buildInputs(cat *catalog.Catalog, task string, models []string, mode result.Mode, preset string, custom catalog.Weights) ([]runner.Input, error) {
	var tasks []catalog.Task
	if task == allTasks {
		tasks = cat.Tasks()
	} else {
		t, err := cat.Task(task)
		if err != nil {
			return nil, err
		}
		tasks = []catalog.Task{*t}
	}

	inputs := make([]runner.Input, 0, len(tasks))
	for _, t := range tasks {
		in := runner.Input{
			TaskID:       t.ID,
			Models:       models,
			Mode:         mode,
			WeightPreset: preset,
		}
		if preset == catalog.PresetCustom {
			in.CustomWeights = custom
			if len(custom) == 0 {
				in.CustomWeights = t.DefaultWeights.Clone()
			}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func parseWeights(flags []string) (catalog.Weights, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	w := make(catalog.Weights, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --weight %q: want dim=value", f)
		}
		d := catalog.Dimension(strings.TrimSpace(name))
		if !d.Valid() {
			return nil, fmt.Errorf("invalid --weight %q: unknown dimension %q", f, d)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --weight %q: %w", f, err)
		}
		w[d] = v
	}
	return w, nil
}

func writeEnvelope(w io.Writer, ev runner.Event) error {
	data, err := json.Marshal(runner.Wrap(ev))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func printEvent(w io.Writer, task string, ev runner.Event) {
	switch ev := ev.(type) {
	case runner.ProgressEvent:
		fmt.Fprintf(w, "[%s %d/%d] %s: %s\n", task, ev.CurrentStepIndex, ev.TotalSteps, ev.CurrentModel, ev.Phase)
	case runner.ResponseEvent:
		label := ev.ModelID
		if ev.StepID != "" {
			label += " " + string(ev.StepID)
		}
		fmt.Fprintf(w, "  %s responded (%d chars)\n", label, len(ev.Text))
	case runner.StepEvent:
		fmt.Fprintf(w, "  %s %s scored %.2f / %.2f\n", ev.ModelID, ev.Title,
			overall(ev.PrimaryScores), overall(ev.SecondaryScores))
	case runner.CompleteEvent:
		fmt.Fprintf(w, "[%s] complete: winner %s (%.2f)\n", task, catalog.DisplayName(ev.Winner), ev.WinnerScore)
	case runner.ErrorEvent:
		fmt.Fprintf(w, "[%s] ERROR: %s\n", task, ev.Message)
	}
}

func overall(s *result.JudgeScore) float64 {
	if s == nil {
		return 0
	}
	return s.OverallScore
}

func batchError(results []runner.BatchResult) error {
	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.Err.Error())
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d evaluations failed: %s", len(failed), len(results), strings.Join(failed, "; "))
}
