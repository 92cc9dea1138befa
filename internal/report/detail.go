package report

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

// GenerateRun writes one run's dimension-by-model detail.
func GenerateRun(ctx context.Context, store result.Store, id, format string, w io.Writer) error {
	run, err := store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("loading run %s: %w", id, err)
	}
	if format == FormatJSON {
		return writeJSON(run, w)
	}
	return WriteRun(run, w)
}

// WriteRun renders the run header, the ranking-judge score per dimension
// for every model, and both judges' overall scores.
func WriteRun(run *result.EvaluationRun, w io.Writer) error {
	fmt.Fprintf(w, "Run %s: %s (%s, %s)\n", run.ID, run.TaskTitle, run.Mode, run.WeightPreset)
	fmt.Fprintf(w, "Judges: %s / %s\n\n", run.Judges.Primary, run.Judges.Secondary)

	models := make([]string, 0, len(run.Models))
	for _, id := range run.Models {
		if _, ok := run.ModelResults[id]; ok {
			models = append(models, id)
		}
	}

	headers := []string{"Dimension"}
	for _, id := range models {
		headers = append(headers, catalog.DisplayName(id))
	}
	table := newMarkdownTable(w, headers)
	for _, d := range catalog.Dimensions {
		row := []string{d.DisplayName}
		var scored bool
		for _, id := range models {
			v, ok := run.ModelResults[id].DimensionAverages[d.Name]
			if !ok {
				row = append(row, "-")
				continue
			}
			scored = true
			row = append(row, fmt.Sprintf("%.0f", v))
		}
		if scored {
			_ = table.Append(row)
		}
	}
	for _, label := range []string{"Primary overall", "Secondary overall", "Ranking judge", "Agreement", "Weighted score"} {
		row := []string{label}
		for _, id := range models {
			row = append(row, summaryCell(run.ModelResults[id], label))
		}
		_ = table.Append(row)
	}
	if err := table.Render(); err != nil {
		return err
	}

	if run.Winner != "" {
		fmt.Fprintf(w, "\nWinner: %s (%.2f)\n", catalog.DisplayName(run.Winner), run.WinnerScore)
	}
	fmt.Fprintf(w, "Inter-judge agreement: %s\n", pct(run.InterJudgeAgreement.AlignmentRate))
	for _, id := range models {
		if s := run.ModelResults[id].ReasoningSummary; s != "" {
			fmt.Fprintf(w, "%s: %s\n", catalog.DisplayName(id), s)
		}
	}
	return nil
}

func summaryCell(mr *result.ModelResult, label string) string {
	switch label {
	case "Primary overall":
		if mr.Primary != nil {
			return fmt.Sprintf("%.2f", mr.Primary.OverallScore)
		}
	case "Secondary overall":
		if mr.Secondary != nil {
			return fmt.Sprintf("%.2f", mr.Secondary.OverallScore)
		}
	case "Ranking judge":
		return string(mr.RankingJudge)
	case "Agreement":
		return pct(mr.Agreement.AlignmentRate)
	case "Weighted score":
		return fmt.Sprintf("%.2f", mr.WeightedScore)
	}
	return "-"
}

func newMarkdownTable(w io.Writer, headers []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
