package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/chainguard-dev/clog"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/pricing"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

type ModelSummary struct {
	Model         string  `json:"model"`
	DisplayName   string  `json:"display_name"`
	Runs          int     `json:"runs"`
	Wins          int     `json:"wins"`
	WinRate       float64 `json:"win_rate"`
	MeanScore     float64 `json:"mean_score"`
	MeanAlignment float64 `json:"mean_alignment"`
	MeanCostUSD   float64 `json:"mean_cost_usd"`
}

type Summary struct {
	Models  []ModelSummary `json:"models"`
	Metrics RunMetrics     `json:"metrics"`
}

// Costs holds spend in USD per run id, then per model id.
type Costs map[string]map[string]float64

type Options struct {
	Format      string
	PricingPath string
	UsageLog    string
}

// Generate summarizes every stored run and writes the report to w.
func Generate(ctx context.Context, store result.Store, opts Options, w io.Writer) error {
	runs, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading runs: %w", err)
	}
	var costs Costs
	if opts.PricingPath != "" && opts.UsageLog != "" {
		costs = loadCosts(ctx, opts.PricingPath, opts.UsageLog)
	}
	s := Summarize(runs, costs)

	switch opts.Format {
	case FormatMarkdown:
		return writeMarkdown(s, w)
	case FormatJSON:
		return writeJSON(s, w)
	default:
		return writeTable(s, w)
	}
}

// loadCosts prices the usage log. Cost is enrichment, so failures only warn.
func loadCosts(ctx context.Context, pricingPath, usageLog string) Costs {
	table, err := pricing.Load(pricingPath)
	if err != nil {
		clog.FromContext(ctx).Warnf("skipping costs: %v", err)
		return nil
	}
	records, err := gateway.ParseUsageLogs(usageLog)
	if err != nil {
		clog.FromContext(ctx).Warnf("skipping costs: %v", err)
		return nil
	}
	costs := Costs{}
	for runID, recs := range gateway.UsageByRun(records) {
		costs[runID] = table.Spend(recs)
	}
	return costs
}

// Summarize aggregates runs per evaluated model, sorted by model id.
func Summarize(runs []*result.EvaluationRun, costs Costs) Summary {
	type accum struct {
		count     int
		wins      int
		score     float64
		alignment float64
		cost      float64
	}
	byModel := map[string]*accum{}

	for _, run := range runs {
		for id, mr := range run.ModelResults {
			a, ok := byModel[id]
			if !ok {
				a = &accum{}
				byModel[id] = a
			}
			a.count++
			a.score += mr.WeightedScore
			a.alignment += mr.Agreement.AlignmentRate
			a.cost += costs[run.ID][id]
			if run.Winner == id {
				a.wins++
			}
		}
	}

	summaries := make([]ModelSummary, 0, len(byModel))
	for id, a := range byModel {
		n := float64(a.count)
		summaries = append(summaries, ModelSummary{
			Model:         id,
			DisplayName:   catalog.DisplayName(id),
			Runs:          a.count,
			Wins:          a.wins,
			WinRate:       float64(a.wins) / n,
			MeanScore:     a.score / n,
			MeanAlignment: a.alignment / n,
			MeanCostUSD:   a.cost / n,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Model < summaries[j].Model
	})
	return Summary{Models: summaries, Metrics: ComputeMetrics(runs)}
}

func writeTable(s Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tRUNS\tWINS\tWIN RATE\tMEAN SCORE\tMEAN AGREEMENT\tMEAN COST")
	fmt.Fprintln(tw, strings.Repeat("-", 90))
	for _, m := range s.Models {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f%%\t%.2f\t%.0f%%\t$%.4f\n",
			m.DisplayName, m.Runs, m.Wins, m.WinRate*100, m.MeanScore, m.MeanAlignment*100, m.MeanCostUSD)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return writeMetricsText(s.Metrics, w)
}

func writeMarkdown(s Summary, w io.Writer) error {
	fmt.Fprintln(w, "## Models")
	fmt.Fprintln(w)
	table := newMarkdownTable(w, []string{"Model", "Runs", "Wins", "Win Rate", "Mean Score", "Mean Agreement", "Mean Cost"})
	for _, m := range s.Models {
		_ = table.Append([]string{
			m.DisplayName,
			fmt.Sprint(m.Runs),
			fmt.Sprint(m.Wins),
			pct(m.WinRate),
			fmt.Sprintf("%.2f", m.MeanScore),
			pct(m.MeanAlignment),
			fmt.Sprintf("$%.4f", m.MeanCostUSD),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return writeMetricsMarkdown(s.Metrics, w)
}

func writeJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
