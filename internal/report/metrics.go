package report

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

// RunMetrics summarizes stored runs, focused on the default head-to-head
// pair. AverageGap is the first pair model's weighted score minus the
// second's.
type RunMetrics struct {
	TotalRuns        int            `json:"total_runs"`
	HeadToHead       []string       `json:"head_to_head"`
	HeadToHeadRuns   int            `json:"head_to_head_runs"`
	Wins             map[string]int `json:"wins"`
	AverageGap       float64        `json:"average_gap"`
	AverageAgreement float64        `json:"average_agreement"`
	ByMode           map[string]int `json:"by_mode"`
	ByPreset         map[string]int `json:"by_preset"`
}

func ComputeMetrics(runs []*result.EvaluationRun) RunMetrics {
	pair := catalog.DefaultHeadToHead
	m := RunMetrics{
		TotalRuns:  len(runs),
		HeadToHead: pair,
		Wins:       map[string]int{},
		ByMode:     map[string]int{},
		ByPreset:   map[string]int{},
	}
	for _, id := range pair {
		m.Wins[id] = 0
	}

	var gap, agreement float64
	for _, run := range runs {
		m.ByMode[string(run.Mode)]++
		m.ByPreset[run.WeightPreset]++
		if !slices.Contains(run.Models, pair[0]) || !slices.Contains(run.Models, pair[1]) {
			continue
		}
		m.HeadToHeadRuns++
		if _, ok := m.Wins[run.Winner]; ok {
			m.Wins[run.Winner]++
		}
		gap += weighted(run, pair[0]) - weighted(run, pair[1])
		agreement += run.InterJudgeAgreement.AlignmentRate
	}
	if m.HeadToHeadRuns > 0 {
		m.AverageGap = gap / float64(m.HeadToHeadRuns)
		m.AverageAgreement = agreement / float64(m.HeadToHeadRuns)
	}
	return m
}

func weighted(run *result.EvaluationRun, model string) float64 {
	if mr, ok := run.ModelResults[model]; ok {
		return mr.WeightedScore
	}
	return 0
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func metricsLines(m RunMetrics) []string {
	a, b := catalog.DisplayName(m.HeadToHead[0]), catalog.DisplayName(m.HeadToHead[1])
	return []string{
		fmt.Sprintf("Total runs: %d", m.TotalRuns),
		fmt.Sprintf("Head-to-head runs (%s vs %s): %d", a, b, m.HeadToHeadRuns),
		fmt.Sprintf("%s wins: %d", a, m.Wins[m.HeadToHead[0]]),
		fmt.Sprintf("%s wins: %d", b, m.Wins[m.HeadToHead[1]]),
		fmt.Sprintf("Average weighted gap (%s - %s): %.2f", a, b, m.AverageGap),
		fmt.Sprintf("Average inter-judge agreement: %s", pct(m.AverageAgreement)),
	}
}

func writeMetricsText(m RunMetrics, w io.Writer) error {
	for _, line := range metricsLines(m) {
		fmt.Fprintln(w, line)
	}
	for _, k := range sortedKeys(m.ByMode) {
		fmt.Fprintf(w, "Mode %s: %d\n", k, m.ByMode[k])
	}
	for _, k := range sortedKeys(m.ByPreset) {
		fmt.Fprintf(w, "Preset %s: %d\n", k, m.ByPreset[k])
	}
	return nil
}

func writeMetricsMarkdown(m RunMetrics, w io.Writer) error {
	fmt.Fprintln(w, "## Run Metrics")
	fmt.Fprintln(w)
	for _, line := range metricsLines(m) {
		fmt.Fprintf(w, "- %s\n", line)
	}
	fmt.Fprintln(w, "\n## By Mode")
	for _, k := range sortedKeys(m.ByMode) {
		fmt.Fprintf(w, "- %s: %d\n", k, m.ByMode[k])
	}
	fmt.Fprintln(w, "\n## By Preset")
	for _, k := range sortedKeys(m.ByPreset) {
		fmt.Fprintf(w, "- %s: %d\n", k, m.ByPreset[k])
	}
	return nil
}
