package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/report"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

const (
	codex = "gpt-5.3-codex"
	opus  = "claude-opus-4-6"
)

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func mkRun(id string, mode result.Mode, preset, winner string, scores map[string]float64) *result.EvaluationRun {
	run := &result.EvaluationRun{
		ID:           id,
		TaskID:       "add-pagination",
		TaskTitle:    "Add Pagination to REST Endpoint",
		Mode:         mode,
		WeightPreset: preset,
		Judges:       result.Judges{Primary: catalog.DefaultPrimaryJudge, Secondary: catalog.DefaultSecondaryJudge},
		CompletedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ModelResults: map[string]*result.ModelResult{},
		Winner:       winner,
		WinnerScore:  scores[winner],
	}
	for _, model := range []string{codex, opus, "gpt-5-mini"} {
		s, ok := scores[model]
		if !ok {
			continue
		}
		run.Models = append(run.Models, model)
		run.ModelResults[model] = &result.ModelResult{
			ModelID:           model,
			WeightedScore:     s,
			RankingJudge:      result.RolePrimary,
			DimensionAverages: map[catalog.Dimension]float64{catalog.Correctness: s},
			Agreement:         result.Agreement{AlignmentRate: 0.5},
		}
	}
	run.InterJudgeAgreement.AlignmentRate = 0.5
	return run
}

func seed(t *testing.T) *result.FileStore {
	t.Helper()
	store := result.NewFileStore(t.TempDir())
	runs := []*result.EvaluationRun{
		mkRun("r1", result.ModeSingleShot, catalog.PresetDeveloperTrust, codex, map[string]float64{codex: 4, opus: 3}),
		mkRun("r2", result.ModeAgentLoop, catalog.PresetShipFast, opus, map[string]float64{codex: 2.5, opus: 4.5}),
		mkRun("r3", result.ModeSingleShot, catalog.PresetDeveloperTrust, "gpt-5-mini", map[string]float64{"gpt-5-mini": 3}),
	}
	for _, r := range runs {
		if err := store.Save(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestGenerateTable(t *testing.T) {
	store := seed(t)
	var buf bytes.Buffer
	if err := report.Generate(context.Background(), store, report.Options{Format: report.FormatTable}, &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"GPT-5.3 Codex", "Claude Opus 4.6", "GPT-5 Mini", "Total runs: 3", "Mode agent_loop: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestGenerateMarkdown(t *testing.T) {
	store := seed(t)
	var buf bytes.Buffer
	if err := report.Generate(context.Background(), store, report.Options{Format: report.FormatMarkdown}, &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "| Model") || !strings.Contains(output, "## By Preset") {
		t.Errorf("unexpected markdown:\n%s", output)
	}
}

func TestGenerateJSONWithCosts(t *testing.T) {
	store := seed(t)
	dir := t.TempDir()
	pricingPath := filepath.Join(dir, "pricing.yaml")
	if err := os.WriteFile(pricingPath, []byte("openai:\n  gpt-5.3-codex:\n    input: 1.0\n    output: 2.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	usage := gateway.NewUsageLog(filepath.Join(dir, "usage.jsonl"))
	for _, rec := range []gateway.UsageRecord{
		{RunID: "r1", Provider: "openai", Model: codex, InputTokens: 1000, OutputTokens: 1000},
		{RunID: "r2", Provider: "openai", Model: codex, InputTokens: 1000},
	} {
		if err := usage.Append(rec); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	opts := report.Options{Format: report.FormatJSON, PricingPath: pricingPath, UsageLog: usage.Path()}
	if err := report.Generate(context.Background(), store, opts, &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var s report.Summary
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	var found bool
	for _, m := range s.Models {
		if m.Model != codex {
			continue
		}
		found = true
		if m.Runs != 2 || m.Wins != 1 {
			t.Errorf("codex runs=%d wins=%d", m.Runs, m.Wins)
		}
		if absf(m.MeanCostUSD-2.0) > 1e-9 {
			t.Errorf("codex mean cost: got %f, want 2.0", m.MeanCostUSD)
		}
		if absf(m.MeanScore-3.25) > 1e-9 {
			t.Errorf("codex mean score: got %f", m.MeanScore)
		}
	}
	if !found {
		t.Fatal("codex missing from summary")
	}
}

func TestComputeMetrics(t *testing.T) {
	runs := []*result.EvaluationRun{
		mkRun("r1", result.ModeSingleShot, catalog.PresetDeveloperTrust, codex, map[string]float64{codex: 4, opus: 3}),
		mkRun("r2", result.ModeAgentLoop, catalog.PresetShipFast, opus, map[string]float64{codex: 2.5, opus: 4.5}),
		mkRun("r3", result.ModeSingleShot, catalog.PresetDeveloperTrust, "gpt-5-mini", map[string]float64{"gpt-5-mini": 3}),
	}
	m := report.ComputeMetrics(runs)
	if m.TotalRuns != 3 || m.HeadToHeadRuns != 2 {
		t.Errorf("counts: total=%d h2h=%d", m.TotalRuns, m.HeadToHeadRuns)
	}
	if m.Wins[codex] != 1 || m.Wins[opus] != 1 {
		t.Errorf("wins: %v", m.Wins)
	}
	// (4-3 + 2.5-4.5) / 2
	if absf(m.AverageGap-(-0.5)) > 1e-9 {
		t.Errorf("gap: got %f", m.AverageGap)
	}
	if m.ByMode["single_shot"] != 2 || m.ByPreset[catalog.PresetShipFast] != 1 {
		t.Errorf("by mode %v, by preset %v", m.ByMode, m.ByPreset)
	}

	empty := report.ComputeMetrics(nil)
	if empty.AverageGap != 0 || empty.AverageAgreement != 0 {
		t.Errorf("empty metrics should be zero: %+v", empty)
	}
}

func TestGenerateRun(t *testing.T) {
	store := seed(t)
	var buf bytes.Buffer
	if err := report.GenerateRun(context.Background(), store, "r2", report.FormatTable, &buf); err != nil {
		t.Fatalf("GenerateRun: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Run r2", "Correctness", "Weighted score", "Winner: Claude Opus 4.6 (4.50)"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if err := report.GenerateRun(context.Background(), store, "missing", report.FormatTable, &buf); err == nil {
		t.Error("expected error for unknown run")
	}
}
