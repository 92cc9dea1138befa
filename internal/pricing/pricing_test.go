package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/pricing"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func writeTable(t *testing.T) *pricing.Table {
	t.Helper()
	content := `anthropic:
  claude-opus-4-6:
    input: 0.015
    output: 0.075
openai:
  gpt-5.2:
    input: 0.01
    output: 0.03
`
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := pricing.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return table
}

func TestLoadPricing(t *testing.T) {
	table := writeTable(t)
	cost := table.Cost("anthropic", "claude-opus-4-6", 1000, 500)
	want := 0.0525
	if abs(cost-want) > 0.001 {
		t.Errorf("got %f, want %f", cost, want)
	}
}

func TestCostUnknownModel(t *testing.T) {
	table := &pricing.Table{}
	cost := table.Cost("unknown", "unknown", 1000, 500)
	if cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestSpend(t *testing.T) {
	table := writeTable(t)
	spend := table.Spend([]gateway.UsageRecord{
		{Provider: "openai", Model: "gpt-5.2", InputTokens: 2000, OutputTokens: 1000},
		{Provider: "openai", Model: "gpt-5.2", InputTokens: 1000},
		{Provider: "openai", Model: "gpt-5-nano", InputTokens: 1000},
	})
	if abs(spend["gpt-5.2"]-0.06) > 1e-9 {
		t.Errorf("gpt-5.2: got %f, want 0.06", spend["gpt-5.2"])
	}
	if spend["gpt-5-nano"] != 0 {
		t.Errorf("unpriced model should cost 0, got %f", spend["gpt-5-nano"])
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := pricing.Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error")
	}
}
