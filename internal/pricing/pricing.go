package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashstep2/agent-eval-harness/internal/gateway"
)

// ModelPricing is USD per 1K tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type Table struct {
	Providers map[string]map[string]ModelPricing
}

func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var providers map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Providers: providers}, nil
}

// Cost prices one request. Unknown providers and models cost nothing.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	p, ok := t.Providers[provider][model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}

func (t *Table) RecordCost(rec gateway.UsageRecord) float64 {
	return t.Cost(rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens)
}

// Spend totals usage records per model id.
func (t *Table) Spend(records []gateway.UsageRecord) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range records {
		out[r.Model] += t.RecordCost(r)
	}
	return out
}
