package runner

import (
	"fmt"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/scoring"
)

const MaxModels = 3

// Input is the run request accepted from the CLI and the HTTP API.
type Input struct {
	// ID names the run; a fresh id is generated when empty.
	ID            string          `json:"id,omitempty"`
	TaskID        string          `json:"taskId"`
	Models        []string        `json:"models"`
	Mode          result.Mode     `json:"mode"`
	WeightPreset  string          `json:"weightPreset"`
	CustomWeights catalog.Weights `json:"customWeights,omitempty"`
}

// Plan is a validated Input resolved against the catalog.
type Plan struct {
	Input
	Task       *catalog.Task
	Candidates []catalog.Model
	Weights    catalog.Weights
}

// TotalSteps is the number of generation steps across all models.
func (p *Plan) TotalSteps() int {
	per := 1
	if p.Mode == result.ModeAgentLoop {
		per = len(result.AgentLoopSteps)
	}
	return len(p.Candidates) * per
}

// Resolve validates in and resolves its task, models and weights. Empty
// mode and preset default to single_shot and developer_trust.
func (in Input) Resolve(cat *catalog.Catalog) (*Plan, error) {
	if in.Mode == "" {
		in.Mode = result.ModeSingleShot
	}
	if in.WeightPreset == "" {
		in.WeightPreset = catalog.PresetDeveloperTrust
	}

	task, err := cat.Task(in.TaskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task: %s", in.TaskID)
	}
	if len(in.Models) == 0 || len(in.Models) > MaxModels {
		return nil, fmt.Errorf("select 1-%d models to compare", MaxModels)
	}
	seen := make(map[string]bool, len(in.Models))
	models := make([]catalog.Model, 0, len(in.Models))
	for _, id := range in.Models {
		m, err := catalog.LookupModel(id)
		if err != nil {
			return nil, fmt.Errorf("invalid model: %s", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("model %s listed twice", id)
		}
		seen[id] = true
		models = append(models, m)
	}
	switch in.Mode {
	case result.ModeSingleShot, result.ModeAgentLoop:
	default:
		return nil, fmt.Errorf("invalid mode: %s", in.Mode)
	}
	weights, err := scoring.ResolveWeights(in.WeightPreset, in.CustomWeights)
	if err != nil {
		return nil, err
	}
	return &Plan{Input: in, Task: task, Candidates: models, Weights: weights}, nil
}
