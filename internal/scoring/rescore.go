package scoring

import (
	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

// Rescore returns a copy of run re-aggregated under a different weight
// vector. Judge scores are reused as stored; only weighted scores and the
// winner change.
func Rescore(run *result.EvaluationRun, preset string, custom catalog.Weights) (*result.EvaluationRun, error) {
	weights, err := ResolveWeights(preset, custom)
	if err != nil {
		return nil, err
	}
	out := *run
	out.WeightPreset = preset
	out.Weights = weights
	out.ModelResults = make(map[string]*result.ModelResult, len(run.ModelResults))
	for id, mr := range run.ModelResults {
		cp := *mr
		if ranking := mr.Ranking(); ranking != nil {
			cp.WeightedScore = WeightedScore(ranking, weights)
		}
		out.ModelResults[id] = &cp
	}
	out.Winner, out.WinnerScore = Winner(run.Models, out.ModelResults)
	return &out, nil
}
