package server

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

// InputFromQuery reads a run input from stream query parameters: taskId,
// models (comma separated), mode, weightPreset and customWeights (JSON).
func InputFromQuery(q url.Values) (runner.Input, error) {
	in := runner.Input{
		TaskID:       q.Get("taskId"),
		Mode:         result.Mode(q.Get("mode")),
		WeightPreset: q.Get("weightPreset"),
	}
	for _, m := range strings.Split(q.Get("models"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			in.Models = append(in.Models, m)
		}
	}
	if raw := q.Get("customWeights"); raw != "" {
		var w catalog.Weights
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return runner.Input{}, fmt.Errorf("invalid customWeights: %w", err)
		}
		in.CustomWeights = w
	}
	return in, nil
}

// Query is the inverse of InputFromQuery.
func Query(in runner.Input) url.Values {
	q := url.Values{}
	q.Set("taskId", in.TaskID)
	q.Set("models", strings.Join(in.Models, ","))
	if in.Mode != "" {
		q.Set("mode", string(in.Mode))
	}
	if in.WeightPreset != "" {
		q.Set("weightPreset", in.WeightPreset)
	}
	if len(in.CustomWeights) > 0 {
		data, _ := json.Marshal(in.CustomWeights)
		q.Set("customWeights", string(data))
	}
	return q
}
