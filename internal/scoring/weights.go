package scoring

import (
	"fmt"
	"math"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
)

// ValidateCustom rejects custom vectors with unknown dimensions, negative or
// non-finite weights, or no positive total.
func ValidateCustom(w catalog.Weights) error {
	if len(w) == 0 {
		return fmt.Errorf("custom weights are required for the %s preset", catalog.PresetCustom)
	}
	for d, v := range w {
		if !d.Valid() {
			return fmt.Errorf("custom weights: unknown dimension %q", d)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("custom weights: %s must be a non-negative number, got %v", d, v)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("custom weights: total must be positive")
	}
	return nil
}

// Normalize scales w so its weights sum to 1.0.
func Normalize(w catalog.Weights) catalog.Weights {
	total := w.Sum()
	out := make(catalog.Weights, len(w))
	for d, v := range w {
		out[d] = v / total
	}
	return out
}

// ResolveWeights returns the effective vector for a run: a built-in preset,
// or the caller's custom vector validated and normalized.
func ResolveWeights(preset string, custom catalog.Weights) (catalog.Weights, error) {
	if preset != catalog.PresetCustom {
		return catalog.Preset(preset)
	}
	if err := ValidateCustom(custom); err != nil {
		return nil, err
	}
	return Normalize(custom), nil
}
