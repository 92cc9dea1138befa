package catalog

import (
	"fmt"
	"sort"
)

// Weights maps a dimension to its contribution to the weighted score.
type Weights map[Dimension]float64

const (
	PresetDeveloperTrust = "developer_trust"
	PresetShipFast       = "ship_fast"
	PresetCustom         = "custom"
)

// Presets holds the built-in weight vectors. Each sums to 1.0.
var Presets = map[string]Weights{
	PresetDeveloperTrust: {
		ContextUtilization: 0.25,
		ExplanationQuality: 0.25,
		StyleAdherence:     0.20,
		EdgeCaseHandling:   0.15,
		Completeness:       0.10,
		Correctness:        0.05,
	},
	PresetShipFast: {
		Correctness:        0.30,
		Completeness:       0.25,
		EdgeCaseHandling:   0.20,
		StyleAdherence:     0.10,
		ContextUtilization: 0.10,
		ExplanationQuality: 0.05,
	},
}

// PresetNames returns every accepted preset identifier, custom last.
func PresetNames() []string {
	names := make([]string, 0, len(Presets)+1)
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, PresetCustom)
}

// Preset returns a copy of the named built-in vector.
func Preset(name string) (Weights, error) {
	w, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown weight preset %q", name)
	}
	return w.Clone(), nil
}

func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}
