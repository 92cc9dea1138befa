package catalog

import (
	"errors"
	"fmt"
)

// Provider is a model's provider family.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ModelType selects how a model is reached.
type ModelType string

const (
	ModelTypeAPI ModelType = "api"
	ModelTypeCLI ModelType = "cli"
)

var ErrUnknownModel = errors.New("unknown model")

type Model struct {
	ID          string    `json:"modelId" yaml:"id"`
	Provider    Provider  `json:"provider" yaml:"provider"`
	DisplayName string    `json:"displayName" yaml:"display_name"`
	Description string    `json:"description" yaml:"description"`
	Type        ModelType `json:"type" yaml:"type"`
}

var Models = []Model{
	{"gpt-5.3-codex", ProviderOpenAI, "GPT-5.3 Codex", "OpenAI's coding-optimized variant, run through the local Codex CLI", ModelTypeCLI},
	{"gpt-5.2", ProviderOpenAI, "GPT-5.2", "OpenAI's most capable base model", ModelTypeAPI},
	{"gpt-5-mini", ProviderOpenAI, "GPT-5 Mini", "Balanced performance and speed", ModelTypeAPI},
	{"gpt-5-nano", ProviderOpenAI, "GPT-5 Nano", "Fastest, lowest cost", ModelTypeAPI},
	{"claude-opus-4-5-20251101", ProviderAnthropic, "Claude Opus 4.5", "Most capable Claude model", ModelTypeAPI},
	{"claude-opus-4-6", ProviderAnthropic, "Claude Opus 4.6", "Latest Claude Opus model", ModelTypeAPI},
	{"claude-sonnet-4-20250514", ProviderAnthropic, "Claude Sonnet 4", "Best balance of speed and capability", ModelTypeAPI},
	{"claude-3-5-haiku-20241022", ProviderAnthropic, "Claude Haiku 3.5", "Fastest Claude model", ModelTypeAPI},
}

// DefaultHeadToHead is the default pair for coding-agent comparisons.
var DefaultHeadToHead = []string{"gpt-5.3-codex", "claude-opus-4-6"}

// Default judge identities: one per provider family.
const (
	DefaultPrimaryJudge   = "claude-sonnet-4-20250514"
	DefaultSecondaryJudge = "gpt-5.2"
)

func LookupModel(id string) (Model, error) {
	for _, m := range Models {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

// DisplayName returns the model's display name, or the id when unknown.
func DisplayName(id string) string {
	if m, err := LookupModel(id); err == nil {
		return m.DisplayName
	}
	return id
}

func ModelsByProvider(p Provider) []Model {
	var out []Model
	for _, m := range Models {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return out
}
