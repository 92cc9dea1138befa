// Package gateway resolves a model id and a prompt into response text by
// dispatching to the model's provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/metrics"
)

type Response struct {
	ModelID      string
	Text         string
	Latency      time.Duration
	InputTokens  int
	OutputTokens int
}

// Querier is the model query capability consumed by the orchestrator and
// the judges.
type Querier interface {
	Query(ctx context.Context, modelID, prompt string) (*Response, error)
}

// Backend answers prompts for the models of one provider or model type.
type Backend interface {
	Query(ctx context.Context, model catalog.Model, prompt string) (*Response, error)
}

var ErrNoBackend = errors.New("no backend configured")

// Router dispatches queries by the model registry: cli models go to CLI,
// api models to the backend of their provider family.
type Router struct {
	Anthropic Backend
	OpenAI    Backend
	CLI       Backend
	Retry     RetryConfig
	Usage     *UsageLog
}

func (r *Router) backend(m catalog.Model) (Backend, error) {
	var b Backend
	switch {
	case m.Type == catalog.ModelTypeCLI:
		b = r.CLI
	case m.Provider == catalog.ProviderAnthropic:
		b = r.Anthropic
	case m.Provider == catalog.ProviderOpenAI:
		b = r.OpenAI
	}
	if b == nil {
		return nil, fmt.Errorf("%w for %s (%s/%s)", ErrNoBackend, m.ID, m.Provider, m.Type)
	}
	return b, nil
}

func (r *Router) Query(ctx context.Context, modelID, prompt string) (*Response, error) {
	model, err := catalog.LookupModel(modelID)
	if err != nil {
		return nil, err
	}
	b, err := r.backend(model)
	if err != nil {
		return nil, err
	}

	provider := string(model.Provider)
	start := time.Now()
	resp, err := r.queryWithRetry(ctx, b, model, prompt)
	latency := time.Since(start)
	metrics.QueryLatency.WithLabelValues(provider).Observe(latency.Seconds())
	if err != nil {
		metrics.ModelQueries.WithLabelValues(provider, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("querying %s: %w", modelID, err)
	}
	metrics.ModelQueries.WithLabelValues(provider, metrics.OutcomeSuccess).Inc()

	resp.ModelID = modelID
	resp.Latency = latency
	if r.Usage != nil {
		rec := UsageRecord{
			RunID:        RunIDFromContext(ctx),
			Provider:     provider,
			Model:        modelID,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		}
		if err := r.Usage.Append(rec); err != nil {
			clog.FromContext(ctx).Warnf("recording usage for %s: %v", modelID, err)
		}
	}
	return resp, nil
}

type ctxKey int

const (
	runIDKey ctxKey = iota
	workspaceKey
)

// WithRunID tags every query made with ctx with the evaluation id, for
// usage accounting.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithWorkspace attaches the repo files (path to content) a CLI agent
// should start from.
func WithWorkspace(ctx context.Context, files map[string]string) context.Context {
	return context.WithValue(ctx, workspaceKey, files)
}

func workspaceFromContext(ctx context.Context) map[string]string {
	files, _ := ctx.Value(workspaceKey).(map[string]string)
	return files
}
