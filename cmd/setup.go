package cmd

import (
	"context"
	"fmt"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/config"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/judge"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

// env is everything a subcommand needs, built from the config file and
// the process environment.
type env struct {
	cfg     *config.Config
	secrets *config.Secrets
	store   result.Store
	close   func()
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	secrets, err := config.LoadSecrets(ctx, cfg.Secrets.EnvFile)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg, secrets)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, secrets: secrets, store: store, close: closeStore}, nil
}

func openStore(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (result.Store, func(), error) {
	noop := func() {}
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if secrets.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres storage needs AGENTEVAL_PG_DSN")
		}
		pg, err := result.NewPostgresStore(ctx, secrets.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.BackendS3:
		s3, err := result.NewS3Store(result.S3Config{
			Endpoint:  cfg.Storage.S3.Endpoint,
			Region:    cfg.Storage.S3.Region,
			AccessKey: secrets.S3AccessKey,
			SecretKey: secrets.S3SecretKey,
			Bucket:    cfg.Storage.S3.Bucket,
			UseSSL:    cfg.Storage.S3.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, noop, nil
	default:
		return result.NewFileStore(cfg.Storage.Dir), noop, nil
	}
}

// router wires the provider backends. The codex CLI falls back to the
// OpenAI API when its binary is missing.
func (e *env) router() *gateway.Router {
	openAI := gateway.NewOpenAI(gateway.OpenAIOpts{
		APIKey:    e.secrets.OpenAIAPIKey,
		BaseURL:   e.cfg.OpenAI.BaseURL,
		MaxTokens: e.cfg.OpenAI.MaxTokens,
	})
	return &gateway.Router{
		Anthropic: gateway.NewAnthropic(gateway.AnthropicOpts{
			APIKey:    e.secrets.AnthropicAPIKey,
			BaseURL:   e.cfg.Anthropic.BaseURL,
			MaxTokens: e.cfg.Anthropic.MaxTokens,
		}),
		OpenAI: openAI,
		CLI: gateway.NewCodex(gateway.CodexOpts{
			Binary:        e.cfg.Codex.Binary,
			Timeout:       e.cfg.Codex.Timeout,
			SandboxImage:  e.cfg.Codex.SandboxImage,
			APIKey:        e.secrets.OpenAIAPIKey,
			Fallback:      openAI,
			FallbackModel: e.cfg.Codex.FallbackModel,
		}),
		Retry: e.cfg.RetryConfig(),
		Usage: gateway.NewUsageLog(e.cfg.UsageLog),
	}
}

func (e *env) runner() (*runner.Runner, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	panel, err := judge.NewPanel(e.cfg.Judges.Primary, e.cfg.Judges.Secondary)
	if err != nil {
		return nil, err
	}
	router := e.router()
	return &runner.Runner{
		Catalog: cat,
		Querier: router,
		Scorer:  &judge.Scorer{Querier: router, Panel: panel, Parallel: e.cfg.Judges.Parallel},
		Store:   e.store,
	}, nil
}
