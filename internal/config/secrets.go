package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Secrets are read from the environment, never from the YAML file.
type Secrets struct {
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	PostgresDSN     string `env:"AGENTEVAL_PG_DSN"`
	S3AccessKey     string `env:"AGENTEVAL_S3_ACCESS_KEY"`
	S3SecretKey     string `env:"AGENTEVAL_S3_SECRET_KEY"`
}

// LoadSecrets loads envFile when it exists, without overriding variables
// already set, then reads Secrets from the environment.
func LoadSecrets(ctx context.Context, envFile string) (*Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return nil, fmt.Errorf("processing secrets: %w", err)
	}
	return &s, nil
}

// Missing lists the provider API keys that are not set.
func (s *Secrets) Missing() []string {
	var missing []string
	if s.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if s.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	return missing
}
