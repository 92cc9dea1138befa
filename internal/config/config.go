package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

type Config struct {
	Judges    Judges      `yaml:"judges"`
	Anthropic Provider    `yaml:"anthropic"`
	OpenAI    Provider    `yaml:"openai"`
	Codex     Codex       `yaml:"codex"`
	Retry     Retry       `yaml:"retry"`
	Storage   Storage     `yaml:"storage"`
	Server    Server      `yaml:"server"`
	UsageLog  string      `yaml:"usage_log"`
	Pricing   string      `yaml:"pricing"`
	Secrets   SecretsFile `yaml:"secrets"`
}

type Judges struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
	Parallel  bool   `yaml:"parallel"`
}

type Provider struct {
	BaseURL   string `yaml:"base_url"`
	MaxTokens int64  `yaml:"max_tokens"`
}

type Codex struct {
	Binary        string        `yaml:"binary"`
	FallbackModel string        `yaml:"fallback_model"`
	Timeout       time.Duration `yaml:"timeout"`
	SandboxImage  string        `yaml:"sandbox_image"`
}

type Retry struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	MaxJitter   time.Duration `yaml:"max_jitter"`
}

type Storage struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	S3      S3     `yaml:"s3"`
}

type S3 struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	UseSSL   bool   `yaml:"use_ssl"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	RegistryTTL  time.Duration `yaml:"registry_ttl"`
	RegistrySize int           `yaml:"registry_size"`
}

type SecretsFile struct {
	EnvFile string `yaml:"env_file"`
}

// RetryConfig converts the retry section for the gateway.
func (c *Config) RetryConfig() gateway.RetryConfig {
	return gateway.RetryConfig{
		MaxRetries:  c.Retry.MaxRetries,
		BaseBackoff: c.Retry.BaseBackoff,
		MaxBackoff:  c.Retry.MaxBackoff,
		MaxJitter:   c.Retry.MaxJitter,
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	retry := gateway.DefaultRetryConfig()
	return &Config{
		Judges: Judges{
			Primary:   catalog.DefaultPrimaryJudge,
			Secondary: catalog.DefaultSecondaryJudge,
		},
		Codex: Codex{
			Binary:        "codex",
			FallbackModel: "codex-mini-latest",
			Timeout:       5 * time.Minute,
		},
		Retry: Retry{
			MaxRetries:  retry.MaxRetries,
			BaseBackoff: retry.BaseBackoff,
			MaxBackoff:  retry.MaxBackoff,
			MaxJitter:   retry.MaxJitter,
		},
		Storage: Storage{
			Backend: BackendFile,
			Dir:     "results",
			S3:      S3{Bucket: "agenteval-runs", Region: "us-east-1"},
		},
		Server: Server{
			Addr:         ":8080",
			RegistryTTL:  10 * time.Minute,
			RegistrySize: 1024,
		},
		UsageLog: "results/usage.jsonl",
		Secrets:  SecretsFile{EnvFile: ".env.local"},
	}
}

// Load reads path over the defaults, so omitted keys keep their default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func validate(cfg *Config) error {
	primary, err := catalog.LookupModel(cfg.Judges.Primary)
	if err != nil {
		return fmt.Errorf("judges.primary: %w", err)
	}
	secondary, err := catalog.LookupModel(cfg.Judges.Secondary)
	if err != nil {
		return fmt.Errorf("judges.secondary: %w", err)
	}
	if primary.Provider == secondary.Provider {
		return fmt.Errorf("judges must come from different provider families, both are %s", primary.Provider)
	}
	switch cfg.Storage.Backend {
	case BackendFile, BackendPostgres, BackendS3:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == BackendS3 && cfg.Storage.S3.Endpoint == "" {
		return fmt.Errorf("storage.s3.endpoint is required for the s3 backend")
	}
	if cfg.Server.RegistryTTL <= 0 {
		return fmt.Errorf("server.registry_ttl must be positive")
	}
	if cfg.Server.RegistrySize <= 0 {
		return fmt.Errorf("server.registry_size must be positive")
	}
	if cfg.Codex.Timeout <= 0 {
		return fmt.Errorf("codex.timeout must be positive")
	}
	if err := cfg.RetryConfig().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}
