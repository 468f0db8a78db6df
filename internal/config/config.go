package config

import (
	"fmt"
	"time"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Config is the root configuration for the IRS watcher.
type Config struct {
	Classifier ServiceConfig `mapstructure:"classifier" yaml:"classifier"`
	Registry   ServiceConfig `mapstructure:"registry" yaml:"registry"`
	LLM        LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Watcher    WatcherConfig `mapstructure:"watcher" yaml:"watcher"`
	Logging    LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServiceConfig describes one authenticated HTTP collaborator.
type ServiceConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// LLMConfig describes the generative-text service.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`

	// KeepAlive is forwarded verbatim in the generate request when set
	// ("0" unloads the model after the call).
	KeepAlive string `mapstructure:"keep_alive" yaml:"keep_alive,omitempty"`

	// RequestTimeout bounds a single generate call. Generation latency is
	// hour-scale on CPU hosts, hence the large default.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// WatcherConfig tunes the orchestration loop.
type WatcherConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size" yaml:"batch_size"`
	TokenBudget    int           `mapstructure:"token_budget" yaml:"token_budget"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	HealthInterval time.Duration `mapstructure:"health_interval" yaml:"health_interval"`
	PromptTemplate string        `mapstructure:"prompt_template" yaml:"prompt_template"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration matching the reference deployment.
func DefaultConfig() *Config {
	return &Config{
		Classifier: ServiceConfig{
			BaseURL: "http://localhost:5050",
		},
		Registry: ServiceConfig{
			BaseURL: "http://localhost:8000",
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "gemma3:12b-it-qat",
			RequestTimeout: time.Hour,
		},
		Watcher: WatcherConfig{
			PollInterval:   5 * time.Second,
			BatchSize:      3,
			TokenBudget:    4000,
			StartupTimeout: 60 * time.Second,
			HealthInterval: time.Second,
			PromptTemplate: "configs/prompt_template.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks invariants the watcher depends on.
func (c *Config) Validate() error {
	for name, svc := range map[string]ServiceConfig{"classifier": c.Classifier, "registry": c.Registry} {
		if svc.BaseURL == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, name+".base_url is required")
		}
	}
	if c.LLM.BaseURL == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.model is required")
	}
	if c.LLM.RequestTimeout <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.request_timeout must be positive")
	}
	if c.Watcher.BatchSize <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("watcher.batch_size must be positive, got %d", c.Watcher.BatchSize))
	}
	if c.Watcher.TokenBudget <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "watcher.token_budget must be positive")
	}
	if c.Watcher.PollInterval <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "watcher.poll_interval must be positive")
	}
	if c.Watcher.PromptTemplate == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "watcher.prompt_template is required")
	}
	return nil
}
