package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// envVarPattern matches ${VAR_NAME} placeholders in string values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the given YAML file, applies ${ENV}
// interpolation to string values, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to unmarshal config", err)
	}

	interpolate(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults behaves like Load but returns the defaults when the file
// does not exist.
func LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// WriteDefault writes the default configuration to path, creating parent
// directories as needed. Used by first-run setup.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to create config directory", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to marshal default config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to write default config", err)
	}
	return nil
}

// interpolate replaces ${VAR_NAME} in the string fields that may carry
// secrets or deployment-specific endpoints.
func interpolate(cfg *Config) {
	for _, s := range []*string{
		&cfg.Classifier.BaseURL, &cfg.Classifier.Username, &cfg.Classifier.Password,
		&cfg.Registry.BaseURL, &cfg.Registry.Username, &cfg.Registry.Password,
		&cfg.LLM.BaseURL, &cfg.LLM.Model,
		&cfg.Watcher.PromptTemplate,
	} {
		*s = interpolateString(*s)
	}
}

func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
