package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
classifier:
  base_url: http://nids:5050
  username: watcher
  password: secret
registry:
  base_url: http://store:8000
llm:
  model: llama3
watcher:
  batch_size: 5
  poll_interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://nids:5050", cfg.Classifier.BaseURL)
	assert.Equal(t, "watcher", cfg.Classifier.Username)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Watcher.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Watcher.PollInterval)

	// Untouched keys keep their defaults.
	assert.Equal(t, 4000, cfg.Watcher.TokenBudget)
	assert.Equal(t, time.Hour, cfg.LLM.RequestTimeout)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("NIDS_PASSWORD", "s3cret")

	path := writeConfig(t, `
classifier:
  username: watcher
  password: ${NIDS_PASSWORD}
registry:
  password: ${UNSET_VARIABLE_XYZ}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Classifier.Password)
	assert.Equal(t, "${UNSET_VARIABLE_XYZ}", cfg.Registry.Password,
		"unset variables stay literal so the problem is visible")
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
watcher:
  batch_size: 0
`)

	_, err := Load(path)
	require.Error(t, err)

	var pe *types.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, pe.Code)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var pe *types.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.CONFIG_LOAD_FAILED, pe.Code)
}

func TestLoadWithDefaults_MissingFileFallsBack(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate_Table(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"missing classifier url", func(c *Config) { c.Classifier.BaseURL = "" }, false},
		{"missing registry url", func(c *Config) { c.Registry.BaseURL = "" }, false},
		{"missing model", func(c *Config) { c.LLM.Model = "" }, false},
		{"zero request timeout", func(c *Config) { c.LLM.RequestTimeout = 0 }, false},
		{"negative batch size", func(c *Config) { c.Watcher.BatchSize = -1 }, false},
		{"zero token budget", func(c *Config) { c.Watcher.TokenBudget = 0 }, false},
		{"zero poll interval", func(c *Config) { c.Watcher.PollInterval = 0 }, false},
		{"missing template", func(c *Config) { c.Watcher.PromptTemplate = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
