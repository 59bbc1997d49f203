package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Equal(t, "csv", cfg.Format)
	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, 3, cfg.RetryCeiling)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.Backoff.InitialInterval)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
format: jsonl
concurrency: 8
retryCeiling: 5
partner:
  baseURL: https://partner.example.test/v1
auth:
  clientID: client-1
  scopes:
    - https://partner.example.test/.default
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "jsonl", cfg.Format)
	require.Equal(t, 8, cfg.Concurrency)
	require.Equal(t, 5, cfg.RetryCeiling)
	require.Equal(t, "https://partner.example.test/v1", cfg.Partner.BaseURL)
	require.Equal(t, "client-1", cfg.Auth.ClientID)

	// Untouched keys keep their defaults.
	require.Equal(t, "gdap-input", cfg.InputDir)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"zero retry ceiling", func(c *Config) { c.RetryCeiling = 0 }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"sub-one multiplier", func(c *Config) { c.Backoff.Multiplier = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
