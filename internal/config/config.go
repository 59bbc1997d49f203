package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything the engine, stores and partner client need.
// It replaces environment-variable path wiring with an explicit struct
// passed into constructors.
type Config struct {
	InputDir  string `yaml:"inputDir"`
	OutputDir string `yaml:"outputDir"`
	LogDir    string `yaml:"logDir"`

	// Format selects the staging/result serialization: "csv" or "jsonl".
	Format string `yaml:"format"`

	Concurrency  int `yaml:"concurrency"`
	RetryCeiling int `yaml:"retryCeiling"`

	// RequestTimeout bounds every remote call.
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	Backoff BackoffConfig `yaml:"backoff"`
	Partner PartnerConfig `yaml:"partner"`
	Auth    AuthConfig    `yaml:"auth"`
}

// BackoffConfig tunes the transient-failure retry delays.
type BackoffConfig struct {
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
	Multiplier      float64       `yaml:"multiplier"`
}

// PartnerConfig locates the partner administration API.
type PartnerConfig struct {
	BaseURL string `yaml:"baseURL"`
	// CacheDir holds the HTTP cache for read-only catalog calls.
	// Empty means an in-memory cache.
	CacheDir string `yaml:"cacheDir"`
}

// AuthConfig configures the client-credentials token source.
type AuthConfig struct {
	TokenURL     string   `yaml:"tokenURL"`
	ClientID     string   `yaml:"clientID"`
	ClientSecret string   `yaml:"clientSecret"`
	Scopes       []string `yaml:"scopes"`
}

// Default returns the baseline configuration. Flags and the optional
// config file are applied on top of it.
func Default() Config {
	return Config{
		InputDir:       "gdap-input",
		OutputDir:      "gdap-output",
		LogDir:         "gdap-logs",
		Format:         "csv",
		Concurrency:    4,
		RetryCeiling:   3,
		RequestTimeout: 30 * time.Second,
		Backoff: BackoffConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
		},
		Partner: PartnerConfig{
			BaseURL: "https://graph.microsoft.com/v1.0",
		},
	}
}

// Load reads a YAML config file and applies it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	if c.RetryCeiling < 1 {
		return fmt.Errorf("retryCeiling must be at least 1, got %d", c.RetryCeiling)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive, got %s", c.RequestTimeout)
	}

	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1, got %g", c.Backoff.Multiplier)
	}

	return nil
}
