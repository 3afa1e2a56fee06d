// Package config provides configuration loading and management for caseforge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete caseforge configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Provider   ProviderConfig   `yaml:"provider"`
	Generation GenerationConfig `yaml:"generation"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig configures the asset store connection
type DatabaseConfig struct {
	// Driver selects the database driver: "postgres" or "sqlite"
	Driver string `yaml:"driver"`
	// DSN is the connection string (file path for sqlite)
	DSN string `yaml:"dsn"`
	// MaxIdleConns bounds idle pool connections
	MaxIdleConns int `yaml:"max_idle_conns"`
	// MaxOpenConns bounds open pool connections
	MaxOpenConns int `yaml:"max_open_conns"`
	// ConnMaxLifetime recycles connections older than this
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig configures the NATS connection for background tasks
type NATSConfig struct {
	// URL is the NATS server URL (default: nats://localhost:4222)
	URL string `yaml:"url"`
}

// ProviderConfig configures the external scenario provider
type ProviderConfig struct {
	// Name is the registered provider implementation: "anthropic",
	// "openai" or "ollama". API keys come from the environment
	// (ANTHROPIC_API_KEY, OPENAI_API_KEY), never from this file.
	Name string `yaml:"name"`
	// URL is the base URL. Empty uses the provider's default.
	URL string `yaml:"url"`
	// Model is the model identifier passed to the provider
	Model string `yaml:"model"`
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration `yaml:"timeout"`
}

// GenerationConfig tunes the generation pipeline
type GenerationConfig struct {
	// BatchSize caps how many scenarios one provider call requests
	BatchSize int `yaml:"batch_size"`
	// BatchDelay is the pause between sequential provider batches
	BatchDelay time.Duration `yaml:"batch_delay"`
	// DefaultTestCases is the test-case count when the caller gives none
	DefaultTestCases int `yaml:"default_test_cases"`
	// DefaultScenariosPerCase is the per-case scenario count default
	DefaultScenariosPerCase int `yaml:"default_scenarios_per_case"`
	// DefaultTestTypes cycles across generated cases when none are given
	DefaultTestTypes []string `yaml:"default_test_types"`
	// TaskTimeout is the wall-clock limit on one background task
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// LogConfig configures logging output
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "caseforge.db",
			MaxIdleConns:    2,
			MaxOpenConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Provider: ProviderConfig{
			Name:    "ollama",
			URL:     "",
			Model:   "qwen2.5-coder:32b",
			Timeout: 3 * time.Minute,
		},
		Generation: GenerationConfig{
			BatchSize:               10,
			BatchDelay:              500 * time.Millisecond,
			DefaultTestCases:        5,
			DefaultScenariosPerCase: 3,
			DefaultTestTypes:        []string{"functional"},
			TaskTimeout:             10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider.name is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	if c.Generation.BatchSize <= 0 {
		return fmt.Errorf("generation.batch_size must be positive")
	}
	if c.Generation.BatchDelay < 0 {
		return fmt.Errorf("generation.batch_delay must not be negative")
	}
	if c.Generation.DefaultTestCases < 1 || c.Generation.DefaultTestCases > 10 {
		return fmt.Errorf("generation.default_test_cases must be between 1 and 10")
	}
	if c.Generation.DefaultScenariosPerCase < 1 || c.Generation.DefaultScenariosPerCase > 10 {
		return fmt.Errorf("generation.default_scenarios_per_case must be between 1 and 10")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Database
	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
	if other.Database.MaxIdleConns != 0 {
		c.Database.MaxIdleConns = other.Database.MaxIdleConns
	}
	if other.Database.MaxOpenConns != 0 {
		c.Database.MaxOpenConns = other.Database.MaxOpenConns
	}
	if other.Database.ConnMaxLifetime != 0 {
		c.Database.ConnMaxLifetime = other.Database.ConnMaxLifetime
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Provider
	if other.Provider.Name != "" {
		c.Provider.Name = other.Provider.Name
	}
	if other.Provider.URL != "" {
		c.Provider.URL = other.Provider.URL
	}
	if other.Provider.Model != "" {
		c.Provider.Model = other.Provider.Model
	}
	if other.Provider.Timeout != 0 {
		c.Provider.Timeout = other.Provider.Timeout
	}

	// Generation
	if other.Generation.BatchSize != 0 {
		c.Generation.BatchSize = other.Generation.BatchSize
	}
	if other.Generation.BatchDelay != 0 {
		c.Generation.BatchDelay = other.Generation.BatchDelay
	}
	if other.Generation.DefaultTestCases != 0 {
		c.Generation.DefaultTestCases = other.Generation.DefaultTestCases
	}
	if other.Generation.DefaultScenariosPerCase != 0 {
		c.Generation.DefaultScenariosPerCase = other.Generation.DefaultScenariosPerCase
	}
	if len(other.Generation.DefaultTestTypes) > 0 {
		c.Generation.DefaultTestTypes = other.Generation.DefaultTestTypes
	}
	if other.Generation.TaskTimeout != 0 {
		c.Generation.TaskTimeout = other.Generation.TaskTimeout
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// applyEnv overlays environment variables onto the config. Only connection
// and endpoint settings are overridable this way; tuning stays in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CASEFORGE_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("CASEFORGE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("CASEFORGE_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("CASEFORGE_PROVIDER"); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv("CASEFORGE_PROVIDER_URL"); v != "" {
		c.Provider.URL = v
	}
	if v := os.Getenv("CASEFORGE_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("CASEFORGE_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}
