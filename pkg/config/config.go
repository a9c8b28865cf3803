// Package config loads the application configuration from YAML with
// environment fallbacks for credentials.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chatmem-dev/chatmem/pkg/memory"
)

// Config represents the application configuration.
type Config struct {
	// Memory tunes the conversation memory manager.
	Memory memory.Config `yaml:"memory"`

	// Summarizer selects and configures the summarization backend.
	Summarizer SummarizerConfig `yaml:"summarizer"`

	// Cleanup controls the background cleanup scheduler.
	Cleanup CleanupConfig `yaml:"cleanup"`

	// Server configures the observability HTTP endpoint.
	Server ServerConfig `yaml:"server"`
}

// SummarizerConfig holds summarization backend settings.
type SummarizerConfig struct {
	// Provider names the backend: "gemini", "openai", "vertexai", or
	// empty to run without summarization.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// APIKey is the provider credential. Falls back to the provider's
	// environment variable when empty.
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds each summarization call.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RequestsPerMinute caps summarization calls client-side. Zero
	// disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// CleanupConfig holds cleanup scheduler settings.
type CleanupConfig struct {
	// IntervalMinutes is how often inactive-session cleanup runs.
	IntervalMinutes int `yaml:"interval_minutes"`

	// SweepIntervalMinutes is how often the corruption sweep runs.
	// Defaults to the cleanup interval.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port for the health, metrics and stats endpoints.
	Port int `yaml:"port"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Memory:  memory.DefaultConfig(),
		Cleanup: CleanupConfig{IntervalMinutes: 60},
		Server:  ServerConfig{Port: 8080},
	}
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cleanup.IntervalMinutes <= 0 {
		c.Cleanup.IntervalMinutes = 60
	}
	if c.Cleanup.SweepIntervalMinutes <= 0 {
		c.Cleanup.SweepIntervalMinutes = c.Cleanup.IntervalMinutes
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Summarizer.TimeoutSeconds <= 0 {
		c.Summarizer.TimeoutSeconds = 30
	}

	if c.Summarizer.APIKey == "" {
		switch c.Summarizer.Provider {
		case "gemini":
			c.Summarizer.APIKey = os.Getenv("GEMINI_API_KEY")
			if c.Summarizer.APIKey == "" {
				c.Summarizer.APIKey = os.Getenv("GOOGLE_API_KEY")
			}
		case "openai":
			c.Summarizer.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
