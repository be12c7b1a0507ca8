package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pario-ai/inserter/pkg/cache"
	"github.com/pario-ai/inserter/pkg/provider"
	"github.com/pario-ai/inserter/pkg/settings"
)

// Config holds all inserter configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	DBPath   string         `yaml:"db_path"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Settings SettingsConfig `yaml:"settings"`
	Log      LogConfig      `yaml:"log"`
}

// ProviderConfig defines the upstream generation endpoint.
type ProviderConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the prompt cache. MaxBytes caps the whole kv medium
// and 0 means unlimited.
type CacheConfig struct {
	Prefix        string  `yaml:"prefix"`
	EvictFraction float64 `yaml:"evict_fraction"`
	MaxBytes      int64   `yaml:"max_bytes"`
	Coalesce      bool    `yaml:"coalesce"`
}

// SettingsConfig locates the persisted credential.
type SettingsConfig struct {
	Key string `yaml:"key"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: "127.0.0.1:8765",
		DBPath: "inserter.db",
		Provider: ProviderConfig{
			URL:   provider.DefaultBaseURL,
			Model: provider.DefaultModel,
		},
		Cache: CacheConfig{
			Prefix:        cache.DefaultPrefix,
			EvictFraction: cache.DefaultEvictFraction,
		},
		Settings: SettingsConfig{
			Key: settings.DefaultKey,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Provider.URL == "" {
		return errors.New("config: provider.url is required")
	}
	if c.Provider.Model == "" {
		return errors.New("config: provider.model is required")
	}
	if c.Provider.Timeout < 0 {
		return errors.New("config: provider.timeout must not be negative")
	}
	if c.Cache.Prefix == "" {
		return errors.New("config: cache.prefix is required")
	}
	if c.Cache.EvictFraction <= 0 || c.Cache.EvictFraction > 1 {
		return fmt.Errorf("config: cache.evict_fraction must be in (0, 1], got %v", c.Cache.EvictFraction)
	}
	if c.Cache.MaxBytes < 0 {
		return errors.New("config: cache.max_bytes must not be negative")
	}
	if c.Settings.Key == "" {
		return errors.New("config: settings.key is required")
	}
	return nil
}
