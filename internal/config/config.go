// Package config handles configuration loading and validation for docsplice.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/reviewlog"
	"github.com/dshills/docsplice/internal/revision"
)

// Environment variables consulted by Load, on top of the generator's own
const (
	EnvRepo      = "DOCSPLICE_REPO"
	EnvGitPath   = "DOCSPLICE_GIT_PATH"
	EnvWorkers   = "DOCSPLICE_WORKERS"
	EnvDataDir   = "DOCSPLICE_DATA_DIR"
	EnvReviewLog = "DOCSPLICE_REVIEW_LOG"
)

// Config holds the application configuration.
type Config struct {
	Repo        string          `yaml:"repo"`
	GitPath     string          `yaml:"git_path"`
	Branch      string          `yaml:"branch"`
	Extensions  []string        `yaml:"extensions"`
	Include     []string        `yaml:"include"`
	Exclude     []string        `yaml:"exclude"`
	Workers     int             `yaml:"workers"`
	ReviewLog   string          `yaml:"review_log"`
	MetricsFile string          `yaml:"metrics_file"`
	Generator   GeneratorConfig `yaml:"generator"`
	DataDir     string          `yaml:"data_dir"`
}

// GeneratorConfig selects and tunes the text-generation backend.
type GeneratorConfig struct {
	Provider   string        `yaml:"provider"` // ollama, openai or static
	Model      string        `yaml:"model"`
	Host       string        `yaml:"host"` // Ollama host or OpenAI-compatible base URL
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"` // 0 waits indefinitely
	MaxRetries int           `yaml:"max_retries"`
	CacheSize  int           `yaml:"cache_size"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst      int           `yaml:"burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitPath:    "git",
		Extensions: append([]string(nil), revision.DefaultExtensions...),
		Workers:    1,
		ReviewLog:  reviewlog.DefaultLogFile,
		Generator: GeneratorConfig{
			Provider:   generator.ProviderOllama,
			Model:      generator.DefaultOllamaModel,
			Host:       generator.DefaultOllamaHost,
			MaxRetries: generator.MaxRetries,
			CacheSize:  generator.DefaultCacheSize,
		},
		DataDir: defaultDataDir(),
	}
}

// DefaultConfigPath is ~/.config/docsplice/config.yaml, or the platform
// equivalent
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "docsplice", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docsplice")
	}
	return filepath.Join(dir, "docsplice")
}

// Load reads configuration from the given path, then applies environment
// overrides. If configPath is empty or doesn't exist, defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides fields from the environment
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvRepo, &c.Repo)
	str(EnvGitPath, &c.GitPath)
	str(EnvDataDir, &c.DataDir)
	str(EnvReviewLog, &c.ReviewLog)
	str(generator.EnvProvider, &c.Generator.Provider)
	str(generator.EnvModel, &c.Generator.Model)

	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}

	switch strings.ToLower(c.Generator.Provider) {
	case generator.ProviderOpenAI:
		str(generator.EnvOpenAIAPIKey, &c.Generator.APIKey)
		str(generator.EnvOpenAIBase, &c.Generator.Host)
	case generator.ProviderOllama, "":
		str(generator.EnvOllamaHost, &c.Generator.Host)
	}

	return nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.GitPath == "" {
		c.GitPath = defaults.GitPath
	}
	if len(c.Extensions) == 0 {
		c.Extensions = defaults.Extensions
	}
	if c.Workers == 0 {
		c.Workers = defaults.Workers
	}
	if c.ReviewLog == "" {
		c.ReviewLog = defaults.ReviewLog
	}
	if c.DataDir == "" {
		c.DataDir = defaults.DataDir
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = defaults.Generator.Provider
	}
	if c.Generator.MaxRetries == 0 {
		c.Generator.MaxRetries = defaults.Generator.MaxRetries
	}
	c.Generator.Provider = strings.ToLower(c.Generator.Provider)

	// Ollama defaults carried over from DefaultConfig do not apply to openai
	if c.Generator.Provider == generator.ProviderOpenAI {
		if c.Generator.Host == defaults.Generator.Host {
			c.Generator.Host = ""
		}
		if c.Generator.Model == defaults.Generator.Model {
			c.Generator.Model = generator.DefaultOpenAIModel
		}
	}
}

// DatabasePath is the SQLite file holding run history
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// ReviewLogPath resolves ReviewLog against the repository root when it is relative
func (c *Config) ReviewLogPath(root string) string {
	if c.ReviewLog == "" || filepath.IsAbs(c.ReviewLog) {
		return c.ReviewLog
	}
	return filepath.Join(root, c.ReviewLog)
}

// GeneratorSettings converts the generator section for generator.New
func (c *Config) GeneratorSettings(observer generator.Observer) generator.Config {
	retry := generator.DefaultRetryConfig()
	if c.Generator.MaxRetries > 0 {
		retry.MaxRetries = c.Generator.MaxRetries
	}

	return generator.Config{
		Provider:  c.Generator.Provider,
		Model:     c.Generator.Model,
		Host:      c.Generator.Host,
		APIKey:    c.Generator.APIKey,
		Timeout:   c.Generator.Timeout,
		Retry:     retry,
		CacheSize: c.Generator.CacheSize,
		RateLimit: c.Generator.RateLimit,
		Burst:     c.Generator.Burst,
		Observer:  observer,
	}
}
