// Package config loads and validates application configuration from a YAML
// file, environment variables, and defaults, and derives every data-layout
// path the pipeline reads or writes.
package config

import (
	"errors"
	"time"
)

// Config is the top-level configuration struct for workrecap.
// Field tags carry mapstructure for viper unmarshalling and yaml for
// rendering the effective configuration back out.
type Config struct {
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Data      DataConfig      `mapstructure:"data" yaml:"data"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// GitHubConfig holds the GitHub host connection settings.
type GitHubConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Token          string        `mapstructure:"token" yaml:"token"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SearchInterval time.Duration `mapstructure:"search_interval" yaml:"search_interval"`
}

// DataConfig holds the filesystem roots.
type DataConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	PromptsDir string `mapstructure:"prompts_dir" yaml:"prompts_dir"`
}

// PipelineConfig holds execution knobs for range runs.
type PipelineConfig struct {
	MaxWorkers       int  `mapstructure:"max_workers" yaml:"max_workers"`
	MaxFetchRetries  int  `mapstructure:"max_fetch_retries" yaml:"max_fetch_retries"`
	CompressProgress bool `mapstructure:"compress_progress" yaml:"compress_progress"`
}

// LLMConfig points at the provider configuration file and carries the
// single-provider fallback used when that file is absent.
type LLMConfig struct {
	ProviderConfigPath string `mapstructure:"provider_config" yaml:"provider_config"`
	Provider           string `mapstructure:"provider" yaml:"provider"`
	APIKey             string `mapstructure:"api_key" yaml:"api_key"`
	Model              string `mapstructure:"model" yaml:"model"`
}

// SchedulerConfig points at the cron schedule file.
type SchedulerConfig struct {
	ConfigPath string `mapstructure:"config_path" yaml:"config_path"`
}

// NotifyConfig holds credentials for scheduler notification channels.
// An empty token disables the corresponding channel regardless of the
// schedule file.
type NotifyConfig struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token" yaml:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id" yaml:"telegram_chat_id"`
	SlackToken       string `mapstructure:"slack_token" yaml:"slack_token"`
}

// StorageConfig holds the optional relational and vector sink settings.
// An empty DSN disables both sinks.
type StorageConfig struct {
	PostgresDSN string          `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	Embedding   EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
}

// EmbeddingConfig holds the embedding endpoint for the vector sink.
type EmbeddingConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// APIConfig holds the HTTP server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// TelemetryConfig holds the optional OpenTelemetry exporter settings.
// An empty endpoint disables trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// Defaults applied by the loader.
const (
	DefaultDataDir            = "data"
	DefaultPromptsDir         = "prompts"
	DefaultMaxWorkers         = 5
	DefaultMaxFetchRetries    = 5
	DefaultTimeout            = 30 * time.Second
	DefaultSearchInterval     = 2 * time.Second
	DefaultProviderConfigPath = ".provider/config.toml"
	DefaultScheduleConfigPath = "schedule.toml"
	DefaultListenAddr         = ":8000"
	DefaultEmbeddingModel     = "text-embedding-3-small"
)

// Sentinel errors for configuration validation.
var (
	// ErrMissingBaseURL indicates github.base_url is empty.
	ErrMissingBaseURL = errors.New("github.base_url is required")
	// ErrMissingToken indicates github.token is empty.
	ErrMissingToken = errors.New("github.token is required")
	// ErrMissingUsername indicates github.username is empty.
	ErrMissingUsername = errors.New("github.username is required")
	// ErrInvalidMaxWorkers indicates pipeline.max_workers is not positive.
	ErrInvalidMaxWorkers = errors.New("pipeline.max_workers must be positive")
	// ErrInvalidMaxFetchRetries indicates pipeline.max_fetch_retries is not positive.
	ErrInvalidMaxFetchRetries = errors.New("pipeline.max_fetch_retries must be positive")
	// ErrInvalidTimeout indicates github.timeout is negative.
	ErrInvalidTimeout = errors.New("github.timeout must be non-negative")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	githubErr := c.validateGitHub()
	if githubErr != nil {
		return githubErr
	}

	return c.validatePipeline()
}

func (c *Config) validateGitHub() error {
	if c.GitHub.BaseURL == "" {
		return ErrMissingBaseURL
	}

	if c.GitHub.Token == "" {
		return ErrMissingToken
	}

	if c.GitHub.Username == "" {
		return ErrMissingUsername
	}

	if c.GitHub.Timeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxWorkers < 1 {
		return ErrInvalidMaxWorkers
	}

	if c.Pipeline.MaxFetchRetries < 1 {
		return ErrInvalidMaxFetchRetries
	}

	return nil
}
