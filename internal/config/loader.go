package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "workrecap"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for workrecap settings.
const envPrefix = "WORKRECAP"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME/.config/workrecap.
// Missing config file is not an error; defaults and env vars are used.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, ".config", "workrecap"))
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	// Empty defaults register the key so environment variables bind during
	// Unmarshal.
	viperCfg.SetDefault("github.base_url", "")
	viperCfg.SetDefault("github.token", "")
	viperCfg.SetDefault("github.username", "")
	viperCfg.SetDefault("github.timeout", DefaultTimeout)
	viperCfg.SetDefault("github.search_interval", DefaultSearchInterval)

	viperCfg.SetDefault("data.dir", DefaultDataDir)
	viperCfg.SetDefault("data.prompts_dir", DefaultPromptsDir)

	viperCfg.SetDefault("pipeline.max_workers", DefaultMaxWorkers)
	viperCfg.SetDefault("pipeline.max_fetch_retries", DefaultMaxFetchRetries)
	viperCfg.SetDefault("pipeline.compress_progress", false)

	viperCfg.SetDefault("llm.provider_config", DefaultProviderConfigPath)
	viperCfg.SetDefault("llm.provider", "")
	viperCfg.SetDefault("llm.api_key", "")
	viperCfg.SetDefault("llm.model", "")

	viperCfg.SetDefault("scheduler.config_path", DefaultScheduleConfigPath)

	viperCfg.SetDefault("notify.telegram_bot_token", "")
	viperCfg.SetDefault("notify.telegram_chat_id", "")
	viperCfg.SetDefault("notify.slack_token", "")

	viperCfg.SetDefault("storage.postgres_dsn", "")
	viperCfg.SetDefault("storage.embedding.base_url", "")
	viperCfg.SetDefault("storage.embedding.api_key", "")
	viperCfg.SetDefault("storage.embedding.model", DefaultEmbeddingModel)

	viperCfg.SetDefault("api.listen_addr", DefaultListenAddr)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
}
