package llm

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Strategy modes accepted in [strategy].mode.
const (
	StrategyEconomy  = "economy"
	StrategyStandard = "standard"
	StrategyPremium  = "premium"
	StrategyAdaptive = "adaptive"
	StrategyFixed    = "fixed"
)

// defaultTask is the task every unknown task name falls back to.
const defaultTask = "default"

// KnownTasks lists the task names the pipeline routes through the
// provider configuration.
var KnownTasks = []string{"enrich", "daily", "weekly", "monthly", "yearly", "query"}

// validStrategies is the accepted set for [strategy].mode.
var validStrategies = []string{
	StrategyEconomy,
	StrategyStandard,
	StrategyPremium,
	StrategyAdaptive,
	StrategyFixed,
}

// ErrNoDefaultTask indicates a task lookup missed and no "default" task
// is configured to fall back to.
var ErrNoDefaultTask = errors.New("no default task configured")

// ErrProviderNotConfigured indicates a provider name has no entry in the
// [providers] tables.
var ErrProviderNotConfigured = errors.New("provider not configured")

// TaskConfig is the per-task routing target.
type TaskConfig struct {
	Provider        string `toml:"provider"`
	Model           string `toml:"model"`
	EscalationModel string `toml:"escalation_model"`
	MaxTokens       int    `toml:"max_tokens"`
}

// ProviderEntry holds one provider's credentials.
type ProviderEntry struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// providerConfigFile mirrors the TOML layout:
//
//	[strategy]        mode
//	[providers.NAME]  api_key, base_url
//	[tasks.TASK]      provider, model, escalation_model, max_tokens
type providerConfigFile struct {
	Strategy struct {
		Mode string `toml:"mode"`
	} `toml:"strategy"`
	Providers map[string]ProviderEntry `toml:"providers"`
	Tasks     map[string]TaskConfig    `toml:"tasks"`
}

// ProviderConfig is the parsed provider/task routing configuration.
type ProviderConfig struct {
	strategyMode string
	providers    map[string]ProviderEntry
	tasks        map[string]TaskConfig
}

// LoadProviderConfig reads and parses the provider TOML file.
// A missing file is an error; run with the single-provider fallback
// instead when no file exists.
func LoadProviderConfig(path string) (*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provider config not found: %w", err)
	}

	var file providerConfigFile

	unmarshalErr := toml.Unmarshal(data, &file)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("parse provider config %s: %w", path, unmarshalErr)
	}

	mode := file.Strategy.Mode
	if mode == "" {
		mode = StrategyFixed
	}

	cfg := &ProviderConfig{
		strategyMode: mode,
		providers:    file.Providers,
		tasks:        file.Tasks,
	}

	if cfg.providers == nil {
		cfg.providers = map[string]ProviderEntry{}
	}

	if cfg.tasks == nil {
		cfg.tasks = map[string]TaskConfig{}
	}

	return cfg, nil
}

// FallbackProviderConfig builds a fixed-strategy configuration from the
// single provider/model pair in the application config. Used when no
// provider TOML file exists.
func FallbackProviderConfig(providerName, apiKey, model string) *ProviderConfig {
	return &ProviderConfig{
		strategyMode: StrategyFixed,
		providers: map[string]ProviderEntry{
			providerName: {APIKey: apiKey},
		},
		tasks: map[string]TaskConfig{
			defaultTask: {Provider: providerName, Model: model},
		},
	}
}

// StrategyMode returns the configured strategy mode.
func (c *ProviderConfig) StrategyMode() string { return c.strategyMode }

// Providers returns a copy of the provider entry map.
func (c *ProviderConfig) Providers() map[string]ProviderEntry {
	out := make(map[string]ProviderEntry, len(c.providers))
	for name, entry := range c.providers {
		out[name] = entry
	}

	return out
}

// TaskFor returns the configuration for a task, falling back to the
// "default" task for unknown names.
func (c *ProviderConfig) TaskFor(task string) (TaskConfig, error) {
	if tc, ok := c.tasks[task]; ok {
		return tc, nil
	}

	if tc, ok := c.tasks[defaultTask]; ok {
		return tc, nil
	}

	return TaskConfig{}, fmt.Errorf("task %q: %w", task, ErrNoDefaultTask)
}

// ProviderEntryFor returns the credentials for a provider name.
func (c *ProviderConfig) ProviderEntryFor(name string) (ProviderEntry, error) {
	entry, ok := c.providers[name]
	if !ok {
		return ProviderEntry{}, fmt.Errorf("provider %q: %w", name, ErrProviderNotConfigured)
	}

	return entry, nil
}

// Validate checks the configuration and returns one message per problem.
// An empty slice means the configuration is usable.
func (c *ProviderConfig) Validate() []string {
	var problems []string

	if !validStrategy(c.strategyMode) {
		problems = append(problems, fmt.Sprintf(
			"invalid strategy mode %q, must be one of: economy, standard, premium, adaptive, fixed",
			c.strategyMode))
	}

	for _, name := range sortedKeys(c.tasks) {
		tc := c.tasks[name]
		if _, ok := c.providers[tc.Provider]; !ok {
			problems = append(problems, fmt.Sprintf(
				"task %q references provider %q which is not defined in [providers]",
				name, tc.Provider))
		}
	}

	// Self-hosted "custom" endpoints may run without credentials.
	for _, name := range sortedKeys(c.providers) {
		if name == ProviderCustom {
			continue
		}

		if c.providers[name].APIKey == "" {
			problems = append(problems, fmt.Sprintf("provider %q has empty api_key", name))
		}
	}

	return problems
}

func validStrategy(mode string) bool {
	for _, s := range validStrategies {
		if mode == s {
			return true
		}
	}

	return false
}
