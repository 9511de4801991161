package llm

import (
	"context"
	"log/slog"
	"sort"

	"github.com/workrecap/workrecap/internal/llm/provider"
)

// DiscoverModels collects the available models from each provider.
// Providers that fail to list are skipped with a warning. Results are
// sorted by (provider, id).
func DiscoverModels(ctx context.Context, providers map[string]provider.Provider, logger *slog.Logger) []provider.ModelInfo {
	if logger == nil {
		logger = slog.Default()
	}

	var models []provider.ModelInfo

	for _, name := range sortedKeys(providers) {
		list, err := providers[name].ListModels(ctx)
		if err != nil {
			logger.Warn("failed to list models", "provider", name, "error", err)

			continue
		}

		models = append(models, list...)
	}

	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}

		return models[i].ID < models[j].ID
	})

	return models
}
