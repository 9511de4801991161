package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workrecap/workrecap/pkg/recap"
)

var _ Provider = (*Custom)(nil)

// Custom is the adapter for OpenAI-compatible self-hosted servers
// (Ollama, vLLM, LM Studio). It has no batch surface, and chat tolerates
// servers that omit usage metadata.
type Custom struct {
	wire   *openAIWire
	logger *slog.Logger
}

// NewCustom creates an adapter against the given OpenAI-compatible base URL.
func NewCustom(apiKey, baseURL string, logger *slog.Logger) *Custom {
	if logger == nil {
		logger = slog.Default()
	}

	return &Custom{
		wire:   newOpenAIWire(baseURL, apiKey, defaultChatTimeout),
		logger: logger,
	}
}

// Name implements Provider.
func (p *Custom) Name() string { return "custom" }

// Chat implements Provider.
func (p *Custom) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, recap.TokenUsage, error) {
	text, usage, err := p.wire.chat(ctx, model, systemPrompt, userContent, opts)
	if err != nil {
		return "", recap.TokenUsage{}, fmt.Errorf("custom chat: %w", err)
	}

	return text, usage, nil
}

// ListModels implements Provider.
func (p *Custom) ListModels(ctx context.Context) ([]ModelInfo, error) {
	models, err := p.wire.listModels(ctx, p.Name())
	if err != nil {
		return nil, fmt.Errorf("custom list models: %w", err)
	}

	return models, nil
}
