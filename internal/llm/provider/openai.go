package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workrecap/workrecap/pkg/recap"
)

const openAIBaseURL = "https://api.openai.com/v1"

var (
	_ Provider     = (*OpenAI)(nil)
	_ BatchCapable = (*OpenAI)(nil)
)

// openAIStatusMap normalizes OpenAI batch statuses.
var openAIStatusMap = map[string]Status{
	"validating":  StatusSubmitted,
	"in_progress": StatusProcessing,
	"finalizing":  StatusProcessing,
	"completed":   StatusCompleted,
	"failed":      StatusFailed,
	"cancelled":   StatusFailed,
	"cancelling":  StatusFailed,
	"expired":     StatusExpired,
}

// OpenAI is the hosted OpenAI adapter with file-based batch support.
type OpenAI struct {
	wire   *openAIWire
	logger *slog.Logger
}

// OpenAIOption customizes an OpenAI adapter.
type OpenAIOption func(*OpenAI)

// WithOpenAIBaseURL overrides the API base URL, mainly for tests.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAI) {
		p.wire.baseURL = baseURL
	}
}

// NewOpenAI creates the OpenAI adapter.
func NewOpenAI(apiKey string, logger *slog.Logger, opts ...OpenAIOption) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}

	p := &OpenAI{
		wire:   newOpenAIWire(openAIBaseURL, apiKey, defaultChatTimeout),
		logger: logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements Provider.
func (p *OpenAI) Name() string { return "openai" }

// Chat implements Provider. CacheSystemPrompt is ignored: OpenAI caches
// prompts longer than 1024 tokens automatically and reports hits through
// prompt_tokens_details.cached_tokens.
func (p *OpenAI) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, recap.TokenUsage, error) {
	text, usage, err := p.wire.chat(ctx, model, systemPrompt, userContent, opts)
	if err != nil {
		return "", recap.TokenUsage{}, fmt.Errorf("openai chat: %w", err)
	}

	return text, usage, nil
}

// ListModels implements Provider.
func (p *OpenAI) ListModels(ctx context.Context) ([]ModelInfo, error) {
	models, err := p.wire.listModels(ctx, p.Name())
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}

	return models, nil
}

// SubmitBatch implements BatchCapable: requests are uploaded as a JSONL
// file and executed within the 24h completion window.
func (p *OpenAI) SubmitBatch(ctx context.Context, requests []BatchRequest) (string, error) {
	jsonl, err := buildBatchJSONL(requests)
	if err != nil {
		return "", fmt.Errorf("openai batch: %w", err)
	}

	fileID, err := p.wire.uploadBatchFile(ctx, jsonl)
	if err != nil {
		return "", fmt.Errorf("openai batch upload: %w", err)
	}

	batchID, err := p.wire.createBatch(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("openai batch create: %w", err)
	}

	p.logger.Info("submitted openai batch", "batch_id", batchID, "requests", len(requests))

	return batchID, nil
}

// BatchStatus implements BatchCapable.
func (p *OpenAI) BatchStatus(ctx context.Context, batchID string) (Status, error) {
	batch, err := p.wire.getBatch(ctx, batchID)
	if err != nil {
		return "", fmt.Errorf("openai batch status: %w", err)
	}

	status, ok := openAIStatusMap[batch.Status]
	if !ok {
		status = StatusProcessing
	}

	p.logger.Debug("openai batch status", "batch_id", batchID, "status", status)

	return status, nil
}

// BatchResults implements BatchCapable. A batch without an output file
// yields no results, which the caller treats as missing custom_ids.
func (p *OpenAI) BatchResults(ctx context.Context, batchID string) ([]BatchResult, error) {
	batch, err := p.wire.getBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("openai batch results: %w", err)
	}

	if batch.OutputFileID == "" {
		p.logger.Warn("openai batch has no output file", "batch_id", batchID)

		return nil, nil
	}

	data, err := p.wire.fileContent(ctx, batch.OutputFileID)
	if err != nil {
		return nil, fmt.Errorf("openai batch results: %w", err)
	}

	results, err := parseBatchOutput(data)
	if err != nil {
		return nil, fmt.Errorf("openai batch results: %w", err)
	}

	p.logger.Info("retrieved openai batch results", "batch_id", batchID, "results", len(results))

	return results, nil
}
