package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/workrecap/workrecap/pkg/recap"
)

const anthropicDefaultMaxTokens = 4096

var (
	_ Provider     = (*Anthropic)(nil)
	_ BatchCapable = (*Anthropic)(nil)
)

// anthropicStatusMap normalizes Anthropic batch processing statuses.
var anthropicStatusMap = map[anthropic.MessageBatchProcessingStatus]Status{
	anthropic.MessageBatchProcessingStatusInProgress: StatusProcessing,
	anthropic.MessageBatchProcessingStatusCanceling:  StatusFailed,
	anthropic.MessageBatchProcessingStatusEnded:      StatusCompleted,
}

// Anthropic is the Messages API adapter with batch support.
type Anthropic struct {
	client anthropic.Client
	logger *slog.Logger
}

// NewAnthropic creates the Anthropic adapter. Extra request options are
// appended after the defaults, so tests can redirect the base URL.
func NewAnthropic(apiKey string, logger *slog.Logger, extra ...option.RequestOption) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(defaultChatTimeout),
		option.WithMaxRetries(3),
	}
	opts = append(opts, extra...)

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		logger: logger,
	}
}

// Name implements Provider.
func (p *Anthropic) Name() string { return "anthropic" }

// buildMessages assembles the conversation, appending an assistant prefill
// of "[" in JSON mode so the model continues a JSON array.
func buildMessages(userContent string, jsonMode bool) []anthropic.MessageParam {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)),
	}

	if jsonMode {
		messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock("[")))
	}

	return messages
}

// buildSystem wraps the system prompt, attaching an ephemeral cache_control
// block when caching is requested.
func buildSystem(systemPrompt string, cache bool) []anthropic.TextBlockParam {
	block := anthropic.TextBlockParam{Text: systemPrompt}
	if cache {
		block.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	return []anthropic.TextBlockParam{block}
}

func anthropicUsage(u anthropic.Usage) recap.TokenUsage {
	return recap.TokenUsage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
		CallCount:        1,
		CacheReadTokens:  int(u.CacheReadInputTokens),
		CacheWriteTokens: int(u.CacheCreationInputTokens),
	}
}

// Chat implements Provider.
func (p *Anthropic) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, recap.TokenUsage, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System:    buildSystem(systemPrompt, opts.CacheSystemPrompt),
		Messages:  buildMessages(userContent, opts.JSONMode),
	})
	if err != nil {
		return "", recap.TokenUsage{}, fmt.Errorf("anthropic chat: %w", err)
	}

	if len(msg.Content) == 0 {
		return "", recap.TokenUsage{}, fmt.Errorf("anthropic chat: empty response content")
	}

	text := msg.Content[0].Text
	if opts.JSONMode {
		text = "[" + text
	}

	return text, anthropicUsage(msg.Usage), nil
}

// ListModels implements Provider.
func (p *Anthropic) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo

	iter := p.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for iter.Next() {
		m := iter.Current()

		name := m.DisplayName
		if name == "" {
			name = m.ID
		}

		models = append(models, ModelInfo{ID: m.ID, Name: name, Provider: p.Name()})
	}

	err := iter.Err()
	if err != nil {
		return nil, fmt.Errorf("anthropic list models: %w", err)
	}

	return models, nil
}

// SubmitBatch implements BatchCapable.
func (p *Anthropic) SubmitBatch(ctx context.Context, requests []BatchRequest) (string, error) {
	apiRequests := make([]anthropic.MessageBatchNewParamsRequest, 0, len(requests))

	for _, req := range requests {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = anthropicDefaultMaxTokens
		}

		apiRequests = append(apiRequests, anthropic.MessageBatchNewParamsRequest{
			CustomID: req.CustomID,
			Params: anthropic.MessageBatchNewParamsRequestParams{
				Model:     anthropic.Model(req.Model),
				MaxTokens: int64(maxTokens),
				System:    buildSystem(req.SystemPrompt, req.CacheSystemPrompt),
				Messages:  buildMessages(req.UserContent, req.JSONMode),
			},
		})
	}

	batch, err := p.client.Messages.Batches.New(ctx, anthropic.MessageBatchNewParams{
		Requests: apiRequests,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic batch submit: %w", err)
	}

	p.logger.Info("submitted anthropic batch", "batch_id", batch.ID, "requests", len(requests))

	return batch.ID, nil
}

// BatchStatus implements BatchCapable.
func (p *Anthropic) BatchStatus(ctx context.Context, batchID string) (Status, error) {
	batch, err := p.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return "", fmt.Errorf("anthropic batch status: %w", err)
	}

	status, ok := anthropicStatusMap[batch.ProcessingStatus]
	if !ok {
		status = StatusProcessing
	}

	p.logger.Debug("anthropic batch status", "batch_id", batchID, "status", status)

	return status, nil
}

// BatchResults implements BatchCapable. JSON-mode prefills are not
// reapplied here; batch callers parse content with a tolerant reader.
func (p *Anthropic) BatchResults(ctx context.Context, batchID string) ([]BatchResult, error) {
	stream := p.client.Messages.Batches.ResultsStreaming(ctx, batchID)

	var results []BatchResult

	for stream.Next() {
		entry := stream.Current()

		switch variant := entry.Result.AsAny().(type) {
		case anthropic.MessageBatchSucceededResult:
			var text string
			if len(variant.Message.Content) > 0 {
				text = variant.Message.Content[0].Text
			}

			results = append(results, BatchResult{
				CustomID: entry.CustomID,
				Content:  text,
				Usage:    anthropicUsage(variant.Message.Usage),
			})
		case anthropic.MessageBatchErroredResult:
			message := variant.Error.Error.Message
			if message == "" {
				message = "Unknown"
			}

			results = append(results, BatchResult{CustomID: entry.CustomID, Err: message})
		case anthropic.MessageBatchCanceledResult:
			results = append(results, BatchResult{CustomID: entry.CustomID, Err: "request canceled"})
		case anthropic.MessageBatchExpiredResult:
			results = append(results, BatchResult{CustomID: entry.CustomID, Err: "request expired"})
		}
	}

	err := stream.Err()
	if err != nil {
		return nil, fmt.Errorf("anthropic batch results: %w", err)
	}

	p.logger.Info("retrieved anthropic batch results", "batch_id", batchID, "results", len(results))

	return results, nil
}
