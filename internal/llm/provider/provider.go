// Package provider contains the language-model adapters. Every adapter
// exposes the same chat and model-listing surface; adapters backed by a
// batch API additionally implement BatchCapable, which callers discover
// with a type assertion.
package provider

import (
	"context"
	"errors"

	"github.com/workrecap/workrecap/pkg/recap"
)

// ErrBatchUnsupported is returned when batch processing is requested from
// a provider that only implements the synchronous chat surface.
var ErrBatchUnsupported = errors.New("provider does not support batch processing")

// ModelInfo is metadata for one model available from a provider.
type ModelInfo struct {
	ID       string
	Name     string
	Provider string
}

// ChatOptions tune a single chat call. The zero value requests plain text
// with the provider's default output budget.
type ChatOptions struct {
	// JSONMode constrains the response to valid JSON. OpenAI-compatible
	// providers use response_format, Anthropic an assistant prefill of "[",
	// Gemini the JSON response MIME type.
	JSONMode bool

	// MaxTokens caps output tokens. Zero keeps the provider default.
	MaxTokens int

	// CacheSystemPrompt marks the system prompt cacheable. Only Anthropic
	// acts on it; OpenAI and Gemini cache long prompts automatically.
	CacheSystemPrompt bool
}

// Provider is the uniform surface over one LLM vendor.
type Provider interface {
	// Name returns the short provider identifier (e.g. "openai").
	Name() string

	// Chat sends one system+user exchange and returns the response text
	// with its token usage.
	Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, recap.TokenUsage, error)

	// ListModels returns the models this provider can serve.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Status is the batch job lifecycle status, normalized across providers.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status represents a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	case StatusSubmitted, StatusProcessing:
		return false
	}

	return false
}

// BatchRequest is a single request within a batch job.
type BatchRequest struct {
	CustomID          string
	Model             string
	SystemPrompt      string
	UserContent       string
	JSONMode          bool
	MaxTokens         int
	CacheSystemPrompt bool
}

// BatchResult is the outcome of one request within a completed batch.
// Err holds the provider's failure message; empty means success.
type BatchResult struct {
	CustomID string
	Content  string
	Usage    recap.TokenUsage
	Err      string
}

// Failed reports whether this entry carries an error instead of content.
func (r BatchResult) Failed() bool {
	return r.Err != ""
}

// BatchCapable is implemented by providers backed by an asynchronous
// batch API.
type BatchCapable interface {
	// SubmitBatch submits the requests as one batch job and returns its ID.
	SubmitBatch(ctx context.Context, requests []BatchRequest) (string, error)

	// BatchStatus returns the current lifecycle status of a batch job.
	BatchStatus(ctx context.Context, batchID string) (Status, error)

	// BatchResults retrieves per-request results from a completed batch.
	BatchResults(ctx context.Context, batchID string) ([]BatchResult, error)
}
