package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/workrecap/workrecap/pkg/recap"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

var (
	_ Provider     = (*Gemini)(nil)
	_ BatchCapable = (*Gemini)(nil)
)

// geminiStatusMap normalizes Gemini batch job states.
var geminiStatusMap = map[string]Status{
	"JOB_STATE_PENDING":   StatusSubmitted,
	"JOB_STATE_RUNNING":   StatusProcessing,
	"JOB_STATE_SUCCEEDED": StatusCompleted,
	"JOB_STATE_FAILED":    StatusFailed,
	"JOB_STATE_CANCELLED": StatusFailed,
	"JOB_STATE_PAUSED":    StatusProcessing,
}

// Gemini is the Google Generative Language API adapter with inline batch
// support. It speaks the v1beta REST surface directly.
type Gemini struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *slog.Logger
}

// GeminiOption customizes a Gemini adapter.
type GeminiOption func(*Gemini)

// WithGeminiBaseURL overrides the API base URL, mainly for tests.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(p *Gemini) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewGemini creates the Gemini adapter.
func NewGemini(apiKey string, logger *slog.Logger, opts ...GeminiOption) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Gemini{
		baseURL: geminiBaseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: defaultChatTimeout},
		logger:  logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements Provider.
func (p *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata geminiUsage `json:"usageMetadata"`
}

// buildGenerateRequest assembles one generateContent payload. Caching needs
// no request flag: Gemini 2.5+ caches shared prefixes implicitly and reports
// hits via cachedContentTokenCount.
func buildGenerateRequest(systemPrompt, userContent string, opts ChatOptions) geminiGenerateRequest {
	req := geminiGenerateRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userContent}}},
		},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
	}

	cfg := geminiGenerationConfig{}
	if opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = opts.MaxTokens
	}

	if cfg != (geminiGenerationConfig{}) {
		req.GenerationConfig = &cfg
	}

	return req
}

func geminiTextOf(resp *geminiGenerateResponse) (string, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func geminiUsageOf(u geminiUsage) recap.TokenUsage {
	return recap.TokenUsage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
		CallCount:        1,
		CacheReadTokens:  u.CachedContentTokenCount,
	}
}

// Chat implements Provider.
func (p *Gemini) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, recap.TokenUsage, error) {
	path := "/v1beta/models/" + url.PathEscape(strings.TrimPrefix(model, "models/")) + ":generateContent"

	var resp geminiGenerateResponse

	err := p.postJSON(ctx, path, buildGenerateRequest(systemPrompt, userContent, opts), &resp)
	if err != nil {
		return "", recap.TokenUsage{}, fmt.Errorf("gemini chat: %w", err)
	}

	text, err := geminiTextOf(&resp)
	if err != nil {
		return "", recap.TokenUsage{}, fmt.Errorf("gemini chat: %w", err)
	}

	return text, geminiUsageOf(resp.UsageMetadata), nil
}

// ListModels implements Provider, following nextPageToken pagination.
func (p *Gemini) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var (
		models    []ModelInfo
		pageToken string
	)

	for {
		path := "/v1beta/models?pageSize=200"
		if pageToken != "" {
			path += "&pageToken=" + url.QueryEscape(pageToken)
		}

		var resp struct {
			Models []struct {
				Name        string `json:"name"`
				DisplayName string `json:"displayName"`
			} `json:"models"`
			NextPageToken string `json:"nextPageToken"`
		}

		err := p.getJSON(ctx, path, &resp)
		if err != nil {
			return nil, fmt.Errorf("gemini list models: %w", err)
		}

		for _, m := range resp.Models {
			name := m.DisplayName
			if name == "" {
				name = m.Name
			}

			models = append(models, ModelInfo{ID: m.Name, Name: name, Provider: p.Name()})
		}

		if resp.NextPageToken == "" {
			return models, nil
		}

		pageToken = resp.NextPageToken
	}
}

type geminiBatchEntry struct {
	Request  geminiGenerateRequest `json:"request"`
	Metadata struct {
		Key string `json:"key"`
	} `json:"metadata"`
}

type geminiInlineResult struct {
	Metadata struct {
		Key string `json:"key"`
	} `json:"metadata"`
	Response *geminiGenerateResponse `json:"response"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type geminiOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Metadata struct {
		State string `json:"state"`
	} `json:"metadata"`
	Response struct {
		InlinedResponses struct {
			InlinedResponses []geminiInlineResult `json:"inlinedResponses"`
		} `json:"inlinedResponses"`
	} `json:"response"`
}

// SubmitBatch implements BatchCapable using inline requests. All requests
// in one batch run against the first request's model.
func (p *Gemini) SubmitBatch(ctx context.Context, requests []BatchRequest) (string, error) {
	if len(requests) == 0 {
		return "", fmt.Errorf("gemini batch: empty request set")
	}

	entries := make([]geminiBatchEntry, 0, len(requests))

	for _, req := range requests {
		entry := geminiBatchEntry{
			Request: buildGenerateRequest(req.SystemPrompt, req.UserContent, ChatOptions{
				JSONMode:  req.JSONMode,
				MaxTokens: req.MaxTokens,
			}),
		}
		entry.Metadata.Key = req.CustomID
		entries = append(entries, entry)
	}

	model := strings.TrimPrefix(requests[0].Model, "models/")
	path := "/v1beta/models/" + url.PathEscape(model) + ":batchGenerateContent"

	payload := map[string]any{
		"batch": map[string]any{
			"displayName": "workrecap",
			"inputConfig": map[string]any{
				"requests": map[string]any{
					"requests": entries,
				},
			},
		},
	}

	var op geminiOperation

	err := p.postJSON(ctx, path, payload, &op)
	if err != nil {
		return "", fmt.Errorf("gemini batch submit: %w", err)
	}

	p.logger.Info("submitted gemini batch", "batch_id", op.Name, "requests", len(requests))

	return op.Name, nil
}

// BatchStatus implements BatchCapable.
func (p *Gemini) BatchStatus(ctx context.Context, batchID string) (Status, error) {
	op, err := p.getOperation(ctx, batchID)
	if err != nil {
		return "", fmt.Errorf("gemini batch status: %w", err)
	}

	status, ok := geminiStatusMap[op.Metadata.State]
	if !ok {
		status = StatusProcessing
	}

	p.logger.Debug("gemini batch status", "batch_id", batchID, "status", status)

	return status, nil
}

// BatchResults implements BatchCapable.
func (p *Gemini) BatchResults(ctx context.Context, batchID string) ([]BatchResult, error) {
	op, err := p.getOperation(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("gemini batch results: %w", err)
	}

	var results []BatchResult

	for _, entry := range op.Response.InlinedResponses.InlinedResponses {
		if entry.Error != nil {
			results = append(results, BatchResult{CustomID: entry.Metadata.Key, Err: entry.Error.Message})

			continue
		}

		if entry.Response == nil {
			results = append(results, BatchResult{CustomID: entry.Metadata.Key, Err: "no response for entry"})

			continue
		}

		text, err := geminiTextOf(entry.Response)
		if err != nil {
			results = append(results, BatchResult{CustomID: entry.Metadata.Key, Err: err.Error()})

			continue
		}

		results = append(results, BatchResult{
			CustomID: entry.Metadata.Key,
			Content:  text,
			Usage:    geminiUsageOf(entry.Response.UsageMetadata),
		})
	}

	p.logger.Info("retrieved gemini batch results", "batch_id", batchID, "results", len(results))

	return results, nil
}

func (p *Gemini) getOperation(ctx context.Context, batchID string) (*geminiOperation, error) {
	var op geminiOperation

	err := p.getJSON(ctx, "/v1beta/"+batchID, &op)
	if err != nil {
		return nil, err
	}

	return &op, nil
}

func (p *Gemini) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")

	return p.send(req, out)
}

func (p *Gemini) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}

	return p.send(req, out)
}

func (p *Gemini) send(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}

	return nil
}
