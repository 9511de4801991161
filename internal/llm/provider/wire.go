package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/workrecap/workrecap/pkg/recap"
)

const defaultChatTimeout = 120 * time.Second

// openAIWire is a minimal client for the OpenAI-compatible REST surface:
// chat completions, model listing, and file-based batches. It backs both
// the hosted OpenAI adapter and the self-hosted "custom" adapter.
type openAIWire struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func newOpenAIWire(baseURL, apiKey string, timeout time.Duration) *openAIWire {
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}

	return &openAIWire{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
}

type wireUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

// buildChatBody assembles the request payload shared by synchronous chat
// calls and batch JSONL lines.
func buildChatBody(model, systemPrompt, userContent string, opts ChatOptions) chatRequest {
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	}

	if opts.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}

	return req
}

// usageFromWire converts the wire usage block, tolerating its absence:
// some self-hosted models omit usage entirely.
func usageFromWire(wu *wireUsage) recap.TokenUsage {
	usage := recap.TokenUsage{CallCount: 1}
	if wu == nil {
		return usage
	}

	usage.PromptTokens = wu.PromptTokens
	usage.CompletionTokens = wu.CompletionTokens
	usage.TotalTokens = wu.TotalTokens

	if wu.PromptTokensDetails != nil {
		usage.CacheReadTokens = wu.PromptTokensDetails.CachedTokens
	}

	return usage
}

func (w *openAIWire) chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, recap.TokenUsage, error) {
	var resp chatResponse

	err := w.postJSON(ctx, "/chat/completions", buildChatBody(model, systemPrompt, userContent, opts), &resp)
	if err != nil {
		return "", recap.TokenUsage{}, err
	}

	if len(resp.Choices) == 0 {
		return "", recap.TokenUsage{}, fmt.Errorf("chat completions: response has no choices")
	}

	return resp.Choices[0].Message.Content, usageFromWire(resp.Usage), nil
}

type wireModel struct {
	ID string `json:"id"`
}

func (w *openAIWire) listModels(ctx context.Context, providerName string) ([]ModelInfo, error) {
	var resp struct {
		Data []wireModel `json:"data"`
	}

	err := w.getJSON(ctx, "/models", &resp)
	if err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, ModelInfo{ID: m.ID, Name: m.ID, Provider: providerName})
	}

	return models, nil
}

// batchLine is one JSONL line of a batch input file.
type batchLine struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     chatRequest `json:"body"`
}

// buildBatchJSONL renders batch requests into the JSONL upload payload.
func buildBatchJSONL(requests []BatchRequest) ([]byte, error) {
	var buf bytes.Buffer

	for _, req := range requests {
		line := batchLine{
			CustomID: req.CustomID,
			Method:   http.MethodPost,
			URL:      "/v1/chat/completions",
			Body: buildChatBody(req.Model, req.SystemPrompt, req.UserContent, ChatOptions{
				JSONMode:  req.JSONMode,
				MaxTokens: req.MaxTokens,
			}),
		}

		data, err := json.Marshal(line)
		if err != nil {
			return nil, fmt.Errorf("marshal batch line %s: %w", req.CustomID, err)
		}

		buf.Write(data)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// uploadBatchFile uploads a JSONL payload with purpose=batch and returns the file ID.
func (w *openAIWire) uploadBatchFile(ctx context.Context, jsonl []byte) (string, error) {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	err := mw.WriteField("purpose", "batch")
	if err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}

	part, err := mw.CreateFormFile("file", "batch_input.jsonl")
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}

	_, err = part.Write(jsonl)
	if err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}

	err = mw.Close()
	if err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("build file upload request: %w", err)
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	var uploaded struct {
		ID string `json:"id"`
	}

	err = w.send(req, &uploaded)
	if err != nil {
		return "", err
	}

	return uploaded.ID, nil
}

type wireBatch struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	OutputFileID string `json:"output_file_id"`
}

// createBatch starts a 24h batch over an uploaded input file.
func (w *openAIWire) createBatch(ctx context.Context, inputFileID string) (string, error) {
	payload := map[string]string{
		"input_file_id":     inputFileID,
		"endpoint":          "/v1/chat/completions",
		"completion_window": "24h",
	}

	var batch wireBatch

	err := w.postJSON(ctx, "/batches", payload, &batch)
	if err != nil {
		return "", err
	}

	return batch.ID, nil
}

func (w *openAIWire) getBatch(ctx context.Context, batchID string) (wireBatch, error) {
	var batch wireBatch

	err := w.getJSON(ctx, "/batches/"+batchID, &batch)
	if err != nil {
		return wireBatch{}, err
	}

	return batch, nil
}

// fileContent downloads a file's raw bytes (batch output JSONL).
func (w *openAIWire) fileContent(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/files/"+fileID+"/content", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build file content request: %w", err)
	}

	w.authorize(req)

	resp, err := w.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: status %d: %s", fileID, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return data, nil
}

// batchOutputLine is one JSONL line of a batch output file.
type batchOutputLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
}

// parseBatchOutput decodes a batch output JSONL payload into results.
func parseBatchOutput(data []byte) ([]BatchResult, error) {
	var results []BatchResult

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry batchOutputLine

		err := json.Unmarshal([]byte(line), &entry)
		if err != nil {
			return nil, fmt.Errorf("parse batch output line: %w", err)
		}

		if entry.Response.StatusCode == http.StatusOK {
			var body chatResponse

			err = json.Unmarshal(entry.Response.Body, &body)
			if err != nil {
				return nil, fmt.Errorf("parse batch result body for %s: %w", entry.CustomID, err)
			}

			var content string
			if len(body.Choices) > 0 {
				content = body.Choices[0].Message.Content
			}

			results = append(results, BatchResult{
				CustomID: entry.CustomID,
				Content:  content,
				Usage:    usageFromWire(body.Usage),
			})

			continue
		}

		var failure struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}

		_ = json.Unmarshal(entry.Response.Body, &failure)

		message := failure.Error.Message
		if message == "" {
			message = "Unknown error"
		}

		results = append(results, BatchResult{CustomID: entry.CustomID, Err: message})
	}

	return results, nil
}

func (w *openAIWire) authorize(req *http.Request) {
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}
}

func (w *openAIWire) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")

	return w.send(req, out)
}

func (w *openAIWire) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}

	return w.send(req, out)
}

func (w *openAIWire) send(req *http.Request, out any) error {
	w.authorize(req)

	resp, err := w.httpc.Do(req)
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
