// Package llm routes chat and batch completions to configured providers.
// A TOML file maps tasks to provider/model pairs; the router resolves the
// strategy mode, memoizes provider clients, and feeds every call's token
// usage into the tracker.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/workrecap/workrecap/internal/llm/provider"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/pkg/recap"
)

// Provider names accepted in [providers.NAME] tables.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCustom    = "custom"
)

// Batch wait tuning. The timeout grows with batch size so a full-year
// run is not cut off at the one-hour mark, and the poll interval starts
// fast to catch quick batches before stretching out.
const (
	batchTimeoutBase       = 5 * time.Minute
	batchTimeoutPerRequest = 30 * time.Second
	batchTimeoutMax        = 4 * time.Hour
	batchPollIntervalMin   = 5 * time.Second
	batchPollIntervalMax   = 60 * time.Second
)

// ChatCall carries the per-call routing and generation options.
type ChatCall struct {
	// Task selects the provider/model route; empty means "default".
	Task string
	// JSONMode constrains the output to valid JSON.
	JSONMode bool
	// MaxTokens overrides the task's configured output cap when positive.
	MaxTokens int
	// CacheSystemPrompt enables provider-side prompt caching.
	CacheSystemPrompt bool
}

// BatchItem is one request in a batch submission. The model comes from
// the task configuration at submit time.
type BatchItem struct {
	CustomID          string
	SystemPrompt      string
	UserContent       string
	JSONMode          bool
	MaxTokens         int
	CacheSystemPrompt bool
}

// WaitOptions tunes WaitForBatch polling.
type WaitOptions struct {
	// Timeout bounds the whole wait. Zero derives it from BatchSize.
	Timeout time.Duration
	// BatchSize scales the derived timeout.
	BatchSize int
	// Progress, when set, receives a status line per poll.
	Progress func(string)
}

// BatchRecorder persists submitted batch jobs so an interrupted wait can
// be resumed after a restart. Satisfied by *state.BatchStateStore.
type BatchRecorder interface {
	SaveJob(batchID, provider, task string, customIDs []string) error
	UpdateStatus(batchID, status string) error
}

// Router resolves tasks to provider/model pairs and dispatches chat and
// batch calls. Safe for concurrent use.
type Router struct {
	cfg     *ProviderConfig
	tracker *UsageTracker
	metrics *observability.Metrics
	logger  *slog.Logger

	providerMu sync.RWMutex
	providers  map[string]provider.Provider

	usageMu sync.Mutex
	usage   recap.TokenUsage

	batches BatchRecorder

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRouter creates a Router. The tracker and metrics may be nil.
func NewRouter(cfg *ProviderConfig, tracker *UsageTracker, metrics *observability.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		cfg:       cfg,
		tracker:   tracker,
		metrics:   metrics,
		logger:    logger,
		providers: make(map[string]provider.Provider),
		sleep:     sleepContext,
	}
}

// Config returns the provider configuration the router was built with.
func (r *Router) Config() *ProviderConfig { return r.cfg }

// RecordBatches registers a store for submitted batch jobs. Call before
// the router is shared between goroutines.
func (r *Router) RecordBatches(rec BatchRecorder) { r.batches = rec }

// Tracker returns the per-model usage tracker, if configured.
func (r *Router) Tracker() *UsageTracker { return r.tracker }

// Usage returns the aggregate token usage across all calls.
func (r *Router) Usage() recap.TokenUsage {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()

	return r.usage
}

// Chat sends one completion, routed per the task's configuration and the
// strategy mode. Provider failures are wrapped into a single router error.
func (r *Router) Chat(ctx context.Context, systemPrompt, userContent string, call ChatCall) (string, error) {
	task := call.Task
	if task == "" {
		task = defaultTask
	}

	taskCfg, err := r.cfg.TaskFor(task)
	if err != nil {
		return "", err
	}

	strategy := r.cfg.StrategyMode()
	providerName, model, useEscalation := resolveModel(taskCfg, strategy)

	maxTokens := call.MaxTokens
	if maxTokens <= 0 {
		maxTokens = taskCfg.MaxTokens
	}

	r.logger.Info("llm call",
		"task", task, "provider", providerName, "model", model, "strategy", strategy)
	r.logger.Debug("llm request",
		"system_chars", len(systemPrompt), "user_chars", len(userContent))

	p, err := r.ProviderFor(providerName)
	if err != nil {
		return "", err
	}

	opts := provider.ChatOptions{
		JSONMode:          call.JSONMode,
		MaxTokens:         maxTokens,
		CacheSystemPrompt: call.CacheSystemPrompt,
	}

	var (
		text  string
		usage recap.TokenUsage
	)

	if useEscalation && taskCfg.EscalationModel != "" {
		handler := &escalationHandler{
			base:            p,
			baseModel:       taskCfg.Model,
			escalation:      p,
			escalationModel: taskCfg.EscalationModel,
			logger:          r.logger,
		}
		text, usage, err = handler.chat(ctx, systemPrompt, userContent, opts)
	} else {
		start := time.Now()

		text, usage, err = p.Chat(ctx, model, systemPrompt, userContent, opts)
		if err == nil {
			r.logger.Info("llm tokens",
				"prompt", usage.PromptTokens,
				"completion", usage.CompletionTokens,
				"total", usage.TotalTokens,
				"elapsed", time.Since(start).Round(time.Millisecond))
		}
	}

	if err != nil {
		r.metrics.RecordLLMRequest(ctx, providerName, model, "error")

		return "", fmt.Errorf("llm api call failed: %w", err)
	}

	r.recordUsage(ctx, providerName, model, usage)
	r.logger.Debug("llm response", "chars", len(text))

	return text, nil
}

func (r *Router) recordUsage(ctx context.Context, providerName, model string, usage recap.TokenUsage) {
	r.usageMu.Lock()
	r.usage = r.usage.Add(usage)
	r.usageMu.Unlock()

	if r.tracker != nil {
		r.tracker.Record(providerName, model, usage)
	}

	r.metrics.RecordLLMRequest(ctx, providerName, model, "success")
	r.metrics.AddTokens(ctx, providerName, model, "prompt", int64(usage.PromptTokens))
	r.metrics.AddTokens(ctx, providerName, model, "completion", int64(usage.CompletionTokens))
	r.metrics.AddTokens(ctx, providerName, model, "cache_read", int64(usage.CacheReadTokens))
	r.metrics.AddTokens(ctx, providerName, model, "cache_write", int64(usage.CacheWriteTokens))
}

// resolveModel picks the provider, model, and escalation flag for a task
// under the given strategy mode.
func resolveModel(tc TaskConfig, strategy string) (providerName, model string, escalate bool) {
	switch strategy {
	case StrategyPremium:
		model = tc.Model
		if tc.EscalationModel != "" {
			model = tc.EscalationModel
		}

		return tc.Provider, model, false
	case StrategyStandard, StrategyAdaptive:
		return tc.Provider, tc.Model, tc.EscalationModel != ""
	default:
		return tc.Provider, tc.Model, false
	}
}

// ProviderFor returns the memoized provider instance for a configured
// name, constructing it on first use.
func (r *Router) ProviderFor(name string) (provider.Provider, error) {
	r.providerMu.RLock()
	p, ok := r.providers[name]
	r.providerMu.RUnlock()

	if ok {
		return p, nil
	}

	r.providerMu.Lock()
	defer r.providerMu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}

	entry, err := r.cfg.ProviderEntryFor(name)
	if err != nil {
		return nil, err
	}

	p, err = newProvider(name, entry, r.logger)
	if err != nil {
		return nil, err
	}

	r.providers[name] = p

	return p, nil
}

func newProvider(name string, entry ProviderEntry, logger *slog.Logger) (provider.Provider, error) {
	switch name {
	case ProviderOpenAI:
		return provider.NewOpenAI(entry.APIKey, logger), nil
	case ProviderAnthropic:
		return provider.NewAnthropic(entry.APIKey, logger), nil
	case ProviderGemini:
		return provider.NewGemini(entry.APIKey, logger), nil
	case ProviderCustom:
		return provider.NewCustom(entry.APIKey, entry.BaseURL, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// SubmitBatch submits a batch job through the task's provider and returns
// the batch id.
func (r *Router) SubmitBatch(ctx context.Context, task string, items []BatchItem) (string, error) {
	taskCfg, err := r.cfg.TaskFor(task)
	if err != nil {
		return "", err
	}

	bp, err := r.batchProvider(taskCfg)
	if err != nil {
		return "", err
	}

	requests := make([]provider.BatchRequest, 0, len(items))
	customIDs := make([]string, 0, len(items))

	for _, item := range items {
		maxTokens := item.MaxTokens
		if maxTokens <= 0 {
			maxTokens = taskCfg.MaxTokens
		}

		requests = append(requests, provider.BatchRequest{
			CustomID:          item.CustomID,
			Model:             taskCfg.Model,
			SystemPrompt:      item.SystemPrompt,
			UserContent:       item.UserContent,
			JSONMode:          item.JSONMode,
			MaxTokens:         maxTokens,
			CacheSystemPrompt: item.CacheSystemPrompt,
		})
		customIDs = append(customIDs, item.CustomID)
	}

	r.logger.Info("submitting batch",
		"task", task, "provider", taskCfg.Provider, "requests", len(requests))

	batchID, err := bp.SubmitBatch(ctx, requests)
	if err != nil {
		return "", err
	}

	if r.batches != nil {
		saveErr := r.batches.SaveJob(batchID, taskCfg.Provider, task, customIDs)
		if saveErr != nil {
			r.logger.Warn("batch state save failed", "batch_id", batchID, "error", saveErr)
		}
	}

	return batchID, nil
}

// BatchStatus returns the current status of a batch job.
func (r *Router) BatchStatus(ctx context.Context, task, batchID string) (provider.Status, error) {
	bp, err := r.batchProviderForTask(task)
	if err != nil {
		return "", err
	}

	return bp.BatchStatus(ctx, batchID)
}

// BatchResults retrieves the results of a completed batch.
func (r *Router) BatchResults(ctx context.Context, task, batchID string) ([]provider.BatchResult, error) {
	bp, err := r.batchProviderForTask(task)
	if err != nil {
		return nil, err
	}

	return bp.BatchResults(ctx, batchID)
}

// WaitForBatch polls until the batch reaches a terminal status and
// returns its results. The poll interval stretches from five seconds to
// one minute as the deadline approaches.
func (r *Router) WaitForBatch(ctx context.Context, task, batchID string, opts WaitOptions) ([]provider.BatchResult, error) {
	bp, err := r.batchProviderForTask(task)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = computeBatchTimeout(opts.BatchSize)
	}

	start := time.Now()

	for {
		status, statusErr := bp.BatchStatus(ctx, batchID)
		if statusErr != nil {
			return nil, statusErr
		}

		switch status {
		case provider.StatusCompleted:
			r.markBatch(batchID, status)

			return bp.BatchResults(ctx, batchID)
		case provider.StatusFailed, provider.StatusExpired:
			r.markBatch(batchID, status)

			return nil, fmt.Errorf("batch %s failed with status: %s", batchID, status)
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			return nil, fmt.Errorf("batch %s timed out after %s (status: %s)", batchID, timeout, status)
		}

		if opts.Progress != nil {
			opts.Progress(fmt.Sprintf("batch %s: %s (elapsed %s)",
				batchID, status, elapsed.Round(time.Second)))
		}

		sleepErr := r.sleep(ctx, adaptivePollInterval(elapsed, timeout))
		if sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// markBatch records a terminal status in the batch store, if one is set.
func (r *Router) markBatch(batchID string, status provider.Status) {
	if r.batches == nil {
		return
	}

	err := r.batches.UpdateStatus(batchID, string(status))
	if err != nil {
		r.logger.Warn("batch state update failed", "batch_id", batchID, "error", err)
	}
}

func (r *Router) batchProviderForTask(task string) (provider.BatchCapable, error) {
	taskCfg, err := r.cfg.TaskFor(task)
	if err != nil {
		return nil, err
	}

	return r.batchProvider(taskCfg)
}

func (r *Router) batchProvider(taskCfg TaskConfig) (provider.BatchCapable, error) {
	p, err := r.ProviderFor(taskCfg.Provider)
	if err != nil {
		return nil, err
	}

	bp, ok := p.(provider.BatchCapable)
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", taskCfg.Provider, provider.ErrBatchUnsupported)
	}

	return bp, nil
}

// computeBatchTimeout derives the wait deadline from the batch size:
// five minutes plus thirty seconds per request, capped at four hours.
func computeBatchTimeout(batchSize int) time.Duration {
	timeout := batchTimeoutBase + time.Duration(batchSize)*batchTimeoutPerRequest
	if timeout > batchTimeoutMax {
		return batchTimeoutMax
	}

	return timeout
}

// adaptivePollInterval interpolates the poll interval between the minimum
// and maximum by elapsed fraction of the timeout.
func adaptivePollInterval(elapsed, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return batchPollIntervalMax
	}

	frac := float64(elapsed) / float64(timeout)
	if frac > 1 {
		frac = 1
	}

	if frac < 0 {
		frac = 0
	}

	return batchPollIntervalMin + time.Duration(frac*float64(batchPollIntervalMax-batchPollIntervalMin))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
