package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/workrecap/workrecap/pkg/recap"
)

// reportSeparatorWidth is the rule width above the totals line.
const reportSeparatorWidth = 50

// UsageTracker aggregates token usage and estimated cost per
// provider/model pair. Safe for concurrent use.
type UsageTracker struct {
	mu      sync.Mutex
	pricing *PricingTable
	usages  map[string]recap.ModelUsage
}

// NewUsageTracker creates a tracker. The pricing table may be nil, in
// which case no costs are estimated.
func NewUsageTracker(pricing *PricingTable) *UsageTracker {
	return &UsageTracker{
		pricing: pricing,
		usages:  make(map[string]recap.ModelUsage),
	}
}

// Record adds one call's usage under the provider/model key.
func (t *UsageTracker) Record(providerName, model string, usage recap.TokenUsage) {
	var cost float64
	if t.pricing != nil {
		cost = t.pricing.EstimateCost(providerName, model, usage)
	}

	key := providerName + "/" + model

	t.mu.Lock()
	defer t.mu.Unlock()

	mu, ok := t.usages[key]
	if !ok {
		mu = recap.ModelUsage{Provider: providerName, Model: model}
	}

	mu.PromptTokens += usage.PromptTokens
	mu.CompletionTokens += usage.CompletionTokens
	mu.TotalTokens += usage.TotalTokens
	mu.CallCount += usage.CallCount
	mu.EstimatedCostUSD += cost
	mu.CacheReadTokens += usage.CacheReadTokens
	mu.CacheWriteTokens += usage.CacheWriteTokens

	t.usages[key] = mu
}

// ModelUsages returns a snapshot of per-model usage keyed by
// "provider/model".
func (t *UsageTracker) ModelUsages() map[string]recap.ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]recap.ModelUsage, len(t.usages))
	for key, mu := range t.usages {
		out[key] = mu
	}

	return out
}

// TotalUsage aggregates token counts across all models.
func (t *UsageTracker) TotalUsage() recap.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total recap.TokenUsage

	for _, mu := range t.usages {
		total = total.Add(recap.TokenUsage{
			PromptTokens:     mu.PromptTokens,
			CompletionTokens: mu.CompletionTokens,
			TotalTokens:      mu.TotalTokens,
			CallCount:        mu.CallCount,
		})
	}

	return total
}

// MergeToFile folds the tracker's usage into the JSON file at path,
// accumulating counters across runs under the "provider/model" key. A
// missing file starts empty; an empty tracker leaves the file untouched.
func (t *UsageTracker) MergeToFile(path string) error {
	snapshot := t.ModelUsages()
	if len(snapshot) == 0 {
		return nil
	}

	accumulated := make(map[string]recap.ModelUsage)

	err := recap.LoadJSON(path, &accumulated)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for key, mu := range snapshot {
		prev, ok := accumulated[key]
		if !ok {
			prev = recap.ModelUsage{Provider: mu.Provider, Model: mu.Model}
		}

		prev.PromptTokens += mu.PromptTokens
		prev.CompletionTokens += mu.CompletionTokens
		prev.TotalTokens += mu.TotalTokens
		prev.CallCount += mu.CallCount
		prev.EstimatedCostUSD += mu.EstimatedCostUSD
		prev.CacheReadTokens += mu.CacheReadTokens
		prev.CacheWriteTokens += mu.CacheWriteTokens

		accumulated[key] = prev
	}

	return recap.SaveJSON(path, accumulated)
}

// FormatReport renders a human-readable usage report: one line per model
// plus a totals line when more than one model was used.
func (t *UsageTracker) FormatReport() string {
	snapshot := t.ModelUsages()
	if len(snapshot) == 0 {
		return "No LLM usage recorded."
	}

	lines := []string{"LLM Usage Report:"}

	var totals recap.ModelUsage

	for _, key := range sortedKeys(snapshot) {
		mu := snapshot[key]
		lines = append(lines, fmt.Sprintf("  %s / %s: %s, %s+%s=%s tokens%s",
			mu.Provider, mu.Model,
			callsLabel(mu.CallCount),
			humanize.Comma(int64(mu.PromptTokens)),
			humanize.Comma(int64(mu.CompletionTokens)),
			humanize.Comma(int64(mu.TotalTokens)),
			costLabel(mu.EstimatedCostUSD)))

		if mu.CacheReadTokens > 0 || mu.CacheWriteTokens > 0 {
			lines = append(lines, cacheLine(mu.CacheReadTokens, mu.CacheWriteTokens))
		}

		totals.CallCount += mu.CallCount
		totals.PromptTokens += mu.PromptTokens
		totals.CompletionTokens += mu.CompletionTokens
		totals.TotalTokens += mu.TotalTokens
		totals.EstimatedCostUSD += mu.EstimatedCostUSD
		totals.CacheReadTokens += mu.CacheReadTokens
		totals.CacheWriteTokens += mu.CacheWriteTokens
	}

	if len(snapshot) > 1 {
		lines = append(lines, "  "+strings.Repeat("─", reportSeparatorWidth))
		lines = append(lines, fmt.Sprintf("  Total: %s, %s+%s=%s tokens%s",
			callsLabel(totals.CallCount),
			humanize.Comma(int64(totals.PromptTokens)),
			humanize.Comma(int64(totals.CompletionTokens)),
			humanize.Comma(int64(totals.TotalTokens)),
			costLabel(totals.EstimatedCostUSD)))

		if totals.CacheReadTokens > 0 || totals.CacheWriteTokens > 0 {
			lines = append(lines, cacheLine(totals.CacheReadTokens, totals.CacheWriteTokens))
		}
	}

	return strings.Join(lines, "\n")
}

func callsLabel(n int) string {
	if n == 1 {
		return "1 call"
	}

	return fmt.Sprintf("%d calls", n)
}

func costLabel(cost float64) string {
	if cost <= 0 {
		return ""
	}

	return fmt.Sprintf(" (~$%.3f)", cost)
}

func cacheLine(read, write int) string {
	return fmt.Sprintf("    cache: %s read + %s write",
		humanize.Comma(int64(read)), humanize.Comma(int64(write)))
}
