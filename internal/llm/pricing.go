package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/workrecap/workrecap/pkg/recap"
)

// Cache-aware rate factors relative to the input rate: cache reads bill
// at a steep discount, cache writes at a surcharge.
const (
	cacheReadRateFactor  = 0.1
	cacheWriteRateFactor = 1.25
)

const tokensPerMillion = 1_000_000

// pricingRate is USD per one million tokens.
type pricingRate struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// builtinPricing carries rates for the commonly routed models.
// Unknown models estimate to zero cost.
var builtinPricing = map[string]map[string]pricingRate{
	"openai": {
		"gpt-5":        {Input: 1.25, Output: 10.00},
		"gpt-5-mini":   {Input: 0.25, Output: 2.00},
		"gpt-5-nano":   {Input: 0.05, Output: 0.40},
		"gpt-4o":       {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
		"gpt-4.1":      {Input: 2.00, Output: 8.00},
		"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
		"gpt-4.1-nano": {Input: 0.10, Output: 0.40},
		"o3":           {Input: 2.00, Output: 8.00},
		"o3-mini":      {Input: 1.10, Output: 4.40},
		"o4-mini":      {Input: 1.10, Output: 4.40},
	},
	"anthropic": {
		"claude-opus-4-6":   {Input: 5.00, Output: 25.00},
		"claude-opus-4-5":   {Input: 5.00, Output: 25.00},
		"claude-opus-4-1":   {Input: 15.00, Output: 75.00},
		"claude-opus-4":     {Input: 15.00, Output: 75.00},
		"claude-sonnet-4-6": {Input: 3.00, Output: 15.00},
		"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
		"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
		"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
		"claude-haiku-3-5":  {Input: 0.80, Output: 4.00},
		"claude-haiku-3":    {Input: 0.25, Output: 1.25},
	},
	"gemini": {
		"gemini-3-pro":          {Input: 2.00, Output: 12.00},
		"gemini-3-flash":        {Input: 0.50, Output: 3.00},
		"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
		"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
		"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
		"gemini-2.0-flash":      {Input: 0.10, Output: 0.40},
		"gemini-2.0-flash-lite": {Input: 0.075, Output: 0.30},
	},
}

// PricingTable resolves per-model token rates for cost estimation.
type PricingTable struct {
	rates map[string]map[string]pricingRate
}

// NewPricingTable returns a table with the built-in rates.
func NewPricingTable() *PricingTable {
	return &PricingTable{rates: builtinPricing}
}

// LoadPricingTable reads rates from a TOML file laid out as [provider]
// tables of `"model" = { input = X, output = Y }` in USD per million
// tokens. A missing file yields an empty table, so every cost estimates
// to zero.
func LoadPricingTable(path string) (*PricingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PricingTable{rates: map[string]map[string]pricingRate{}}, nil
		}

		return nil, fmt.Errorf("read pricing table: %w", err)
	}

	rates := map[string]map[string]pricingRate{}

	unmarshalErr := toml.Unmarshal(data, &rates)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("parse pricing table %s: %w", path, unmarshalErr)
	}

	return &PricingTable{rates: rates}, nil
}

// GetRate returns the (input, output) rates in USD per million tokens.
// Models with trailing date suffixes match their base name.
func (p *PricingTable) GetRate(providerName, model string) (inputRate, outputRate float64, ok bool) {
	providerRates, found := p.rates[providerName]
	if !found {
		return 0, 0, false
	}

	if rate, exact := providerRates[model]; exact {
		return rate.Input, rate.Output, true
	}

	if rate, normalized := providerRates[normalizeModelName(model)]; normalized {
		return rate.Input, rate.Output, true
	}

	return 0, 0, false
}

// EstimateCost estimates one call's USD cost. Prompt tokens served from
// cache bill at the discounted input rate; cache writes add a surcharge
// on the input rate. Unknown models cost zero.
func (p *PricingTable) EstimateCost(providerName, model string, usage recap.TokenUsage) float64 {
	inputRate, outputRate, ok := p.GetRate(providerName, model)
	if !ok {
		return 0
	}

	uncached := usage.PromptTokens - usage.CacheReadTokens
	if uncached < 0 {
		uncached = 0
	}

	cost := float64(uncached)*inputRate +
		float64(usage.CacheReadTokens)*inputRate*cacheReadRateFactor +
		float64(usage.CacheWriteTokens)*inputRate*cacheWriteRateFactor +
		float64(usage.CompletionTokens)*outputRate

	return cost / tokensPerMillion
}

// normalizeModelName strips trailing 8-digit date suffixes, so
// "claude-sonnet-4-5-20250929" matches "claude-sonnet-4-5".
func normalizeModelName(model string) string {
	parts := strings.Split(model, "-")

	for len(parts) > 0 {
		last := parts[len(parts)-1]
		if len(last) != 8 || !allDigits(last) {
			break
		}

		parts = parts[:len(parts)-1]
	}

	return strings.Join(parts, "-")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
