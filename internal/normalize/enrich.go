package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/xeipuuv/gojsonschema"

	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/pkg/recap"
)

const (
	taskEnrich = "enrich"

	// splitMarker divides prompts/enrich.md: the static instructions above
	// it become the cacheable system prompt, the templated part below it
	// renders per call.
	splitMarker = "<!-- SPLIT -->"

	// fallbackEnrichSystem serves as the system prompt when the template
	// has no split marker.
	fallbackEnrichSystem = "You are a code change classifier."
)

// enrichmentSchema pins the classifier response: an array of entries
// addressed by activity index.
const enrichmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["index"],
		"properties": {
			"index": {"type": "integer"},
			"change_summary": {"type": "string"},
			"intent": {"type": "string"}
		}
	}
}`

type enrichmentEntry struct {
	Index         int    `json:"index"`
	ChangeSummary string `json:"change_summary"`
	Intent        string `json:"intent"`
}

// enrichPrompt is one prepared enrichment request.
type enrichPrompt struct {
	system string
	user   string
}

// enrichActivities classifies the activities through one synchronous LLM
// call. Every failure shape logs and leaves the activities un-enriched.
func (n *Normalizer) enrichActivities(ctx context.Context, activities []recap.Activity) {
	if len(activities) == 0 {
		n.logger.Info("skipping enrichment: no activities")

		return
	}

	if n.llm == nil {
		n.logger.Info("skipping enrichment: no llm configured")

		return
	}

	prompt, err := n.buildEnrichPrompt(activities)
	if err != nil {
		n.logger.Warn("enrich prompt unavailable, skipping enrichment", "error", err)

		return
	}

	n.logger.Info("enriching activities", "count", len(activities))

	text, err := n.llm.Chat(ctx, prompt.system, prompt.user, llm.ChatCall{
		Task:              taskEnrich,
		JSONMode:          true,
		CacheSystemPrompt: true,
	})
	if err != nil {
		n.logger.Warn("enrichment failed, continuing without it", "error", err)

		return
	}

	err = applyEnrichment(activities, text)
	if err != nil {
		n.logger.Warn("enrichment response rejected", "error", err)
	}
}

// buildEnrichPrompt loads the enrich template and renders the activity
// list into it. Without a split marker the whole template renders as user
// content under a generic system prompt.
func (n *Normalizer) buildEnrichPrompt(activities []recap.Activity) (enrichPrompt, error) {
	path := n.cfg.PromptPath(taskEnrich)

	raw, err := os.ReadFile(path)
	if err != nil {
		return enrichPrompt{}, err
	}

	text := string(raw)

	static, dynamic, found := strings.Cut(text, splitMarker)
	if !found {
		rendered, renderErr := renderActivityTemplate(text, activities)
		if renderErr != nil {
			return enrichPrompt{}, fmt.Errorf("render %s: %w", path, renderErr)
		}

		return enrichPrompt{system: fallbackEnrichSystem, user: rendered}, nil
	}

	rendered, err := renderActivityTemplate(dynamic, activities)
	if err != nil {
		return enrichPrompt{}, fmt.Errorf("render %s: %w", path, err)
	}

	return enrichPrompt{
		system: strings.TrimSpace(static),
		user:   strings.TrimSpace(rendered),
	}, nil
}

// renderActivityTemplate executes a text/template with the activities
// bound to .Activities.
func renderActivityTemplate(text string, activities []recap.Activity) (string, error) {
	tmpl, err := template.New(taskEnrich).Parse(text)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, struct{ Activities []recap.Activity }{activities})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// applyEnrichment decodes the classifier response and writes each entry
// onto its activity. Entries with an out-of-range index are dropped.
// Anthropic batch results arrive without the "[" the JSON-mode prefill
// consumed, so a failed parse is retried with one prepended.
func applyEnrichment(activities []recap.Activity, text string) error {
	entries, err := parseEnrichment(text)
	if err != nil {
		retried, retryErr := parseEnrichment("[" + text)
		if retryErr != nil {
			return err
		}

		entries = retried
	}

	for _, entry := range entries {
		if entry.Index < 0 || entry.Index >= len(activities) {
			continue
		}

		activities[entry.Index].ChangeSummary = entry.ChangeSummary
		activities[entry.Index].Intent = entry.Intent
	}

	return nil
}

// parseEnrichment validates the response against the enrichment schema
// and decodes it.
func parseEnrichment(text string) ([]enrichmentEntry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(enrichmentSchema),
		gojsonschema.NewStringLoader(text),
	)
	if err != nil {
		return nil, fmt.Errorf("enrichment response is not valid json: %w", err)
	}

	if !result.Valid() {
		return nil, errors.New("enrichment response does not match schema")
	}

	var entries []enrichmentEntry

	err = json.Unmarshal([]byte(text), &entries)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
