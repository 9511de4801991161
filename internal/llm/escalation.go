package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/workrecap/workrecap/internal/llm/provider"
	"github.com/workrecap/workrecap/pkg/recap"
)

// confidenceThreshold is the self-assessed confidence below which the
// escalation model takes over.
const confidenceThreshold = 0.7

const escalationSystemPrompt = `Complete the user's task and self-assess. Respond with JSON:
{"needs_escalation": bool, "confidence": 0.0-1.0, "reason": "...", "response": "your answer"}`

const escalationUserFormat = "Instructions: %s\n\n---\n\n%s"

// decisionSchema pins the self-assessment shape; an invalid document
// falls back to the raw response.
const decisionSchema = `{
	"type": "object",
	"required": ["response", "confidence"],
	"properties": {
		"needs_escalation": {"type": "boolean"},
		"confidence": {"type": "number"},
		"reason": {"type": "string"},
		"response": {"type": "string"}
	}
}`

type escalationDecision struct {
	NeedsEscalation bool    `json:"needs_escalation"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
	Response        string  `json:"response"`
}

// escalationHandler runs the adaptive escalation protocol: the base model
// answers with a self-assessment, and low-confidence answers that ask for
// escalation are redone by the escalation model with the original prompt.
type escalationHandler struct {
	base            provider.Provider
	baseModel       string
	escalation      provider.Provider
	escalationModel string
	logger          *slog.Logger
}

func (h *escalationHandler) chat(ctx context.Context, systemPrompt, userContent string, opts provider.ChatOptions) (string, recap.TokenUsage, error) {
	wrapped := fmt.Sprintf(escalationUserFormat, systemPrompt, userContent)

	baseText, baseUsage, err := h.base.Chat(ctx, h.baseModel, escalationSystemPrompt, wrapped, provider.ChatOptions{
		JSONMode: true,
	})
	if err != nil {
		return "", recap.TokenUsage{}, err
	}

	decision, ok := parseDecision(baseText)
	if !ok {
		h.logger.Warn("escalation decision parse failed, using raw response")

		return baseText, baseUsage, nil
	}

	if decision.NeedsEscalation && decision.Confidence < confidenceThreshold {
		h.logger.Info("escalating",
			"confidence", decision.Confidence, "reason", decision.Reason)

		escText, escUsage, escErr := h.escalation.Chat(ctx, h.escalationModel, systemPrompt, userContent, opts)
		if escErr != nil {
			return "", recap.TokenUsage{}, escErr
		}

		return escText, baseUsage.Add(escUsage), nil
	}

	return decision.Response, baseUsage, nil
}

// parseDecision validates and decodes the self-assessment JSON.
func parseDecision(text string) (escalationDecision, bool) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(decisionSchema),
		gojsonschema.NewStringLoader(text),
	)
	if err != nil || !result.Valid() {
		return escalationDecision{}, false
	}

	var decision escalationDecision

	unmarshalErr := json.Unmarshal([]byte(text), &decision)
	if unmarshalErr != nil {
		return escalationDecision{}, false
	}

	return decision, true
}
