package fetch

import (
	"regexp"
	"strings"
)

// botSuffixes mark automation accounts by login convention.
var botSuffixes = []string{"[bot]", "-bot"}

// noisePatterns match one-line approval comments that carry no reviewable
// content.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^LGTM!?$`),
	regexp.MustCompile(`^\+1$`),
	regexp.MustCompile(`^:shipit:$`),
	regexp.MustCompile(`(?i)^Ship it!?$`),
}

// isBot reports whether a login belongs to an automation account.
func isBot(login string) bool {
	lower := strings.ToLower(login)

	for _, suffix := range botSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return false
}

// isNoiseComment reports whether a comment should be dropped: bot author,
// empty body, or a one-line approval.
func isNoiseComment(author, body string) bool {
	if isBot(author) {
		return true
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return true
	}

	for _, pattern := range noisePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}

	return false
}

// isNoiseReview reports whether a review should be dropped. Only bot authors
// are filtered; an empty-body approval still records the review decision.
func isNoiseReview(author string) bool {
	return isBot(author)
}
