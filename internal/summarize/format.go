package summarize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/workrecap/workrecap/pkg/recap"
	"github.com/workrecap/workrecap/pkg/textutil"
)

// Per-activity prompt budgets. One oversized PR must not crowd the rest of
// the day out of the context window.
const (
	maxFilesShown      = 10
	maxBodyRunes       = 1000
	maxReviewRunes     = 500
	maxPatchFiles      = 8
	maxPatchRunes      = 1000
	patchSectionBudget = 8000
	maxInlineContexts  = 10
	maxHunkRunes       = 300
	maxInlineBodyRunes = 300
)

// emptyActivities stands in for a day with nothing to report.
const emptyActivities = "(활동 없음)"

// formatActivities renders activities as the prompt-ready activity log,
// one block per activity.
func formatActivities(activities []recap.Activity) string {
	if len(activities) == 0 {
		return emptyActivities
	}

	blocks := make([]string, 0, len(activities))
	for _, act := range activities {
		blocks = append(blocks, formatActivity(act))
	}

	return strings.Join(blocks, "\n")
}

func formatActivity(act recap.Activity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "- [%s] %s (%s) +%d/-%d URL: %s",
		act.Kind, act.Title, act.Repo, act.Additions, act.Deletions, act.URL)

	if len(act.Files) > 0 {
		shown := act.Files
		if len(shown) > maxFilesShown {
			shown = shown[:maxFilesShown]
		}

		fmt.Fprintf(&b, "\n  Files: %s", strings.Join(shown, ", "))

		if len(act.Files) > maxFilesShown {
			fmt.Fprintf(&b, " 외 %d개", len(act.Files)-maxFilesShown)
		}
	}

	if act.Body != "" {
		fmt.Fprintf(&b, "\n  Body: %s", textutil.Clip(act.Body, maxBodyRunes))
	}

	if len(act.ReviewBodies) > 0 {
		fmt.Fprintf(&b, "\n  Reviews: %s", joinClipped(act.ReviewBodies, maxReviewRunes))
	}

	if len(act.CommentBodies) > 0 {
		fmt.Fprintf(&b, "\n  Comments: %s", joinClipped(act.CommentBodies, maxReviewRunes))
	}

	if act.Intent != "" {
		fmt.Fprintf(&b, "\n  Intent: %s", act.Intent)
	}

	if act.ChangeSummary != "" {
		fmt.Fprintf(&b, "\n  Change Summary: %s", act.ChangeSummary)
	}

	b.WriteString(formatPatches(act.FilePatches))
	b.WriteString(formatInlineComments(act.CommentContexts))

	return b.String()
}

// joinClipped clips each part and joins them on one line.
func joinClipped(parts []string, max int) string {
	clipped := make([]string, 0, len(parts))
	for _, part := range parts {
		clipped = append(clipped, textutil.Clip(part, max))
	}

	return strings.Join(clipped, " | ")
}

// formatPatches renders up to maxPatchFiles per-file patches in filename
// order, clipping each and stopping once the section budget is spent.
func formatPatches(patches map[string]string) string {
	if len(patches) == 0 {
		return ""
	}

	names := make([]string, 0, len(patches))
	for name := range patches {
		names = append(names, name)
	}

	sort.Strings(names)

	budget := patchSectionBudget

	var entries []string

	for _, name := range names {
		if len(entries) >= maxPatchFiles {
			break
		}

		entry := fmt.Sprintf("    --- %s ---\n    %s", name, textutil.Clip(patches[name], maxPatchRunes))
		if budget-len(entry) < 0 {
			break
		}

		budget -= len(entry)
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return ""
	}

	return "\n  Patches:\n" + strings.Join(entries, "\n")
}

// formatInlineComments renders up to maxInlineContexts inline review
// comments with the tail of their diff hunks.
func formatInlineComments(contexts []recap.CommentContext) string {
	if len(contexts) == 0 {
		return ""
	}

	shown := contexts
	if len(shown) > maxInlineContexts {
		shown = shown[:maxInlineContexts]
	}

	entries := make([]string, 0, len(shown))

	for _, cc := range shown {
		entries = append(entries, fmt.Sprintf("    at %s:%d\n    hunk: %s\n    comment: %s",
			cc.Path, cc.Line,
			textutil.ClipTail(cc.DiffHunk, maxHunkRunes),
			textutil.Clip(cc.Body, maxInlineBodyRunes)))
	}

	return "\n  Inline comments:\n" + strings.Join(entries, "\n")
}
