package fetch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"

	"github.com/workrecap/workrecap/pkg/ghsearch"
	"github.com/workrecap/workrecap/pkg/recap"
)

// isoTime renders a timestamp as UTC RFC 3339, or "" for the zero time.
func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

// labelNames flattens label objects into their names.
func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))

	for _, label := range labels {
		names = append(names, label.GetName())
	}

	return names
}

// convertFiles maps API file records onto the persisted form.
func convertFiles(files []*github.CommitFile) []recap.FileChange {
	out := make([]recap.FileChange, 0, len(files))

	for _, f := range files {
		out = append(out, recap.FileChange{
			Filename:  f.GetFilename(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Status:    f.GetStatus(),
			Patch:     f.GetPatch(),
		})
	}

	return out
}

// filterComments converts comments to the persisted form, dropping noise.
// Inline review positions survive the conversion.
func filterComments(comments []ghsearch.Comment) []recap.Comment {
	out := make([]recap.Comment, 0, len(comments))

	for _, c := range comments {
		if isNoiseComment(c.Author, c.Body) {
			continue
		}

		out = append(out, recap.Comment{
			Author:    c.Author,
			Body:      c.Body,
			CreatedAt: isoTime(c.CreatedAt),
			URL:       c.HTMLURL,
			Path:      c.Path,
			Line:      c.Line,
			DiffHunk:  c.DiffHunk,
		})
	}

	return out
}

// filterReviews converts reviews to the persisted form, dropping bot authors.
func filterReviews(reviews []*github.PullRequestReview) []recap.Review {
	out := make([]recap.Review, 0, len(reviews))

	for _, r := range reviews {
		author := r.GetUser().GetLogin()
		if isNoiseReview(author) {
			continue
		}

		out = append(out, recap.Review{
			Author:      author,
			State:       r.GetState(),
			Body:        r.GetBody(),
			SubmittedAt: isoTime(r.GetSubmittedAt().Time),
			URL:         r.GetHTMLURL(),
		})
	}

	return out
}

// parsePRURL extracts owner, repo, and number from a PR API URL such as
// https://api.github.com/repos/acme/widget/pulls/42.
func parsePRURL(rawURL string) (string, string, int, error) {
	return parseEntityURL(rawURL, "pulls")
}

// parseIssueURL extracts owner, repo, and number from an issue API URL such
// as https://api.github.com/repos/acme/widget/issues/7.
func parseIssueURL(rawURL string) (string, string, int, error) {
	return parseEntityURL(rawURL, "issues")
}

// parseEntityURL scans for the marker segment and reads owner/repo/number
// around it. A trailing slash is tolerated; GHES path prefixes do not matter
// because the scan is positional, not host-based.
func parseEntityURL(rawURL, marker string) (string, string, int, error) {
	parts := strings.Split(strings.TrimSuffix(rawURL, "/"), "/")

	for i := 2; i+1 < len(parts); i++ {
		if parts[i] != marker {
			continue
		}

		number, err := strconv.Atoi(parts[i+1])
		if err != nil {
			return "", "", 0, fmt.Errorf("parse %s url %q: %w", marker, rawURL, err)
		}

		return parts[i-2], parts[i-1], number, nil
	}

	return "", "", 0, fmt.Errorf("parse %s url %q: missing %q segment", marker, rawURL, marker)
}
