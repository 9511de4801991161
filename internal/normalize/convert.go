package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// matchesDate reports whether an ISO 8601 timestamp falls on the target
// date. Timestamps are UTC throughout, so the date prefix is enough.
func matchesDate(ts, date string) bool {
	return len(ts) >= len(dateutil.Layout) && ts[:len(dateutil.Layout)] == date
}

// sortActivities orders activities by timestamp. The sort is stable so
// same-second activities keep their conversion order.
func sortActivities(activities []recap.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].TS < activities[j].TS
	})
}

// convertPRs extracts the user's activities from a day's PRs:
//
//   - author == user and created on the date → pr_authored
//   - a user review submitted on the date → one pr_reviewed per PR,
//     excluding reviews of the user's own PRs
//   - user comments on the date → one pr_commented aggregating them all,
//     stamped with the earliest comment
//
// Login comparison is case-insensitive everywhere.
func convertPRs(prs []recap.PRRaw, username, date string) []recap.Activity {
	var activities []recap.Activity

	for _, pr := range prs {
		isAuthor := strings.EqualFold(pr.Author, username)

		if isAuthor && matchesDate(pr.CreatedAt, date) {
			activities = append(activities, prActivity(pr, recap.KindPRAuthored, pr.CreatedAt, prParts{}))
		}

		if !isAuthor {
			for _, review := range pr.Reviews {
				if !strings.EqualFold(review.Author, username) || !matchesDate(review.SubmittedAt, date) {
					continue
				}

				activities = append(activities, prActivity(pr, recap.KindPRReviewed, review.SubmittedAt, prParts{
					evidenceURLs: []string{review.URL},
					reviewBodies: []string{review.Body},
					contexts:     inlineContexts(pr.Comments, username),
				}))

				// One review activity per PR per day.
				break
			}
		}

		var userComments []recap.Comment

		for _, c := range pr.Comments {
			if strings.EqualFold(c.Author, username) && matchesDate(c.CreatedAt, date) {
				userComments = append(userComments, c)
			}
		}

		if len(userComments) > 0 {
			earliest := earliestComment(userComments)

			activities = append(activities, prActivity(pr, recap.KindPRCommented, earliest.CreatedAt, prParts{
				evidenceURLs:  commentURLs(userComments),
				commentBodies: commentBodies(userComments),
				contexts:      inlineContexts(userComments, username),
			}))
		}
	}

	sortActivities(activities)

	return activities
}

// convertCommits turns a day's commits into commit activities. The title
// is the first message line; the search already restricted the author.
func convertCommits(commits []recap.CommitRaw, date string) []recap.Activity {
	var activities []recap.Activity

	for _, commit := range commits {
		if !matchesDate(commit.CommittedAt, date) {
			continue
		}

		title, _, _ := strings.Cut(commit.Message, "\n")
		adds, dels := fileTotals(commit.Files)

		activities = append(activities, recap.Activity{
			TS:          commit.CommittedAt,
			Kind:        recap.KindCommit,
			Repo:        commit.Repo,
			Title:       title,
			URL:         commit.URL,
			Summary:     fmt.Sprintf("%s: %s (%s) +%d/-%d", recap.KindCommit, title, commit.Repo, adds, dels),
			SHA:         commit.SHA,
			Body:        commit.Message,
			Files:       fileNames(commit.Files),
			FilePatches: filePatches(commit.Files),
			Additions:   adds,
			Deletions:   dels,
		})
	}

	return activities
}

// convertIssues turns a day's issues into issue_authored and
// issue_commented activities, with the same aggregation rules as PR
// comments.
func convertIssues(issues []recap.IssueRaw, username, date string) []recap.Activity {
	var activities []recap.Activity

	for _, issue := range issues {
		if strings.EqualFold(issue.Author, username) && matchesDate(issue.CreatedAt, date) {
			activities = append(activities, recap.Activity{
				TS:         issue.CreatedAt,
				Kind:       recap.KindIssueAuthored,
				Repo:       issue.Repo,
				ExternalID: issue.Number,
				Title:      issue.Title,
				URL:        issue.URL,
				Summary:    fmt.Sprintf("%s: %s (%s)", recap.KindIssueAuthored, issue.Title, issue.Repo),
				Body:       issue.Body,
				Labels:     issue.Labels,
			})
		}

		var userComments []recap.Comment

		for _, c := range issue.Comments {
			if strings.EqualFold(c.Author, username) && matchesDate(c.CreatedAt, date) {
				userComments = append(userComments, c)
			}
		}

		if len(userComments) > 0 {
			earliest := earliestComment(userComments)

			activities = append(activities, recap.Activity{
				TS:            earliest.CreatedAt,
				Kind:          recap.KindIssueCommented,
				Repo:          issue.Repo,
				ExternalID:    issue.Number,
				Title:         issue.Title,
				URL:           issue.URL,
				Summary:       fmt.Sprintf("%s: %s (%s)", recap.KindIssueCommented, issue.Title, issue.Repo),
				Body:          issue.Body,
				CommentBodies: commentBodies(userComments),
				Labels:        issue.Labels,
				EvidenceURLs:  commentURLs(userComments),
			})
		}
	}

	return activities
}

// prParts carries the per-kind extras of a PR activity.
type prParts struct {
	evidenceURLs  []string
	reviewBodies  []string
	commentBodies []string
	contexts      []recap.CommentContext
}

// prActivity assembles one activity from a PR with the shared fields
// filled in.
func prActivity(pr recap.PRRaw, kind recap.ActivityKind, ts string, parts prParts) recap.Activity {
	adds, dels := fileTotals(pr.Files)

	return recap.Activity{
		TS:              ts,
		Kind:            kind,
		Repo:            pr.Repo,
		ExternalID:      pr.Number,
		Title:           pr.Title,
		URL:             pr.URL,
		Summary:         autoSummary(pr, kind, adds, dels),
		Body:            pr.Body,
		ReviewBodies:    parts.reviewBodies,
		CommentBodies:   parts.commentBodies,
		Files:           fileNames(pr.Files),
		FilePatches:     filePatches(pr.Files),
		Additions:       adds,
		Deletions:       dels,
		Labels:          pr.Labels,
		EvidenceURLs:    parts.evidenceURLs,
		CommentContexts: parts.contexts,
	}
}

// autoSummary renders the deterministic one-line summary. PRs with no body
// text fall back to a hint built from the top-level directories of the
// changed files, capped at three names.
func autoSummary(pr recap.PRRaw, kind recap.ActivityKind, adds, dels int) string {
	if strings.TrimSpace(pr.Body) != "" {
		return fmt.Sprintf("%s: %s (%s) +%d/-%d", kind, pr.Title, pr.Repo, adds, dels)
	}

	dirs := make(map[string]struct{}, len(pr.Files))

	for _, f := range pr.Files {
		// Top-level directory, or the bare filename for root files.
		dir, _, _ := strings.Cut(f.Filename, "/")
		dirs[dir] = struct{}{}
	}

	names := make([]string, 0, len(dirs))
	for dir := range dirs {
		names = append(names, dir)
	}

	sort.Strings(names)

	hint := strings.Join(names[:min(3, len(names))], ", ")
	if len(names) > 3 {
		hint += " 외"
	}

	return fmt.Sprintf("%s: [%s] %d개 파일 변경 (%s) +%d/-%d", kind, hint, len(pr.Files), pr.Repo, adds, dels)
}

// inlineContexts extracts the user's inline review comments, the ones
// anchored to a file path, as code contexts for the summarizer.
func inlineContexts(comments []recap.Comment, username string) []recap.CommentContext {
	var contexts []recap.CommentContext

	for _, c := range comments {
		if c.Path == "" || !strings.EqualFold(c.Author, username) {
			continue
		}

		contexts = append(contexts, recap.CommentContext{
			Path:     c.Path,
			Line:     c.Line,
			DiffHunk: c.DiffHunk,
			Body:     c.Body,
		})
	}

	return contexts
}

// earliestComment returns the comment with the smallest created_at.
func earliestComment(comments []recap.Comment) recap.Comment {
	earliest := comments[0]

	for _, c := range comments[1:] {
		if c.CreatedAt < earliest.CreatedAt {
			earliest = c
		}
	}

	return earliest
}

func commentBodies(comments []recap.Comment) []string {
	bodies := make([]string, 0, len(comments))
	for _, c := range comments {
		bodies = append(bodies, c.Body)
	}

	return bodies
}

func commentURLs(comments []recap.Comment) []string {
	urls := make([]string, 0, len(comments))
	for _, c := range comments {
		urls = append(urls, c.URL)
	}

	return urls
}

func fileTotals(files []recap.FileChange) (adds, dels int) {
	for _, f := range files {
		adds += f.Additions
		dels += f.Deletions
	}

	return adds, dels
}

func fileNames(files []recap.FileChange) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}

	return names
}

// filePatches maps filename to patch text, skipping files whose patch is
// empty (binary files, oversized diffs).
func filePatches(files []recap.FileChange) map[string]string {
	patches := make(map[string]string)

	for _, f := range files {
		if f.Patch != "" {
			patches[f.Filename] = f.Patch
		}
	}

	return patches
}
