package normalize

import (
	"sort"

	"github.com/workrecap/workrecap/pkg/recap"
)

// computeStats derives the day's counters from its activities. Addition
// and deletion totals count authored PRs and commits only; reviewing a
// large PR is not the user's own churn.
func computeStats(activities []recap.Activity, date string) recap.DailyStats {
	stats := recap.DailyStats{
		Date:           date,
		AuthoredPRs:    []recap.PRRef{},
		ReviewedPRs:    []recap.PRRef{},
		Commits:        []recap.CommitRef{},
		AuthoredIssues: []recap.PRRef{},
	}

	repos := make(map[string]struct{})

	for _, a := range activities {
		repos[a.Repo] = struct{}{}

		switch a.Kind {
		case recap.KindPRAuthored:
			stats.AuthoredCount++
			stats.TotalAdditions += a.Additions
			stats.TotalDeletions += a.Deletions
			stats.AuthoredPRs = append(stats.AuthoredPRs, recap.PRRef{URL: a.URL, Title: a.Title, Repo: a.Repo})
		case recap.KindPRReviewed:
			stats.ReviewedCount++
			stats.ReviewedPRs = append(stats.ReviewedPRs, recap.PRRef{URL: a.URL, Title: a.Title, Repo: a.Repo})
		case recap.KindPRCommented:
			stats.CommentedCount++
		case recap.KindCommit:
			stats.CommitCount++
			stats.TotalAdditions += a.Additions
			stats.TotalDeletions += a.Deletions
			stats.Commits = append(stats.Commits, recap.CommitRef{URL: a.URL, Title: a.Title, Repo: a.Repo, SHA: a.SHA})
		case recap.KindIssueAuthored:
			stats.IssueAuthoredCount++
			stats.AuthoredIssues = append(stats.AuthoredIssues, recap.PRRef{URL: a.URL, Title: a.Title, Repo: a.Repo})
		case recap.KindIssueCommented:
			stats.IssueCommentedCount++
		}
	}

	touched := make([]string, 0, len(repos))
	for repo := range repos {
		touched = append(touched, repo)
	}

	sort.Strings(touched)
	stats.ReposTouched = touched

	return stats
}
