package recap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJSON_PreservesNonASCII(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "stats.json")
	stats := DailyStats{Date: "2026-01-15", AuthoredCount: 2}

	err := SaveJSON(path, stats)
	require.NoError(t, err)

	act := Activity{TS: "2026-01-15T09:00:00Z", Kind: KindCommit, Summary: "commit: 버그 수정 (org/repo) +3/-1"}
	actPath := filepath.Join(t.TempDir(), "act.json")

	err = SaveJSON(actPath, act)
	require.NoError(t, err)

	data, err := os.ReadFile(actPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "버그 수정")
	assert.NotContains(t, string(data), `\u`)
}

func TestSaveJSONL_LoadJSONL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "activities.jsonl")
	activities := []Activity{
		{TS: "2026-01-15T09:00:00Z", Kind: KindPRAuthored, Repo: "org/api", ExternalID: 12, Title: "Add endpoint"},
		{TS: "2026-01-15T11:30:00Z", Kind: KindCommit, Repo: "org/api", SHA: "abc123", Summary: "commit: fix (org/api) +1/-1"},
	}

	err := SaveJSONL(path, activities)
	require.NoError(t, err)

	loaded, err := LoadJSONL[Activity](path)
	require.NoError(t, err)

	require.Len(t, loaded, 2)
	assert.Equal(t, activities[0].Title, loaded[0].Title)
	assert.Equal(t, KindCommit, loaded[1].Kind)
}

func TestLoadJSONL_SkipsBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sparse.jsonl")
	content := "{\"ts\":\"2026-01-15T09:00:00Z\",\"kind\":\"commit\"}\n\n\n{\"ts\":\"2026-01-15T10:00:00Z\",\"kind\":\"pr_authored\"}\n"

	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)

	loaded, err := LoadJSONL[Activity](path)
	require.NoError(t, err)

	assert.Len(t, loaded, 2)
}

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	base := TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, CallCount: 1}
	escalation := TokenUsage{PromptTokens: 200, CompletionTokens: 80, TotalTokens: 280, CallCount: 1, CacheReadTokens: 40}

	sum := base.Add(escalation)

	assert.Equal(t, 300, sum.PromptTokens)
	assert.Equal(t, 130, sum.CompletionTokens)
	assert.Equal(t, 430, sum.TotalTokens)
	assert.Equal(t, 2, sum.CallCount)
	assert.Equal(t, 40, sum.CacheReadTokens)
}

func TestActivityKind_Valid(t *testing.T) {
	t.Parallel()

	for _, kind := range []ActivityKind{KindPRAuthored, KindPRReviewed, KindPRCommented, KindCommit, KindIssueAuthored, KindIssueCommented} {
		assert.True(t, kind.Valid(), string(kind))
	}

	assert.False(t, ActivityKind("pr_merged").Valid())
}
