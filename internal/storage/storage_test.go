package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/pkg/recap"
)

func TestOpen_RequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Options{Config: &config.Config{}})

	assert.ErrorIs(t, err, ErrNoDSN)
}

func TestOpen_RejectsMalformedDSN(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Storage: config.StorageConfig{PostgresDSN: "definitely not a dsn"},
	}

	_, err := Open(context.Background(), Options{Config: cfg})

	require.Error(t, err)
	assert.ErrorContains(t, err, "parse dsn")
}

func TestNewEmbedder_OffWithoutAPIKey(t *testing.T) {
	t.Parallel()

	embedder, err := newEmbedder(config.EmbeddingConfig{})

	require.NoError(t, err)
	assert.Nil(t, embedder)
}

func TestNewEmbedder_BuildsClient(t *testing.T) {
	t.Parallel()

	embedder, err := newEmbedder(config.EmbeddingConfig{
		APIKey: "test-key",
		Model:  "text-embedding-3-small",
	})

	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestActivityArgs_ColumnOrder(t *testing.T) {
	t.Parallel()

	act := recap.Activity{
		TS:         "2025-02-16T09:00:00Z",
		Kind:       recap.KindPRAuthored,
		Repo:       "org/auth",
		ExternalID: 42,
		Title:      "Fix login bug",
		URL:        "https://ghes/org/auth/pull/42",
		Summary:    "pr_authored: Fix login bug (org/auth) +10/-3",
		Additions:  10,
		Deletions:  3,
	}

	args, err := activityArgs("2025-02-16", act)

	require.NoError(t, err)
	require.Len(t, args, 11)
	assert.Equal(t, "2025-02-16", args[0])
	assert.Equal(t, "pr_authored", args[1])
	assert.Equal(t, act.URL, args[2])
	assert.Equal(t, "org/auth", args[3])
	assert.Equal(t, 42, args[4])
	assert.Equal(t, "Fix login bug", args[5])
	assert.Equal(t, act.Summary, args[6])
	assert.Equal(t, act.TS, args[7])
	assert.Equal(t, 10, args[8])
	assert.Equal(t, 3, args[9])
}

func TestActivityArgs_PayloadRoundTrips(t *testing.T) {
	t.Parallel()

	act := recap.Activity{
		Kind:          recap.KindCommit,
		Repo:          "org/infra",
		SHA:           "abc1234",
		URL:           "https://ghes/org/infra/commit/abc1234",
		Title:         "Bump runtime image",
		Files:         []string{"Dockerfile"},
		FilePatches:   map[string]string{"Dockerfile": "@@ -1 +1 @@"},
		ChangeSummary: "베이스 이미지 교체",
		Intent:        "chore",
	}

	args, err := activityArgs("2025-02-16", act)

	require.NoError(t, err)

	payload, ok := args[10].([]byte)
	require.True(t, ok)

	var decoded recap.Activity

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, act, decoded)
}

func TestVectorLiteral(t *testing.T) {
	t.Parallel()

	lit := pgvector.NewVector([]float32{0.5, -1, 2}).String()

	assert.Equal(t, "[0.5,-1,2]", lit)
}
