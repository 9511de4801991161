package storage

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/pkg/textutil"
)

// embedInputRunes bounds the text sent to the embedding endpoint. Monthly
// and yearly summaries can exceed typical embedding input limits.
const embedInputRunes = 8000

const upsertEmbeddingSQL = `INSERT INTO summary_embeddings (level, target, embedding, updated_at)
	VALUES ($1, $2, $3::vector, now())
	ON CONFLICT (level, target) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`

// newEmbedder builds the OpenAI-compatible embedding client. No API key
// means embeddings are off; that is not an error.
func newEmbedder(cfg config.EmbeddingConfig) (embeddings.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	opts := []openai.Option{openai.WithToken(cfg.APIKey)}

	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Model != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	return embeddings.NewEmbedder(client)
}

// embedSummary refreshes one summary's embedding row. Best-effort: any
// failure logs a warning and leaves the previous embedding in place.
func (s *Service) embedSummary(ctx context.Context, level, target, content string) {
	if s.embedder == nil {
		return
	}

	vec, err := s.embedder.EmbedQuery(ctx, textutil.Clip(content, embedInputRunes))
	if err != nil {
		s.logger.Warn("summary embedding failed", "level", level, "target", target, "error", err)

		return
	}

	err = s.execute(func() error {
		_, execErr := s.pool.Exec(ctx, upsertEmbeddingSQL, level, target, pgvector.NewVector(vec).String())

		return execErr
	})
	if err != nil {
		s.logger.Warn("summary embedding write failed", "level", level, "target", target, "error", err)
	}
}
