package storage

import "context"

// Tables keep the natural keys of the file layout: activities by
// (date, kind, url), stats by date, summaries by (level, target). Raw
// records ride along as jsonb payloads so SQL consumers can reach fields
// the flat columns omit.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS activities (
		date        text NOT NULL,
		kind        text NOT NULL,
		url         text NOT NULL,
		repo        text NOT NULL DEFAULT '',
		external_id integer NOT NULL DEFAULT 0,
		title       text NOT NULL DEFAULT '',
		summary     text NOT NULL DEFAULT '',
		ts          text NOT NULL DEFAULT '',
		additions   integer NOT NULL DEFAULT 0,
		deletions   integer NOT NULL DEFAULT 0,
		payload     jsonb NOT NULL,
		updated_at  timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (date, kind, url)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_stats (
		date       text PRIMARY KEY,
		stats      jsonb NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		level      text NOT NULL,
		target     text NOT NULL,
		content    text NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (level, target)
	)`,
}

// embeddingDDL is applied only when the vector extension is available. The
// column is dimensionless so the configured embedding model decides.
const embeddingDDL = `CREATE TABLE IF NOT EXISTS summary_embeddings (
	level      text NOT NULL,
	target     text NOT NULL,
	embedding  vector NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (level, target)
)`

// ensureSchema creates the tables and probes for pgvector. A host without
// the extension keeps the relational sink and drops the vector one.
func (s *Service) ensureSchema(ctx context.Context) error {
	for _, ddl := range tableDDL {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return err
		}
	}

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		s.logger.Warn("pgvector extension unavailable, vector sink disabled", "error", err)

		return nil
	}

	if _, err := s.pool.Exec(ctx, embeddingDDL); err != nil {
		return err
	}

	s.vector = true

	return nil
}
