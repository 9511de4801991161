package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/workrecap/workrecap/pkg/recap"
)

const (
	deleteActivitiesSQL = `DELETE FROM activities WHERE date = $1`

	insertActivitySQL = `INSERT INTO activities
		(date, kind, url, repo, external_id, title, summary, ts, additions, deletions, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (date, kind, url) DO UPDATE SET
			repo = EXCLUDED.repo, external_id = EXCLUDED.external_id,
			title = EXCLUDED.title, summary = EXCLUDED.summary, ts = EXCLUDED.ts,
			additions = EXCLUDED.additions, deletions = EXCLUDED.deletions,
			payload = EXCLUDED.payload, updated_at = now()`

	upsertStatsSQL = `INSERT INTO daily_stats (date, stats, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (date) DO UPDATE SET stats = EXCLUDED.stats, updated_at = now()`

	upsertSummarySQL = `INSERT INTO summaries (level, target, content, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (level, target) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`
)

// SaveActivities replaces one date's activity rows and upserts its stats in
// a single transaction, so readers never see a half-written day.
func (s *Service) SaveActivities(ctx context.Context, date string, activities []recap.Activity, stats recap.DailyStats) error {
	err := s.execute(func() error {
		return s.writeDay(ctx, date, activities, stats)
	})
	if err != nil {
		return fmt.Errorf("storage: save activities for %s: %w", date, err)
	}

	return nil
}

func (s *Service) writeDay(ctx context.Context, date string, activities []recap.Activity, stats recap.DailyStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteActivitiesSQL, date); err != nil {
		return fmt.Errorf("clear activities: %w", err)
	}

	batch := &pgx.Batch{}

	for _, act := range activities {
		args, err := activityArgs(date, act)
		if err != nil {
			return err
		}

		batch.Queue(insertActivitySQL, args...)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert activities: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, upsertStatsSQL, date, statsJSON); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// activityArgs lays out one insert row: flat columns for querying plus the
// full record as jsonb.
func activityArgs(date string, act recap.Activity) ([]any, error) {
	payload, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("marshal activity %s: %w", act.URL, err)
	}

	return []any{
		date, string(act.Kind), act.URL, act.Repo, act.ExternalID,
		act.Title, act.Summary, act.TS, act.Additions, act.Deletions, payload,
	}, nil
}

// SaveSummary upserts a generated summary and refreshes its embedding when
// the vector sink is active. Embedding failures are logged, not returned:
// the relational copy is already in place.
func (s *Service) SaveSummary(ctx context.Context, level, target, content string) error {
	err := s.execute(func() error {
		_, execErr := s.pool.Exec(ctx, upsertSummarySQL, level, target, content)

		return execErr
	})
	if err != nil {
		return fmt.Errorf("storage: save %s summary %s: %w", level, target, err)
	}

	s.embedSummary(ctx, level, target, content)

	return nil
}
