// Package storage mirrors normalized activities and generated summaries into
// Postgres, with an optional pgvector index over summary text. The JSON files
// under data/ stay canonical; these sinks are best-effort copies for SQL and
// similarity queries, and a failed write never fails a pipeline run.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/workrecap/workrecap/internal/config"
)

const (
	connectAttempts  = 5
	connectBaseDelay = 500 * time.Millisecond
	connectMaxDelay  = 10 * time.Second

	// The breaker opens after this many consecutive write failures and
	// probes again after the cooldown.
	breakerTripAfter = 5
	breakerCooldown  = 30 * time.Second
)

// ErrNoDSN indicates storage.postgres_dsn is empty. Callers treat storage as
// disabled rather than an error.
var ErrNoDSN = errors.New("storage: postgres_dsn is not configured")

// Options wires a Service. Config is required.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
}

// Service owns the Postgres pool and the embedding client. It satisfies the
// pipeline's Store interface.
type Service struct {
	pool     *pgxpool.Pool
	breaker  *gobreaker.CircuitBreaker
	embedder embeddings.Embedder
	logger   *slog.Logger
	vector   bool
}

// Open connects to Postgres with exponential-backoff retries, ensures the
// schema, and wires the embedding client when one is configured. An empty
// DSN returns ErrNoDSN.
func Open(ctx context.Context, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dsn := opts.Config.Storage.PostgresDSN
	if dsn == "" {
		return nil, ErrNoDSN
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}

	pool, err := connect(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	svc := &Service{
		pool:   pool,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "postgres",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerTripAfter
			},
		}),
	}

	if err := svc.ensureSchema(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("storage: ensure schema: %w", err)
	}

	if svc.vector {
		embedder, err := newEmbedder(opts.Config.Storage.Embedding)
		if err != nil {
			logger.Warn("embedding client unavailable, embeddings disabled", "error", err)
		} else {
			svc.embedder = embedder
		}
	}

	logger.Info("storage sinks ready", "vector", svc.vector, "embeddings", svc.embedder != nil)

	return svc, nil
}

// connect builds the pool and verifies it with a ping, retrying transient
// failures. Config errors from the pool constructor are permanent.
func connect(ctx context.Context, poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = connectBaseDelay
	expo.MaxInterval = connectMaxDelay

	return backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, err
		}

		return pool, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(connectAttempts))
}

// execute routes a write through the circuit breaker.
func (s *Service) execute(op func() error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, op()
	})

	return err
}

// Close releases the connection pool.
func (s *Service) Close() {
	s.pool.Close()
}
