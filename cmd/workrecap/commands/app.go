package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/pipeline"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/internal/storage"
	"github.com/workrecap/workrecap/internal/summarize"
	"github.com/workrecap/workrecap/pkg/ghsearch"
	"github.com/workrecap/workrecap/pkg/version"
)

// appFactory builds the per-invocation service graph. Tests inject one
// that returns an app with fake services pre-set.
type appFactory func(g *Globals, mode observability.AppMode) (*app, error)

// app is one command invocation's service graph. Services are memoized
// and built on demand, so each command pays only for the pieces it
// drives: ask never dials GitHub and fetch never loads provider config.
type app struct {
	cfg     *config.Config
	obs     observability.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	tracker *llm.UsageTracker

	fetchSvc          fetchService
	normalizeSvc      normalizeService
	normalizePlainSvc normalizeService
	summarizeSvc      summarizeService
	pipelineSvc       pipelineService

	router *llm.Router
	checks *state.Checkpoints
	failed *state.FailedDateStore
	daily  *state.DailyStateStore
	store  *storage.Service

	closers []func()
}

// newApp loads the configuration and prepares the logger. Everything
// heavier is built lazily by the service accessors.
func newApp(g *Globals, mode observability.AppMode) (*app, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.Mode = mode
	obs.LogJSON = g.LogJSON
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint

	if g.Verbose {
		obs.LogLevel = slog.LevelDebug
	}

	return &app{
		cfg:     cfg,
		obs:     obs,
		logger:  observability.NewLogger(obs),
		tracker: llm.NewUsageTracker(llm.NewPricingTable()),
	}, nil
}

// close releases clients and pools in reverse construction order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) checkpoints() *state.Checkpoints {
	if a.checks == nil {
		a.checks = state.NewCheckpoints(a.cfg.CheckpointsPath(), a.logger)
	}

	return a.checks
}

func (a *app) failedDates() *state.FailedDateStore {
	if a.failed == nil {
		a.failed = state.NewFailedDateStore(a.cfg.FailedDatesPath(), a.cfg.Pipeline.MaxFetchRetries, a.logger)
	}

	return a.failed
}

func (a *app) dailyState() *state.DailyStateStore {
	if a.daily == nil {
		a.daily = state.NewDailyStateStore(a.cfg.DailyStatePath(), a.logger)
	}

	return a.daily
}

// llmRouter builds the provider router from the TOML provider config,
// falling back to the single provider named in the app config when the
// file is missing or unreadable.
func (a *app) llmRouter() *llm.Router {
	if a.router != nil {
		return a.router
	}

	pc, err := llm.LoadProviderConfig(a.cfg.LLM.ProviderConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("no provider config file, using fallback", "path", a.cfg.LLM.ProviderConfigPath)
		} else {
			a.logger.Warn("provider config unreadable, using fallback", "path", a.cfg.LLM.ProviderConfigPath, "error", err)
		}

		pc = llm.FallbackProviderConfig(a.cfg.LLM.Provider, a.cfg.LLM.APIKey, a.cfg.LLM.Model)
	}

	a.router = llm.NewRouter(pc, a.tracker, a.metrics, a.logger)
	a.router.RecordBatches(state.NewBatchStateStore(a.cfg.BatchStatePath(), a.logger))

	return a.router
}

func (a *app) searchClient() (*ghsearch.Client, error) {
	return ghsearch.New(ghsearch.Options{
		BaseURL:        a.cfg.GitHub.BaseURL,
		Token:          a.cfg.GitHub.Token,
		Timeout:        a.cfg.GitHub.Timeout,
		SearchInterval: a.cfg.GitHub.SearchInterval,
		Logger:         a.logger,
	})
}

// fetcher builds the fetch service. workers beyond one get a client pool
// so parallel range fetches do not serialize on one search throttle.
func (a *app) fetcher(workers int) (fetchService, error) {
	if a.fetchSvc != nil {
		return a.fetchSvc, nil
	}

	client, err := a.searchClient()
	if err != nil {
		return nil, err
	}

	var pool *ghsearch.Pool

	if workers > 1 {
		pool, err = ghsearch.NewPool(workers, a.searchClient)
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, pool.Close)
	}

	a.fetchSvc = fetch.New(fetch.Options{
		Config:      a.cfg,
		Client:      client,
		Pool:        pool,
		Daily:       a.dailyState(),
		Failed:      a.failedDates(),
		Checkpoints: a.checkpoints(),
		Metrics:     a.metrics,
		Logger:      a.logger,
	})

	return a.fetchSvc, nil
}

// normalizer builds the normalize service. With enrich set the LLM
// router annotates activities; without it they stay plain.
func (a *app) normalizer(enrich bool) normalizeService {
	if enrich {
		if a.normalizeSvc == nil {
			a.normalizeSvc = normalize.New(normalize.Options{
				Config:      a.cfg,
				LLM:         a.llmRouter(),
				Daily:       a.dailyState(),
				Checkpoints: a.checkpoints(),
				Metrics:     a.metrics,
				Logger:      a.logger,
			})
		}

		return a.normalizeSvc
	}

	if a.normalizePlainSvc == nil {
		a.normalizePlainSvc = normalize.New(normalize.Options{
			Config:      a.cfg,
			Daily:       a.dailyState(),
			Checkpoints: a.checkpoints(),
			Metrics:     a.metrics,
			Logger:      a.logger,
		})
	}

	return a.normalizePlainSvc
}

func (a *app) summarizer() summarizeService {
	if a.summarizeSvc == nil {
		a.summarizeSvc = summarize.New(summarize.Options{
			Config:      a.cfg,
			LLM:         a.llmRouter(),
			Daily:       a.dailyState(),
			Checkpoints: a.checkpoints(),
			Metrics:     a.metrics,
			Logger:      a.logger,
		})
	}

	return a.summarizeSvc
}

// buildPipeline assembles the full fetch-normalize-summarize graph plus
// the optional Postgres mirror.
func (a *app) buildPipeline(ctx context.Context, workers int, enrich bool) (pipelineService, error) {
	if a.pipelineSvc != nil {
		return a.pipelineSvc, nil
	}

	fetcher, err := a.fetcher(workers)
	if err != nil {
		return nil, err
	}

	a.pipelineSvc = pipeline.New(pipeline.Options{
		Config:    a.cfg,
		Fetch:     fetcher,
		Normalize: a.normalizer(enrich),
		Summarize: a.summarizer(),
		Store:     a.openStore(ctx),
		Logger:    a.logger,
	})

	return a.pipelineSvc, nil
}

// openStore connects the Postgres mirror. A missing DSN disables
// mirroring silently; a failing connection disables it with a warning.
func (a *app) openStore(ctx context.Context) pipeline.Store {
	svc, err := storage.Open(ctx, storage.Options{Config: a.cfg, Logger: a.logger})
	if err != nil {
		if !errors.Is(err, storage.ErrNoDSN) {
			a.logger.Warn("storage unavailable, mirroring disabled", "error", err)
		}

		return nil
	}

	a.store = svc
	a.closers = append(a.closers, svc.Close)

	return svc
}

// printUsage writes the LLM usage report and folds the figures into the
// accumulated usage file. Commands that made no LLM calls print nothing.
func (a *app) printUsage(out io.Writer) {
	if len(a.tracker.ModelUsages()) == 0 {
		return
	}

	fmt.Fprintln(out, a.tracker.FormatReport())

	err := a.tracker.MergeToFile(a.cfg.UsagePath())
	if err != nil {
		a.logger.Warn("usage file update failed", "error", err)
	}
}
