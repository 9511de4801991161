// Package api serves the recap pipeline over HTTP. Mutating endpoints
// follow one contract: the handler registers a job, answers 202 with the
// job ID, and runs the work on its own goroutine while the job document
// tracks it through running to completed or failed. Summary reads, the
// availability calendar, and scheduler control are synchronous.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/pipeline"
	"github.com/workrecap/workrecap/internal/scheduler"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/internal/summarize"
	"github.com/workrecap/workrecap/pkg/recap"
)

// shutdownTimeout bounds the drain of in-flight requests once the serve
// context is canceled.
const shutdownTimeout = 10 * time.Second

// Pipeline runs the full per-date pipeline and the rollup generators.
// Satisfied by *pipeline.Pipeline.
type Pipeline interface {
	RunDaily(ctx context.Context, date string, opts pipeline.RunOptions) (string, error)
	RunRange(ctx context.Context, since, until string, opts pipeline.RangeOptions) ([]recap.DateResult, error)
	RunWeekly(ctx context.Context, year, week int, force bool) (string, error)
	RunMonthly(ctx context.Context, year, month int, force bool) (string, error)
	RunYearly(ctx context.Context, year int, force bool) (string, error)
}

// Fetcher runs the fetch phase alone. Satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, date string, types []string) (map[string]string, error)
	FetchRange(ctx context.Context, since, until string, opts fetch.RangeOptions) ([]recap.DateResult, error)
}

// Normalizer runs the normalize phase alone. Satisfied by
// *normalize.Normalizer.
type Normalizer interface {
	Normalize(ctx context.Context, date string) (activitiesPath, statsPath string, err error)
	NormalizeRange(ctx context.Context, since, until string, opts normalize.RangeOptions) ([]recap.DateResult, error)
}

// Summarizer generates daily summaries and answers ad-hoc questions.
// Satisfied by *summarize.Summarizer.
type Summarizer interface {
	Daily(ctx context.Context, date string) (string, error)
	DailyRange(ctx context.Context, since, until string, opts summarize.RangeOptions) ([]recap.DateResult, error)
	Query(ctx context.Context, question string, monthsBack int) (string, error)
}

// Options wires a Server. Config, Pipeline, Fetch, Normalize, Summarize,
// Scheduler, and History are required. NormalizePlain serves normalize
// requests that opt out of LLM enrichment; leave nil to reuse Normalize.
// MetricsHandler, when set, is mounted at GET /metrics.
type Options struct {
	Config         *config.Config
	Pipeline       Pipeline
	Fetch          Fetcher
	Normalize      Normalizer
	NormalizePlain Normalizer
	Summarize      Summarizer
	Jobs           *state.JobStore
	Scheduler      *scheduler.Service
	History        *scheduler.History
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server exposes the pipeline services, the summary tree, and the
// scheduler over a chi router.
type Server struct {
	cfg            *config.Config
	pipeline       Pipeline
	fetch          Fetcher
	normalize      Normalizer
	normalizePlain Normalizer
	summarize      Summarizer
	jobs           *state.JobStore
	sched          *scheduler.Service
	history        *scheduler.History
	metrics        *observability.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger
}

// New builds a Server from opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = state.NewJobStore()
	}

	plain := opts.NormalizePlain
	if plain == nil {
		plain = opts.Normalize
	}

	return &Server{
		cfg:            opts.Config,
		pipeline:       opts.Pipeline,
		fetch:          opts.Fetch,
		normalize:      opts.Normalize,
		normalizePlain: plain,
		summarize:      opts.Summarize,
		jobs:           jobs,
		sched:          opts.Scheduler,
		history:        opts.History,
		metrics:        opts.Metrics,
		metricsHandler: opts.MetricsHandler,
		logger:         logger,
	}
}

// Router assembles the full route tree. It is exported so tests can mount
// the server on httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/run/range", s.handleRunRange)
			r.Post("/run/{date}", s.handleRunDate)
			r.Get("/jobs/{jobID}", s.handleJobStatus)

			r.Route("/fetch", func(r chi.Router) {
				r.Post("/range", s.handleFetchRange)
				r.Post("/{date}", s.handleFetchDate)
			})

			r.Route("/normalize", func(r chi.Router) {
				r.Post("/range", s.handleNormalizeRange)
				r.Post("/{date}", s.handleNormalizeDate)
			})

			r.Route("/summarize", func(r chi.Router) {
				r.Post("/daily/range", s.handleSummarizeDailyRange)
				r.Post("/daily/{date}", s.handleSummarizeDaily)
				r.Post("/weekly", s.handleSummarizeWeekly)
				r.Post("/monthly", s.handleSummarizeMonthly)
				r.Post("/yearly", s.handleSummarizeYearly)
			})
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/daily/{date}", s.handleDailySummary)
			r.Get("/weekly/{year}/{week}", s.handleWeeklySummary)
			r.Get("/monthly/{year}/{month}", s.handleMonthlySummary)
			r.Get("/yearly/{year}", s.handleYearlySummary)
		})

		r.Get("/summaries/available", s.handleAvailableSummaries)
		r.Post("/query", s.handleQuery)

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", s.handleSchedulerStatus)
			r.Get("/history", s.handleSchedulerHistory)
			r.Post("/trigger/{job}", s.handleSchedulerTrigger)
			r.Put("/pause", s.handleSchedulerPause)
			r.Put("/resume", s.handleSchedulerResume)
		})
	})

	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	return r
}

// ListenAndServe runs the server on addr until ctx is canceled, then
// drains in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Info("api server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("api server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// logRequests writes one slog line per request with the wrapped status.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
