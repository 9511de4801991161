package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/pipeline"
)

// Job names, also used as cron entry identifiers and history keys.
const (
	JobDaily   = "daily"
	JobWeekly  = "weekly"
	JobMonthly = "monthly"
	JobYearly  = "yearly"
)

// Scheduler states reported by Status.
const (
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StatePaused   = "paused"
	StateRunning  = "running"
)

// ErrUnknownJob reports a trigger for a job name the scheduler does not
// know.
var ErrUnknownJob = errors.New("unknown scheduler job")

// Runner is the slice of the pipeline the scheduled jobs drive. Satisfied
// by *pipeline.Pipeline.
type Runner interface {
	RunDaily(ctx context.Context, date string, opts pipeline.RunOptions) (string, error)
	RunWeekly(ctx context.Context, year, week int, force bool) (string, error)
	RunMonthly(ctx context.Context, year, month int, force bool) (string, error)
	RunYearly(ctx context.Context, year int, force bool) (string, error)
}

// Options wires a Service. Config, History, Notifier, and Pipeline are
// required; Metrics and Logger are optional.
type Options struct {
	Config   *ScheduleConfig
	History  *History
	Notifier Notifier
	Pipeline Runner
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Service owns the cron calendar and the job implementations behind it.
type Service struct {
	cfg      *ScheduleConfig
	history  *History
	notifier Notifier
	pipeline Runner
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	paused  bool
}

// New builds a Service from opts.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:      opts.Config,
		history:  opts.History,
		notifier: opts.Notifier,
		pipeline: opts.Pipeline,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// cronJob pairs a job with its cron spec.
type cronJob struct {
	name string
	spec string
	run  func(context.Context)
}

// Start registers the cron entries and begins firing them. It is a no-op
// when the schedule is disabled; Trigger still works either way. Jobs
// that are still running when their next slot arrives are skipped, and
// panics inside a job are recovered.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled in config")

		return nil
	}

	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}

	jobs, err := s.cronJobs()
	if err != nil {
		return err
	}

	cronLog := cronLogger{logger: s.logger}
	runner := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
	)

	entries := make(map[string]cron.EntryID, len(jobs))

	for _, job := range jobs {
		id, err := runner.AddFunc(job.spec, s.guard(job.name, job.run))
		if err != nil {
			return fmt.Errorf("register %s job: %w", job.name, err)
		}

		entries[job.name] = id
	}

	runner.Start()

	s.mu.Lock()
	s.cron = runner
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("scheduler started", "timezone", s.cfg.Timezone, "jobs", len(entries))

	return nil
}

func (s *Service) cronJobs() ([]cronJob, error) {
	daily, err := s.cfg.Daily.cronSpec()
	if err != nil {
		return nil, fmt.Errorf("daily schedule: %w", err)
	}

	weekly, err := s.cfg.Weekly.cronSpec()
	if err != nil {
		return nil, fmt.Errorf("weekly schedule: %w", err)
	}

	monthly, err := s.cfg.Monthly.cronSpec()
	if err != nil {
		return nil, fmt.Errorf("monthly schedule: %w", err)
	}

	yearly, err := s.cfg.Yearly.cronSpec()
	if err != nil {
		return nil, fmt.Errorf("yearly schedule: %w", err)
	}

	return []cronJob{
		{JobDaily, daily, s.runDailyJob},
		{JobWeekly, weekly, s.runWeeklyJob},
		{JobMonthly, monthly, s.runMonthlyJob},
		{JobYearly, yearly, s.runYearlyJob},
	}, nil
}

// guard wraps a job so the pause flag is honored at fire time.
func (s *Service) guard(name string, run func(context.Context)) func() {
	return func() {
		if s.isPaused() {
			s.logger.Info("scheduler paused, job skipped", "job", name)

			return
		}

		run(context.Background())
	}
}

func (s *Service) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.paused
}

// Stop halts the cron calendar without waiting for running jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
		s.entries = nil
	}

	s.paused = false
}

// Pause suspends job execution while the calendar keeps ticking. It has
// no effect before Start.
func (s *Service) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.paused = true
	}
}

// Resume lifts a pause.
func (s *Service) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.paused = false
	}
}

// JobInfo is one cron entry in a Status report.
type JobInfo struct {
	ID      string `json:"id"`
	NextRun string `json:"next_run"`
}

// Status is the scheduler state snapshot served by the API.
type Status struct {
	State string    `json:"state"`
	Jobs  []JobInfo `json:"jobs"`
}

// Status reports the scheduler state and the next fire time per job.
func (s *Service) Status() Status {
	if !s.cfg.Enabled {
		return Status{State: StateDisabled, Jobs: []JobInfo{}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return Status{State: StateStopped, Jobs: []JobInfo{}}
	}

	state := StateRunning
	if s.paused {
		state = StatePaused
	}

	jobs := make([]JobInfo, 0, len(s.entries))

	for _, name := range []string{JobDaily, JobWeekly, JobMonthly, JobYearly} {
		id, ok := s.entries[name]
		if !ok {
			continue
		}

		jobs = append(jobs, JobInfo{
			ID:      name,
			NextRun: s.cron.Entry(id).Next.Format(time.RFC3339),
		})
	}

	return Status{State: state, Jobs: jobs}
}

// Trigger runs a job immediately in the background, regardless of the
// enabled flag or pause state.
func (s *Service) Trigger(job string) error {
	run, err := s.jobFunc(job)
	if err != nil {
		return err
	}

	go run(context.Background())

	return nil
}

func (s *Service) jobFunc(job string) (func(context.Context), error) {
	switch job {
	case JobDaily:
		return s.runDailyJob, nil
	case JobWeekly:
		return s.runWeeklyJob, nil
	case JobMonthly:
		return s.runMonthlyJob, nil
	case JobYearly:
		return s.runYearlyJob, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownJob, job)
}

// cronLogger adapts slog to the logging interface the cron job wrappers
// expect.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
