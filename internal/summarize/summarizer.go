// Package summarize renders normalized activity data into the Markdown
// summary hierarchy under data/summaries: per-date daily reports plus
// weekly, monthly, and yearly rollups that each condense the level below.
// Daily generation reads activities.jsonl and stats.json; rollups read
// only the Markdown of the level beneath them and go stale by file mtime,
// so regenerating a day ripples upward one level per pass.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/internal/llm/provider"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// Prompt template names double as the router tasks of the calls they feed.
const (
	taskDaily   = "daily"
	taskWeekly  = "weekly"
	taskMonthly = "monthly"
	taskYearly  = "yearly"
	taskQuery   = "query"

	// splitMarker divides prompts/daily.md: the static instructions above
	// it become the cacheable system prompt, the templated part below it
	// renders per date.
	splitMarker = "<!-- SPLIT -->"

	// summarySeparator joins source summaries into one user message.
	summarySeparator = "\n\n---\n\n"

	// DefaultQueryMonths is how many monthly summaries Query reads when
	// the caller does not say.
	DefaultQueryMonths = 3
)

// emptyDayFormat is written instead of an LLM summary when a date has no
// activities.
const emptyDayFormat = "# %s\n\n활동이 없는 날 (No activity on this day)\n"

// Sentinel errors for missing summarizer inputs.
var (
	// ErrActivitiesNotFound reports a date that was never normalized.
	ErrActivitiesNotFound = errors.New("activities file not found")
	// ErrStatsNotFound reports a normalized date missing its stats file.
	ErrStatsNotFound = errors.New("stats file not found")
	// ErrPromptNotFound reports a missing prompt template.
	ErrPromptNotFound = errors.New("prompt template not found")
	// ErrNoSourceSummaries reports a rollup with nothing to condense.
	ErrNoSourceSummaries = errors.New("no source summaries found")
	// ErrNoQueryContext reports a query with no monthly summaries behind it.
	ErrNoQueryContext = errors.New("no summary data available for query context")
)

// Chatter is the slice of the LLM router the summarizer uses. Satisfied
// by *llm.Router.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userContent string, call llm.ChatCall) (string, error)
	SubmitBatch(ctx context.Context, task string, items []llm.BatchItem) (string, error)
	WaitForBatch(ctx context.Context, task, batchID string, opts llm.WaitOptions) ([]provider.BatchResult, error)
}

// Options wires a Summarizer. Config and LLM are required. Daily and
// Checkpoints are optional; with no daily-state store, range freshness
// falls back to output file existence.
type Options struct {
	Config      *config.Config
	LLM         Chatter
	Daily       *state.DailyStateStore
	Checkpoints *state.Checkpoints
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Summarizer generates the Markdown summary hierarchy and answers free-form
// questions over it.
type Summarizer struct {
	cfg     *config.Config
	llm     Chatter
	daily   *state.DailyStateStore
	checks  *state.Checkpoints
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a Summarizer from opts.
func New(opts Options) *Summarizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Summarizer{
		cfg:     opts.Config,
		llm:     opts.LLM,
		daily:   opts.Daily,
		checks:  opts.Checkpoints,
		metrics: opts.Metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// dailyInput is one date's normalized data, loaded for summary generation.
type dailyInput struct {
	activities []recap.Activity
	stats      recap.DailyStats
}

// promptParts is a prepared chat request.
type promptParts struct {
	system string
	user   string
}

// Daily generates the daily summary for one date and returns its path.
// A date without activities gets a marker file instead of an LLM call;
// either way the summarize checkpoint and daily state advance.
func (s *Summarizer) Daily(ctx context.Context, date string) (path string, err error) {
	start := time.Now()
	status := "error"

	defer func() {
		s.metrics.RecordPhase(ctx, "summarize", status, time.Since(start))
	}()

	_, err = dateutil.Parse(date)
	if err != nil {
		return "", err
	}

	in, err := s.loadDailyInput(date)
	if err != nil {
		return "", err
	}

	outputPath := s.cfg.DailySummaryPath(date)

	if len(in.activities) == 0 {
		s.logger.Info("no activities, skipping LLM call", "date", date)

		err = saveMarkdown(outputPath, fmt.Sprintf(emptyDayFormat, date))
		if err != nil {
			return "", err
		}

		s.markSummarized(date)

		status = "success"

		return outputPath, nil
	}

	prompt, err := s.buildDailyPrompt(date, in)
	if err != nil {
		return "", err
	}

	response, err := s.llm.Chat(ctx, prompt.system, prompt.user, llm.ChatCall{
		Task:              taskDaily,
		CacheSystemPrompt: true,
	})
	if err != nil {
		return "", err
	}

	err = saveMarkdown(outputPath, response)
	if err != nil {
		return "", err
	}

	s.logger.Info("daily summary generated", "date", date, "path", outputPath)
	s.markSummarized(date)

	status = "success"

	return outputPath, nil
}

// Weekly generates the rollup of one ISO week's daily summaries. A current
// output is returned as is unless force is set.
func (s *Summarizer) Weekly(ctx context.Context, year, week int, force bool) (string, error) {
	outputPath := s.cfg.WeeklySummaryPath(year, week)
	inputs := s.dailyPathsForWeek(year, week)

	if !force && !isStale(outputPath, inputs) {
		s.logger.Info("weekly summary is current, skipping", "year", year, "week", week)

		return outputPath, nil
	}

	contents, err := readFiles(inputs)
	if err != nil {
		return "", err
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("weekly %d-W%02d: %w", year, week, ErrNoSourceSummaries)
	}

	system, err := s.systemPrompt(taskWeekly, struct{ Year, Week int }{year, week})
	if err != nil {
		return "", err
	}

	response, err := s.llm.Chat(ctx, system, strings.Join(contents, summarySeparator), llm.ChatCall{
		Task:              taskWeekly,
		CacheSystemPrompt: true,
	})
	if err != nil {
		return "", err
	}

	err = saveMarkdown(outputPath, response)
	if err != nil {
		return "", err
	}

	s.logger.Info("weekly summary generated", "year", year, "week", week, "path", outputPath)

	return outputPath, nil
}

// Monthly generates the rollup of the weekly summaries overlapping one
// month. Boundary weeks are addressed by their ISO year, which may differ
// from the calendar year.
func (s *Summarizer) Monthly(ctx context.Context, year, month int, force bool) (string, error) {
	outputPath := s.cfg.MonthlySummaryPath(year, month)
	inputs := s.weeklyPathsForMonth(year, month)

	if !force && !isStale(outputPath, inputs) {
		s.logger.Info("monthly summary is current, skipping", "year", year, "month", month)

		return outputPath, nil
	}

	contents, err := readFiles(inputs)
	if err != nil {
		return "", err
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("monthly %d-%02d: %w", year, month, ErrNoSourceSummaries)
	}

	system, err := s.systemPrompt(taskMonthly, struct{ Year, Month int }{year, month})
	if err != nil {
		return "", err
	}

	response, err := s.llm.Chat(ctx, system, strings.Join(contents, summarySeparator), llm.ChatCall{
		Task:              taskMonthly,
		CacheSystemPrompt: true,
	})
	if err != nil {
		return "", err
	}

	err = saveMarkdown(outputPath, response)
	if err != nil {
		return "", err
	}

	s.logger.Info("monthly summary generated", "year", year, "month", month, "path", outputPath)

	return outputPath, nil
}

// Yearly generates the rollup of one year's monthly summaries.
func (s *Summarizer) Yearly(ctx context.Context, year int, force bool) (string, error) {
	outputPath := s.cfg.YearlySummaryPath(year)
	inputs := s.monthlyPathsForYear(year)

	if !force && !isStale(outputPath, inputs) {
		s.logger.Info("yearly summary is current, skipping", "year", year)

		return outputPath, nil
	}

	contents, err := readFiles(inputs)
	if err != nil {
		return "", err
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("yearly %d: %w", year, ErrNoSourceSummaries)
	}

	system, err := s.systemPrompt(taskYearly, struct{ Year int }{year})
	if err != nil {
		return "", err
	}

	response, err := s.llm.Chat(ctx, system, strings.Join(contents, summarySeparator), llm.ChatCall{
		Task:              taskYearly,
		CacheSystemPrompt: true,
	})
	if err != nil {
		return "", err
	}

	err = saveMarkdown(outputPath, response)
	if err != nil {
		return "", err
	}

	s.logger.Info("yearly summary generated", "year", year, "path", outputPath)

	return outputPath, nil
}

// Query answers a free-form question grounded on the last monthsBack
// monthly summaries. Non-positive monthsBack means DefaultQueryMonths.
func (s *Summarizer) Query(ctx context.Context, question string, monthsBack int) (string, error) {
	if monthsBack <= 0 {
		monthsBack = DefaultQueryMonths
	}

	recent, err := s.recentMonthlyContext(monthsBack)
	if err != nil {
		return "", err
	}

	if recent == "" {
		return "", ErrNoQueryContext
	}

	system, err := s.systemPrompt(taskQuery, nil)
	if err != nil {
		return "", err
	}

	user := fmt.Sprintf("## Context\n\n%s\n\n## 질문\n\n%s", recent, question)

	return s.llm.Chat(ctx, system, user, llm.ChatCall{
		Task:              taskQuery,
		CacheSystemPrompt: true,
	})
}

// loadDailyInput reads one date's activities and stats. Both files are
// required: a missing one means the date was never normalized, which no
// amount of re-summarizing fixes.
func (s *Summarizer) loadDailyInput(date string) (dailyInput, error) {
	activitiesPath := s.cfg.ActivitiesPath(date)
	statsPath := s.cfg.StatsPath(date)

	_, err := os.Stat(activitiesPath)
	if err != nil {
		return dailyInput{}, fmt.Errorf("%w: %s", ErrActivitiesNotFound, activitiesPath)
	}

	_, err = os.Stat(statsPath)
	if err != nil {
		return dailyInput{}, fmt.Errorf("%w: %s", ErrStatsNotFound, statsPath)
	}

	activities, err := recap.LoadJSONL[recap.Activity](activitiesPath)
	if err != nil {
		return dailyInput{}, err
	}

	var stats recap.DailyStats

	err = recap.LoadJSON(statsPath, &stats)
	if err != nil {
		return dailyInput{}, err
	}

	return dailyInput{activities: activities, stats: stats}, nil
}

// dailyPromptData is the template context below the split marker in
// prompts/daily.md.
type dailyPromptData struct {
	Date  string
	Stats recap.DailyStats
}

// buildDailyPrompt renders prompts/daily.md around the date's data. With a
// split marker the static half becomes the system prompt and the rendered
// half prefixes the formatted activities; without one the whole rendered
// template is the system prompt.
func (s *Summarizer) buildDailyPrompt(date string, in dailyInput) (promptParts, error) {
	text, err := s.readPrompt(taskDaily)
	if err != nil {
		return promptParts{}, err
	}

	data := dailyPromptData{Date: date, Stats: in.stats}
	formatted := formatActivities(in.activities)

	static, dynamic, found := strings.Cut(text, splitMarker)
	if !found {
		rendered, renderErr := renderPrompt(taskDaily, text, data)
		if renderErr != nil {
			return promptParts{}, renderErr
		}

		return promptParts{system: rendered, user: formatted}, nil
	}

	rendered, err := renderPrompt(taskDaily, dynamic, data)
	if err != nil {
		return promptParts{}, err
	}

	return promptParts{
		system: strings.TrimSpace(static),
		user:   strings.TrimSpace(rendered) + "\n\n" + formatted,
	}, nil
}

// systemPrompt loads and renders a whole prompt template.
func (s *Summarizer) systemPrompt(task string, data any) (string, error) {
	text, err := s.readPrompt(task)
	if err != nil {
		return "", err
	}

	return renderPrompt(task, text, data)
}

// readPrompt reads the template file for a task.
func (s *Summarizer) readPrompt(task string) (string, error) {
	path := s.cfg.PromptPath(task)

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrPromptNotFound, path)
	}

	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// renderPrompt executes one prompt template with its data.
func renderPrompt(task, text string, data any) (string, error) {
	tmpl, err := template.New(task).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", task, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", task, err)
	}

	return buf.String(), nil
}

// dailyPathsForWeek returns the existing daily summaries of an ISO week.
func (s *Summarizer) dailyPathsForWeek(year, week int) []string {
	since, until := dateutil.WeeklyRange(year, week)

	dates, err := dateutil.Range(since, until)
	if err != nil {
		return nil
	}

	paths := make([]string, 0, len(dates))
	for _, date := range dates {
		paths = append(paths, s.cfg.DailySummaryPath(date))
	}

	return existingOnly(paths)
}

// weeklyPathsForMonth returns the existing weekly summaries overlapping a
// month.
func (s *Summarizer) weeklyPathsForMonth(year, month int) []string {
	weeks := dateutil.WeeksInMonth(year, month)

	paths := make([]string, 0, len(weeks))
	for _, wk := range weeks {
		paths = append(paths, s.cfg.WeeklySummaryPath(wk.Year, wk.Week))
	}

	return existingOnly(paths)
}

// monthlyPathsForYear returns the existing monthly summaries of a year.
func (s *Summarizer) monthlyPathsForYear(year int) []string {
	paths := make([]string, 0, 12)
	for month := 1; month <= 12; month++ {
		paths = append(paths, s.cfg.MonthlySummaryPath(year, month))
	}

	return existingOnly(paths)
}

// recentMonthlyContext joins the existing monthly summaries of the last
// monthsBack months, newest first, walking back across year boundaries.
func (s *Summarizer) recentMonthlyContext(monthsBack int) (string, error) {
	now := s.now()
	year, month := now.Year(), int(now.Month())

	var contents []string

	for i := 0; i < monthsBack; i++ {
		path := s.cfg.MonthlySummaryPath(year, month)

		data, err := os.ReadFile(path)
		if err == nil {
			contents = append(contents, string(data))
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read summary %s: %w", path, err)
		}

		month--
		if month == 0 {
			month = 12
			year--
		}
	}

	return strings.Join(contents, summarySeparator), nil
}

// isDateSummarized reports whether a date's daily summary is current. With
// a daily-state store the timestamp cascade decides; without one the
// output file's presence does.
func (s *Summarizer) isDateSummarized(date string) bool {
	if s.daily != nil {
		stale, err := s.daily.IsSummarizeStale(date)
		if err != nil {
			s.logger.Warn("staleness check failed, resummarizing", "date", date, "error", err)

			return false
		}

		return !stale
	}

	_, err := os.Stat(s.cfg.DailySummaryPath(date))

	return err == nil
}

// markSummarized advances the summary checkpoint and daily-state record.
func (s *Summarizer) markSummarized(date string) {
	if s.checks != nil {
		err := s.checks.Update(state.CheckpointLastSummaryDate, date)
		if err != nil {
			s.logger.Warn("advance summary checkpoint failed", "date", date, "error", err)
		}
	}

	if s.daily != nil {
		err := s.daily.SetTimestamp(state.PhaseSummarize, date, time.Time{})
		if err != nil {
			s.logger.Warn("mark summarize state failed", "date", date, "error", err)
		}
	}
}

// isStale reports whether output is missing or any input is newer than it.
// With no inputs a present output is never stale: there is nothing to
// rebuild it from.
func isStale(outputPath string, inputPaths []string) bool {
	out, err := os.Stat(outputPath)
	if err != nil {
		return true
	}

	for _, path := range inputPaths {
		in, statErr := os.Stat(path)
		if statErr == nil && in.ModTime().After(out.ModTime()) {
			return true
		}
	}

	return false
}

// existingOnly keeps the paths that point at a file.
func existingOnly(paths []string) []string {
	var kept []string

	for _, path := range paths {
		_, err := os.Stat(path)
		if err == nil {
			kept = append(kept, path)
		}
	}

	return kept
}

// readFiles reads every path into memory, in order.
func readFiles(paths []string) ([]string, error) {
	contents := make([]string, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read summary %s: %w", path, err)
		}

		contents = append(contents, string(data))
	}

	return contents, nil
}

// saveMarkdown writes a summary file, creating parent directories.
func saveMarkdown(path, content string) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	err = os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// report forwards a formatted progress line when a callback is set.
func report(progress func(string), format string, args ...any) {
	if progress != nil {
		progress(fmt.Sprintf(format, args...))
	}
}
