package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/summarize"
	"github.com/workrecap/workrecap/pkg/recap"
)

const testDate = "2025-02-16"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Data: config.DataConfig{Dir: filepath.Join(t.TempDir(), "data")},
	}
}

// callLog records step invocations across all fakes so tests can
// assert cross-step ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.calls...)
}

type fakeFetcher struct {
	log        *callLog
	fetchErr   error
	rangeRes   []recap.DateResult
	rangeErr   error
	rangeForce bool
	rangeTypes []string
}

func (f *fakeFetcher) Fetch(_ context.Context, date string, _ []string) (map[string]string, error) {
	f.log.add("fetch:" + date)

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	return map[string]string{"prs": "/raw/prs.json"}, nil
}

func (f *fakeFetcher) FetchRange(_ context.Context, _, _ string, opts fetch.RangeOptions) ([]recap.DateResult, error) {
	f.log.add("fetch_range")
	f.rangeForce = opts.Force
	f.rangeTypes = opts.Types

	return f.rangeRes, f.rangeErr
}

// fakeNormalizer writes real files so storage hooks can read them back.
type fakeNormalizer struct {
	log          *callLog
	cfg          *config.Config
	activities   []recap.Activity
	stats        recap.DailyStats
	normalizeErr error
	rangeRes     []recap.DateResult
	rangeErr     error
	rangeBatch   bool
}

func (f *fakeNormalizer) Normalize(_ context.Context, date string) (string, string, error) {
	f.log.add("normalize:" + date)

	if f.normalizeErr != nil {
		return "", "", f.normalizeErr
	}

	actPath := f.cfg.ActivitiesPath(date)
	statsPath := f.cfg.StatsPath(date)

	if err := recap.SaveJSONL(actPath, f.activities); err != nil {
		return "", "", err
	}

	if err := recap.SaveJSON(statsPath, f.stats); err != nil {
		return "", "", err
	}

	return actPath, statsPath, nil
}

func (f *fakeNormalizer) NormalizeRange(_ context.Context, _, _ string, opts normalize.RangeOptions) ([]recap.DateResult, error) {
	f.log.add("normalize_range")
	f.rangeBatch = opts.Batch

	return f.rangeRes, f.rangeErr
}

// fakeSummarizer writes the summary files its callers read back.
type fakeSummarizer struct {
	log      *callLog
	cfg      *config.Config
	content  string
	dailyErr error
	rangeRes []recap.DateResult
	rangeErr error
}

func (f *fakeSummarizer) writeSummary(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
		return "", err
	}

	return path, nil
}

func (f *fakeSummarizer) Daily(_ context.Context, date string) (string, error) {
	f.log.add("summarize:" + date)

	if f.dailyErr != nil {
		return "", f.dailyErr
	}

	return f.writeSummary(f.cfg.DailySummaryPath(date))
}

func (f *fakeSummarizer) DailyRange(_ context.Context, _, _ string, _ summarize.RangeOptions) ([]recap.DateResult, error) {
	f.log.add("summarize_range")

	return f.rangeRes, f.rangeErr
}

func (f *fakeSummarizer) Weekly(_ context.Context, year, week int, _ bool) (string, error) {
	f.log.add("weekly")

	return f.writeSummary(f.cfg.WeeklySummaryPath(year, week))
}

func (f *fakeSummarizer) Monthly(_ context.Context, year, month int, _ bool) (string, error) {
	f.log.add("monthly")

	return f.writeSummary(f.cfg.MonthlySummaryPath(year, month))
}

func (f *fakeSummarizer) Yearly(_ context.Context, year int, _ bool) (string, error) {
	f.log.add("yearly")

	return f.writeSummary(f.cfg.YearlySummaryPath(year))
}

// storeCall is one recorded store invocation.
type storeCall struct {
	kind    string
	date    string
	level   string
	target  string
	content string
	count   int
}

type fakeStore struct {
	mu      sync.Mutex
	calls   []storeCall
	saveErr error
}

func (f *fakeStore) SaveActivities(_ context.Context, date string, activities []recap.Activity, _ recap.DailyStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, storeCall{kind: "activities", date: date, count: len(activities)})

	return f.saveErr
}

func (f *fakeStore) SaveSummary(_ context.Context, level, target, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, storeCall{kind: "summary", level: level, target: target, content: content})

	return f.saveErr
}

type fixture struct {
	pipe *Pipeline
	cfg  *config.Config
	log  *callLog
	f    *fakeFetcher
	n    *fakeNormalizer
	s    *fakeSummarizer
}

func newFixture(t *testing.T, store Store) fixture {
	t.Helper()

	cfg := testConfig(t)
	log := &callLog{}
	f := &fakeFetcher{log: log}
	n := &fakeNormalizer{
		log:        log,
		cfg:        cfg,
		activities: []recap.Activity{{Kind: recap.KindPRAuthored, Title: "Add feature"}},
		stats:      recap.DailyStats{Date: testDate, AuthoredCount: 1},
	}
	s := &fakeSummarizer{log: log, cfg: cfg, content: "# Daily recap"}

	pipe := New(Options{
		Config:    cfg,
		Fetch:     f,
		Normalize: n,
		Summarize: s,
		Store:     store,
		Logger:    quietLogger(),
	})

	return fixture{pipe: pipe, cfg: cfg, log: log, f: f, n: n, s: s}
}

// ── RunDaily ──

func TestRunDaily_RunsStepsInOrder(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)

	path, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, fx.cfg.DailySummaryPath(testDate), path)
	assert.Equal(t, []string{
		"fetch:" + testDate,
		"normalize:" + testDate,
		"summarize:" + testDate,
	}, fx.log.list())
}

func TestRunDaily_FetchFailureStopsRun(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.f.fetchErr = errors.New("GHES timeout")

	_, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	var stepErr *StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "fetch", stepErr.Step)
	assert.ErrorContains(t, err, "GHES timeout")
	assert.Equal(t, []string{"fetch:" + testDate}, fx.log.list())
}

func TestRunDaily_NormalizeFailurePreservesFetch(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.n.normalizeErr = errors.New("parse error")

	_, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	var stepErr *StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "normalize", stepErr.Step)
	assert.Equal(t, []string{"fetch:" + testDate, "normalize:" + testDate}, fx.log.list())
}

func TestRunDaily_SummarizeFailurePreservesNormalized(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.s.dailyErr = errors.New("LLM error")

	_, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	var stepErr *StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "summarize", stepErr.Step)
	assert.Len(t, fx.log.list(), 3)
}

func TestStepError_Message(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &StepError{Step: "fetch", Err: cause}

	assert.Equal(t, "Pipeline failed at 'fetch': boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRunDaily_StoresActivitiesAndSummary(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	fx := newFixture(t, store)

	_, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	require.NoError(t, err)
	require.Len(t, store.calls, 2)

	assert.Equal(t, "activities", store.calls[0].kind)
	assert.Equal(t, testDate, store.calls[0].date)
	assert.Equal(t, 1, store.calls[0].count)

	assert.Equal(t, "summary", store.calls[1].kind)
	assert.Equal(t, "daily", store.calls[1].level)
	assert.Equal(t, testDate, store.calls[1].target)
	assert.Equal(t, "# Daily recap", store.calls[1].content)
}

func TestRunDaily_StoreFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	store := &fakeStore{saveErr: errors.New("pg down")}
	fx := newFixture(t, store)

	path, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Len(t, store.calls, 2)
}

func TestRunDaily_NilStoreSkipsMirroring(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)

	path, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{})

	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestRunDaily_ReportsProgress(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)

	var lines []string

	_, err := fx.pipe.RunDaily(context.Background(), testDate, RunOptions{
		Progress: func(line string) { lines = append(lines, line) },
	})

	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "fetch")
	assert.Contains(t, lines[1], "normalize")
	assert.Contains(t, lines[2], "summarize")
}

// ── Rollup passthroughs ──

func TestRunWeekly_StoresSummary(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	fx := newFixture(t, store)

	path, err := fx.pipe.RunWeekly(context.Background(), 2025, 7, false)

	require.NoError(t, err)
	assert.FileExists(t, path)
	require.Len(t, store.calls, 1)
	assert.Equal(t, "weekly", store.calls[0].level)
	assert.Equal(t, "2025-W07", store.calls[0].target)
}

func TestRunMonthly_StoresSummary(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	fx := newFixture(t, store)

	_, err := fx.pipe.RunMonthly(context.Background(), 2025, 2, false)

	require.NoError(t, err)
	require.Len(t, store.calls, 1)
	assert.Equal(t, "monthly", store.calls[0].level)
	assert.Equal(t, "2025-02", store.calls[0].target)
}

func TestRunYearly_StoresSummary(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	fx := newFixture(t, store)

	_, err := fx.pipe.RunYearly(context.Background(), 2025, false)

	require.NoError(t, err)
	require.Len(t, store.calls, 1)
	assert.Equal(t, "yearly", store.calls[0].level)
	assert.Equal(t, "2025", store.calls[0].target)
}
