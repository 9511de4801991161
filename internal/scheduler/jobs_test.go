package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/pkg/dateutil"
)

func TestRunDailyJob_TargetsYesterday(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)

	fx.svc.runDailyJob(context.Background())

	assert.Equal(t, []string{"daily:2026-03-13"}, fx.runner.log.list())

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, JobDaily, events[0].Job)
	assert.Equal(t, StatusSuccess, events[0].Status)
	assert.Equal(t, "2026-03-13", events[0].Target)
	assert.Equal(t, "2026-03-14T12:00:00Z", events[0].TriggeredAt)
	assert.Equal(t, "2026-03-14T12:00:00Z", events[0].CompletedAt)
	assert.Empty(t, events[0].Error)

	recorded, err := fx.history.List("", 0)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, events[0], recorded[0])
}

func TestRunDailyJob_RecordsFailure(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)
	fx.runner.dailyErr = errors.New("rate limited")

	fx.svc.runDailyJob(context.Background())

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, StatusFailed, events[0].Status)
	assert.Equal(t, "rate limited", events[0].Error)

	recorded, err := fx.history.List(JobDaily, 0)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, StatusFailed, recorded[0].Status)
}

func TestRunWeeklyJob_TargetsLastISOWeek(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)

	fx.svc.runWeeklyJob(context.Background())

	assert.Equal(t, []string{"weekly:2026-W10:false"}, fx.runner.log.list())

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, "2026-W10", events[0].Target)
	assert.Equal(t, StatusSuccess, events[0].Status)
}

func TestRunMonthlyJob_CascadesWeekliesFirst(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)

	fx.svc.runMonthlyJob(context.Background())

	want := []string{
		"weekly:2026-W05:false",
		"weekly:2026-W06:false",
		"weekly:2026-W07:false",
		"weekly:2026-W08:false",
		"weekly:2026-W09:false",
		"monthly:2026-02:false",
	}
	assert.Equal(t, want, fx.runner.log.list())

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, "2026-02", events[0].Target)
}

func TestRunMonthlyJob_WeeklyFailuresDoNotFailMonth(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)
	fx.runner.weeklyErr = errors.New("no source summaries found")

	fx.svc.runMonthlyJob(context.Background())

	calls := fx.runner.log.list()
	require.Len(t, calls, 6)
	assert.Equal(t, "monthly:2026-02:false", calls[5])

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, StatusSuccess, events[0].Status)
}

func TestRunMonthlyJob_MonthlyFailureFailsJob(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)
	fx.runner.monthlyErr = errors.New("llm unavailable")

	fx.svc.runMonthlyJob(context.Background())

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, StatusFailed, events[0].Status)
	assert.Equal(t, "llm unavailable", events[0].Error)
}

func TestRunMonthlyJob_JanuaryRollsBackToDecember(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)
	fx.svc.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }

	fx.svc.runMonthlyJob(context.Background())

	calls := fx.runner.log.list()
	require.Len(t, calls, 6)
	assert.Equal(t, "weekly:2025-W49:false", calls[0])
	assert.Equal(t, "weekly:2026-W01:false", calls[4])
	assert.Equal(t, "monthly:2025-12:false", calls[5])

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, "2025-12", events[0].Target)
}

func TestRunYearlyJob_CascadesBeforeYearly(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)

	fx.svc.runYearlyJob(context.Background())

	calls := fx.runner.log.list()

	wantWeeklies := 0
	for month := 1; month <= 12; month++ {
		wantWeeklies += len(dateutil.WeeksInMonth(2025, month))
	}

	var weeklies, monthlies int

	for _, call := range calls {
		switch {
		case strings.HasPrefix(call, "weekly:"):
			weeklies++
		case strings.HasPrefix(call, "monthly:"):
			monthlies++
		}
	}

	assert.Equal(t, wantWeeklies, weeklies)
	assert.Equal(t, 12, monthlies)
	assert.Equal(t, "yearly:2025:false", calls[len(calls)-1])

	// January's weeks come first, then the January monthly.
	assert.Equal(t, "weekly:2025-W01:false", calls[0])
	assert.Equal(t, "monthly:2025-01:false", calls[len(dateutil.WeeksInMonth(2025, 1))])

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, "2025", events[0].Target)
	assert.Equal(t, StatusSuccess, events[0].Status)
}

func TestRunYearlyJob_CascadeFailuresDoNotFailYear(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)
	fx.runner.weeklyErr = errors.New("no source summaries found")
	fx.runner.monthlyErr = errors.New("no source summaries found")

	fx.svc.runYearlyJob(context.Background())

	calls := fx.runner.log.list()
	assert.Equal(t, "yearly:2025:false", calls[len(calls)-1])

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, StatusSuccess, events[0].Status)
}

func TestRunYearlyJob_YearlyFailureFailsJob(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, nil)
	fx.runner.yearlyErr = errors.New("context deadline exceeded")

	fx.svc.runYearlyJob(context.Background())

	events := fx.notifier.list()
	require.Len(t, events, 1)
	assert.Equal(t, StatusFailed, events[0].Status)
	assert.Equal(t, "context deadline exceeded", events[0].Error)
}

func TestPreviousMonth(t *testing.T) {
	t.Parallel()

	year, month := previousMonth(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, year)
	assert.Equal(t, 2, month)

	year, month = previousMonth(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, year)
	assert.Equal(t, 12, month)
}
