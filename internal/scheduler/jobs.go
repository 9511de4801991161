package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workrecap/workrecap/internal/pipeline"
	"github.com/workrecap/workrecap/pkg/dateutil"
)

// runJob executes one job body, records the outcome, and notifies. The
// event is recorded and announced whether fn succeeds or not.
func (s *Service) runJob(ctx context.Context, job, target string, fn func(context.Context) error) {
	done := s.metrics.TrackJob(ctx)
	defer done()

	event := Event{
		Job:         job,
		Status:      StatusSuccess,
		TriggeredAt: s.now().UTC().Format(time.RFC3339),
		Target:      target,
	}

	s.logger.Info("scheduler job starting", "job", job, "target", target)

	err := fn(ctx)
	if err != nil {
		s.logger.Error("scheduler job failed", "job", job, "target", target, "error", err)

		event.Status = StatusFailed
		event.Error = err.Error()
	}

	event.CompletedAt = s.now().UTC().Format(time.RFC3339)

	s.metrics.RecordSchedulerJob(ctx, job, event.Status)

	err = s.history.Record(event)
	if err != nil {
		s.logger.Warn("scheduler history write failed", "job", job, "error", err)
	}

	err = s.notifier.Notify(ctx, event)
	if err != nil {
		s.logger.Warn("scheduler notification failed", "job", job, "error", err)
	}
}

// runDailyJob runs the full pipeline for yesterday.
func (s *Service) runDailyJob(ctx context.Context) {
	target := s.now().AddDate(0, 0, -1).Format(dateutil.Layout)

	s.runJob(ctx, JobDaily, target, func(ctx context.Context) error {
		_, err := s.pipeline.RunDaily(ctx, target, pipeline.RunOptions{})

		return err
	})
}

// runWeeklyJob generates last week's rollup.
func (s *Service) runWeeklyJob(ctx context.Context) {
	year, week := s.now().AddDate(0, 0, -7).ISOWeek()
	target := fmt.Sprintf("%d-W%02d", year, week)

	s.runJob(ctx, JobWeekly, target, func(ctx context.Context) error {
		_, err := s.pipeline.RunWeekly(ctx, year, week, false)

		return err
	})
}

// runMonthlyJob regenerates last month's weeklies, then the monthly
// rollup. A failing week is skipped so it cannot block the month.
func (s *Service) runMonthlyJob(ctx context.Context) {
	year, month := previousMonth(s.now())
	target := fmt.Sprintf("%d-%02d", year, month)

	s.runJob(ctx, JobMonthly, target, func(ctx context.Context) error {
		s.cascadeWeeks(ctx, year, month)

		_, err := s.pipeline.RunMonthly(ctx, year, month, false)

		return err
	})
}

// runYearlyJob rebuilds the hierarchy for last year: weeklies and
// monthlies best-effort, then the yearly rollup.
func (s *Service) runYearlyJob(ctx context.Context) {
	year := s.now().Year() - 1
	target := strconv.Itoa(year)

	s.runJob(ctx, JobYearly, target, func(ctx context.Context) error {
		for month := 1; month <= 12; month++ {
			s.cascadeWeeks(ctx, year, month)

			_, err := s.pipeline.RunMonthly(ctx, year, month, false)
			if err != nil {
				s.logger.Warn("monthly cascade skipped", "year", year, "month", month, "error", err)
			}
		}

		_, err := s.pipeline.RunYearly(ctx, year, false)

		return err
	})
}

// cascadeWeeks regenerates every weekly summary overlapping a month,
// skipping weeks that fail.
func (s *Service) cascadeWeeks(ctx context.Context, year, month int) {
	for _, wk := range dateutil.WeeksInMonth(year, month) {
		_, err := s.pipeline.RunWeekly(ctx, wk.Year, wk.Week, false)
		if err != nil {
			s.logger.Warn("weekly cascade skipped", "year", wk.Year, "week", wk.Week, "error", err)
		}
	}
}

// previousMonth returns the calendar month before t's.
func previousMonth(t time.Time) (year, month int) {
	year, month = t.Year(), int(t.Month())-1
	if month == 0 {
		return year - 1, 12
	}

	return year, month
}
