package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/workrecap/workrecap/pkg/recap"
)

// printRangeResults writes the per-range count line and one marked line
// per date. It returns an error when any date failed so the command
// exits nonzero.
func printRangeResults(out io.Writer, label string, results []recap.DateResult) error {
	succeeded, skipped, failed := countResults(results)

	fmt.Fprintf(out, "%s %d day(s): %d succeeded, %d skipped, %d failed\n",
		label, len(results), succeeded, skipped, failed)

	for _, r := range results {
		fmt.Fprintf(out, "  %s %s: %s\n", phaseMark(r.Status), r.Date, r.Status)
	}

	if failed > 0 {
		return fmt.Errorf("%d date(s) failed", failed)
	}

	return nil
}

// printRunResults writes the merged pipeline range outcome and returns
// the failed count. The caller decides what runs before the nonzero
// exit: rollups, the exhausted report, and the usage report all print
// first.
func printRunResults(out io.Writer, results []recap.DateResult) int {
	succeeded, skipped, failed := countResults(results)

	fmt.Fprintf(out, "Range complete: %d succeeded, %d skipped, %d failed\n",
		succeeded, skipped, failed)

	for _, r := range results {
		detail := r.DailySummaryPath
		if detail == "" {
			detail = r.Error
		}

		fmt.Fprintf(out, "  %s %s: %s\n", runMark(r.Status), r.Date, detail)
	}

	return failed
}

// printExhausted reports dates the failure store will no longer retry.
func printExhausted(out io.Writer, a *app) {
	exhausted, err := a.failedDates().ExhaustedDates()
	if err != nil {
		a.logger.Warn("exhausted date lookup failed", "error", err)

		return
	}

	if len(exhausted) > 0 {
		fmt.Fprintf(out, "  %d date(s) exhausted (max %d retries reached)\n",
			len(exhausted), a.cfg.Pipeline.MaxFetchRetries)
	}
}

// progressPrinter adapts the command's output stream to the Progress
// callbacks the range services accept.
func progressPrinter(out io.Writer) func(string) {
	return func(msg string) {
		fmt.Fprintln(out, msg)
	}
}

func countResults(results []recap.DateResult) (succeeded, skipped, failed int) {
	for _, r := range results {
		switch r.Status {
		case recap.DateSuccess:
			succeeded++
		case recap.DateSkipped:
			skipped++
		case recap.DateFailed:
			failed++
		}
	}

	return succeeded, skipped, failed
}

func phaseMark(status recap.DateStatus) string {
	switch status {
	case recap.DateSuccess:
		return color.GreenString("+")
	case recap.DateSkipped:
		return color.YellowString("=")
	default:
		return color.RedString("!")
	}
}

func runMark(status recap.DateStatus) string {
	switch status {
	case recap.DateSuccess:
		return color.GreenString("✓")
	case recap.DateSkipped:
		return color.YellowString("—")
	default:
		return color.RedString("✗")
	}
}
