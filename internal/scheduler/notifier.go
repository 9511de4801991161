package scheduler

import (
	"context"
	"fmt"
	"log/slog"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is one scheduler job outcome. Timestamps are RFC 3339 in UTC.
type Event struct {
	Job         string `json:"job"`
	Status      string `json:"status"`
	TriggeredAt string `json:"triggered_at"`
	Target      string `json:"target"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Notifier announces job outcomes. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the log. It never fails.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the event, at error level for failures.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if event.Status == StatusFailed {
		logger.Error("scheduler job failed", "job", event.Job, "target", event.Target, "error", event.Error)

		return nil
	}

	logger.Info("scheduler job finished", "job", event.Job, "status", event.Status, "target", event.Target)

	return nil
}

// CompositeNotifier fans an event out to several notifiers in order.
// Individual failures are logged and do not stop the rest.
type CompositeNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewCompositeNotifier combines notifiers into one.
func NewCompositeNotifier(logger *slog.Logger, notifiers ...Notifier) *CompositeNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &CompositeNotifier{notifiers: notifiers, logger: logger}
}

// Notify delivers the event to every wrapped notifier.
func (c *CompositeNotifier) Notify(ctx context.Context, event Event) error {
	for _, n := range c.notifiers {
		err := n.Notify(ctx, event)
		if err != nil {
			c.logger.Warn("notifier failed", "job", event.Job, "error", err)
		}
	}

	return nil
}

// Gated wraps next so it only sees the outcomes the notification policy
// allows; everything else is dropped silently.
func Gated(next Notifier, policy NotificationPolicy) Notifier {
	return gatedNotifier{next: next, policy: policy}
}

type gatedNotifier struct {
	next   Notifier
	policy NotificationPolicy
}

func (g gatedNotifier) Notify(ctx context.Context, event Event) error {
	if event.Status == StatusFailed && !g.policy.OnFailure {
		return nil
	}

	if event.Status != StatusFailed && !g.policy.OnSuccess {
		return nil
	}

	return g.next.Notify(ctx, event)
}

// formatEventHeader renders the channel-independent message header:
// status icon, job name, Korean status word, and target, plus timing and
// error lines when present.
func formatEventHeader(event Event) string {
	icon, statusText := "❌", "실패"
	if event.Status == StatusSuccess {
		icon, statusText = "✅", "완료"
	}

	header := fmt.Sprintf("%s [%s] %s — %s", icon, event.Job, statusText, event.Target)

	if event.TriggeredAt != "" && event.CompletedAt != "" {
		header += fmt.Sprintf("\n\n⏱ %s → %s", event.TriggeredAt, event.CompletedAt)
	}

	if event.Error != "" {
		header += "\n\nError: " + event.Error
	}

	return header
}
