package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/pkg/textutil"
)

// telegramMaxLength is the Bot API per-message character limit.
const telegramMaxLength = 4096

// telegramAPIBase is the Bot API endpoint root.
const telegramAPIBase = "https://api.telegram.org/bot"

// telegramTimeout bounds each sendMessage call.
const telegramTimeout = 30 * time.Second

// TelegramNotifier posts job outcomes to a Telegram chat. Successful jobs
// get the generated summary attached; bodies over the API length cap are
// sent as follow-up chunks.
type TelegramNotifier struct {
	chatID  string
	baseURL string
	cfg     *config.Config
	client  *http.Client
	logger  *slog.Logger
}

// NewTelegramNotifier builds a notifier for the given bot token and chat.
// cfg locates summary files to attach; nil skips attachments.
func NewTelegramNotifier(botToken, chatID string, cfg *config.Config, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &TelegramNotifier{
		chatID:  chatID,
		baseURL: telegramAPIBase + botToken,
		cfg:     cfg,
		client:  &http.Client{Timeout: telegramTimeout},
		logger:  logger,
	}
}

// Notify sends the event header and, on success, the summary body.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	header := formatEventHeader(event)
	body := n.readSummary(event)

	for _, msg := range splitMessages(header, body) {
		err := n.sendMessage(ctx, msg)
		if err != nil {
			return err
		}
	}

	return nil
}

// readSummary loads the summary a successful job produced, or "" when
// there is nothing to attach.
func (n *TelegramNotifier) readSummary(event Event) string {
	if event.Status != StatusSuccess || n.cfg == nil {
		return ""
	}

	path, err := summaryPathFor(n.cfg, event.Job, event.Target)
	if err != nil {
		n.logger.Warn("summary attachment skipped", "job", event.Job, "target", event.Target, "error", err)

		return ""
	}

	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			n.logger.Warn("summary attachment unreadable", "path", path, "error", err)
		}

		return ""
	}

	return string(data)
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"chat_id": n.chatID, "text": text})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: unexpected status %s", resp.Status)
	}

	return nil
}

// splitMessages composes the outgoing message list: header and body ride
// together when they fit the cap, otherwise the header goes first and the
// body follows in cap-sized chunks.
func splitMessages(header, body string) []string {
	if body == "" {
		return []string{header}
	}

	separator := "\n\n" + strings.Repeat("─", 20) + "\n"

	full := header + separator + body
	if utf8.RuneCountInString(full) <= telegramMaxLength {
		return []string{full}
	}

	return append([]string{header}, textutil.SplitByLength(body, telegramMaxLength)...)
}

// summaryPathFor resolves the summary file a job target refers to.
// Unknown job names resolve to "".
func summaryPathFor(cfg *config.Config, job, target string) (string, error) {
	switch job {
	case JobDaily:
		return cfg.DailySummaryPath(target), nil

	case JobWeekly:
		year, week, err := splitWeeklyTarget(target)
		if err != nil {
			return "", err
		}

		return cfg.WeeklySummaryPath(year, week), nil

	case JobMonthly:
		year, month, err := splitMonthlyTarget(target)
		if err != nil {
			return "", err
		}

		return cfg.MonthlySummaryPath(year, month), nil

	case JobYearly:
		year, err := strconv.Atoi(target)
		if err != nil {
			return "", fmt.Errorf("invalid yearly target %q: %w", target, err)
		}

		return cfg.YearlySummaryPath(year), nil
	}

	return "", nil
}

// splitWeeklyTarget parses a "2026-W07" weekly target.
func splitWeeklyTarget(target string) (year, week int, err error) {
	parts := strings.SplitN(target, "-W", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid weekly target %q", target)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid weekly target %q: %w", target, err)
	}

	week, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid weekly target %q: %w", target, err)
	}

	return year, week, nil
}

// splitMonthlyTarget parses a "2026-01" monthly target.
func splitMonthlyTarget(target string) (year, month int, err error) {
	parts := strings.SplitN(target, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid monthly target %q", target)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid monthly target %q: %w", target, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid monthly target %q: %w", target, err)
	}

	return year, month, nil
}
