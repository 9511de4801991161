package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{Data: config.DataConfig{Dir: t.TempDir()}}
}

func writeSummaryFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// telegramCapture collects sendMessage payloads from a stub Bot API.
type telegramCapture struct {
	mu    sync.Mutex
	paths []string
	texts []string
	chats []string
}

func (c *telegramCapture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.texts = append(c.texts, payload.Text)
		c.chats = append(c.chats, payload.ChatID)
		c.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func newTelegramFixture(t *testing.T, cfg *config.Config) (*TelegramNotifier, *telegramCapture) {
	t.Helper()

	capture := &telegramCapture{}
	srv := httptest.NewServer(capture.handler(t))
	t.Cleanup(srv.Close)

	notifier := NewTelegramNotifier("test-token", "42", cfg, quietLogger())
	notifier.baseURL = srv.URL

	return notifier, capture
}

func TestTelegramNotifier_AttachesSummaryOnSuccess(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSummaryFile(t, cfg.DailySummaryPath("2026-02-16"), "# 일일 업무 리포트\n\n내용")

	notifier, capture := newTelegramFixture(t, cfg)

	event := Event{Job: "daily", Status: StatusSuccess, Target: "2026-02-16"}
	require.NoError(t, notifier.Notify(context.Background(), event))

	require.Len(t, capture.texts, 1)
	assert.Equal(t, []string{"/sendMessage"}, capture.paths)
	assert.Equal(t, []string{"42"}, capture.chats)
	assert.Contains(t, capture.texts[0], "✅ [daily] 완료 — 2026-02-16")
	assert.Contains(t, capture.texts[0], strings.Repeat("─", 20))
	assert.Contains(t, capture.texts[0], "# 일일 업무 리포트")
}

func TestTelegramNotifier_HeaderOnlyOnFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSummaryFile(t, cfg.DailySummaryPath("2026-02-16"), "should not be sent")

	notifier, capture := newTelegramFixture(t, cfg)

	event := Event{Job: "daily", Status: StatusFailed, Target: "2026-02-16", Error: "boom"}
	require.NoError(t, notifier.Notify(context.Background(), event))

	require.Len(t, capture.texts, 1)
	assert.Equal(t, "❌ [daily] 실패 — 2026-02-16\n\nError: boom", capture.texts[0])
}

func TestTelegramNotifier_HeaderOnlyWhenSummaryMissing(t *testing.T) {
	t.Parallel()

	notifier, capture := newTelegramFixture(t, testConfig(t))

	event := Event{Job: "yearly", Status: StatusSuccess, Target: "2025"}
	require.NoError(t, notifier.Notify(context.Background(), event))

	require.Len(t, capture.texts, 1)
	assert.Equal(t, "✅ [yearly] 완료 — 2025", capture.texts[0])
}

func TestTelegramNotifier_SplitsLongSummary(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	body := strings.Repeat("가", 5000)
	writeSummaryFile(t, cfg.WeeklySummaryPath(2026, 7), body)

	notifier, capture := newTelegramFixture(t, cfg)

	event := Event{Job: "weekly", Status: StatusSuccess, Target: "2026-W07"}
	require.NoError(t, notifier.Notify(context.Background(), event))

	require.Len(t, capture.texts, 3)
	assert.Equal(t, "✅ [weekly] 완료 — 2026-W07", capture.texts[0])
	assert.Equal(t, strings.Repeat("가", telegramMaxLength), capture.texts[1])
	assert.Equal(t, strings.Repeat("가", 5000-telegramMaxLength), capture.texts[2])
}

func TestTelegramNotifier_ReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	notifier := NewTelegramNotifier("test-token", "42", nil, quietLogger())
	notifier.baseURL = srv.URL

	err := notifier.Notify(context.Background(), Event{Job: "daily", Status: StatusFailed, Target: "2026-02-16"})
	assert.ErrorContains(t, err, "unexpected status")
}

func TestSplitMessages_InlineWhenShort(t *testing.T) {
	t.Parallel()

	messages := splitMessages("header", "body")

	require.Len(t, messages, 1)
	assert.Equal(t, "header\n\n"+strings.Repeat("─", 20)+"\nbody", messages[0])
}

func TestSplitMessages_EmptyBodySendsHeaderOnly(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"header"}, splitMessages("header", ""))
}

func TestSummaryPathFor_ResolvesPerJob(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	tests := []struct {
		job    string
		target string
		want   string
	}{
		{JobDaily, "2026-02-16", cfg.DailySummaryPath("2026-02-16")},
		{JobWeekly, "2026-W07", cfg.WeeklySummaryPath(2026, 7)},
		{JobMonthly, "2026-02", cfg.MonthlySummaryPath(2026, 2)},
		{JobYearly, "2025", cfg.YearlySummaryPath(2025)},
	}

	for _, tt := range tests {
		got, err := summaryPathFor(cfg, tt.job, tt.target)
		require.NoError(t, err, "job %s", tt.job)
		assert.Equal(t, tt.want, got, "job %s", tt.job)
	}
}

func TestSummaryPathFor_UnknownJobResolvesEmpty(t *testing.T) {
	t.Parallel()

	got, err := summaryPathFor(testConfig(t), "hourly", "whatever")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummaryPathFor_RejectsMalformedTargets(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	_, err := summaryPathFor(cfg, JobWeekly, "2026-07")
	assert.Error(t, err)

	_, err = summaryPathFor(cfg, JobMonthly, "202602")
	assert.Error(t, err)

	_, err = summaryPathFor(cfg, JobYearly, "last year")
	assert.Error(t, err)
}
