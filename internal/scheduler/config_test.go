package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScheduleConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadScheduleConfig(filepath.Join(t.TempDir(), "schedule.toml"))
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "02:00", cfg.Daily.Time)
	assert.True(t, cfg.Daily.Enrich)
	assert.False(t, cfg.Daily.Batch)
	assert.Equal(t, 5, cfg.Daily.Workers)
	assert.Equal(t, "mon", cfg.Weekly.Day)
	assert.Equal(t, "03:00", cfg.Weekly.Time)
	assert.Equal(t, 1, cfg.Monthly.Day)
	assert.Equal(t, "04:00", cfg.Monthly.Time)
	assert.Equal(t, 1, cfg.Yearly.Month)
	assert.Equal(t, 1, cfg.Yearly.Day)
	assert.Equal(t, "05:00", cfg.Yearly.Time)
	assert.True(t, cfg.Notification.OnFailure)
	assert.False(t, cfg.Notification.OnSuccess)
	assert.False(t, cfg.Telegram.Enabled)
	assert.False(t, cfg.Slack.Enabled)
}

func TestLoadScheduleConfig_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.toml")
	content := `[scheduler]
enabled = true
timezone = "UTC"

[scheduler.daily]
time = "06:30"
enrich = false

[scheduler.weekly]
day = "fri"

[scheduler.telegram]
enabled = true

[scheduler.slack]
enabled = true
channel = "#recaps"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadScheduleConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "06:30", cfg.Daily.Time)
	assert.False(t, cfg.Daily.Enrich)
	assert.Equal(t, 5, cfg.Daily.Workers)
	assert.Equal(t, "fri", cfg.Weekly.Day)
	assert.Equal(t, "03:00", cfg.Weekly.Time)
	assert.Equal(t, 1, cfg.Monthly.Day)
	assert.Equal(t, "04:00", cfg.Monthly.Time)
	assert.True(t, cfg.Telegram.Enabled)
	assert.True(t, cfg.Slack.Enabled)
	assert.Equal(t, "#recaps", cfg.Slack.Channel)
}

func TestLoadScheduleConfig_RejectsMalformedTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scheduler\nenabled ="), 0o644))

	_, err := LoadScheduleConfig(path)
	assert.ErrorContains(t, err, "parse schedule config")
}

func TestCronSpecs_Defaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultScheduleConfig()

	daily, err := cfg.Daily.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", daily)

	weekly, err := cfg.Weekly.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * mon", weekly)

	monthly, err := cfg.Monthly.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 4 1 * *", monthly)

	yearly, err := cfg.Yearly.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "0 5 1 1 *", yearly)
}

func TestCronSpecs_CustomClock(t *testing.T) {
	t.Parallel()

	weekly := WeeklySchedule{Day: "fri", Time: "18:45"}

	spec, err := weekly.cronSpec()
	require.NoError(t, err)
	assert.Equal(t, "45 18 * * fri", spec)
}

func TestParseClock_RejectsBadFormats(t *testing.T) {
	t.Parallel()

	for _, clock := range []string{"late", "7pm", "0730", "seven:30", "07:half"} {
		_, _, err := parseClock(clock)
		assert.Error(t, err, "clock %q", clock)
	}
}
