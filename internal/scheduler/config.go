// Package scheduler runs the recap pipeline on a cron calendar: a full
// daily run for yesterday plus weekly, monthly, and yearly rollups. Every
// job outcome lands in a capped history file and fans out to the
// configured notification channels. Jobs stay manually triggerable even
// when the calendar itself is disabled.
package scheduler

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DailySchedule configures the full daily pipeline run.
type DailySchedule struct {
	Time    string `toml:"time"`
	Enrich  bool   `toml:"enrich"`
	Batch   bool   `toml:"batch"`
	Workers int    `toml:"workers"`
}

// WeeklySchedule configures the weekly rollup. Day is a cron day-of-week
// name ("mon" through "sun").
type WeeklySchedule struct {
	Day  string `toml:"day"`
	Time string `toml:"time"`
}

// MonthlySchedule configures the monthly rollup on a fixed day of month.
type MonthlySchedule struct {
	Day  int    `toml:"day"`
	Time string `toml:"time"`
}

// YearlySchedule configures the yearly rollup on a fixed calendar date.
type YearlySchedule struct {
	Month int    `toml:"month"`
	Day   int    `toml:"day"`
	Time  string `toml:"time"`
}

// NotificationPolicy selects which job outcomes reach the external
// notification channels. The log channel ignores it.
type NotificationPolicy struct {
	OnFailure bool `toml:"on_failure"`
	OnSuccess bool `toml:"on_success"`
}

// TelegramSection toggles the Telegram channel. The bot credentials come
// from the application config, not the schedule file.
type TelegramSection struct {
	Enabled bool `toml:"enabled"`
}

// SlackSection toggles the Slack channel and names the target channel.
type SlackSection struct {
	Enabled bool   `toml:"enabled"`
	Channel string `toml:"channel"`
}

// ScheduleConfig is the [scheduler] table of schedule.toml.
type ScheduleConfig struct {
	Enabled      bool               `toml:"enabled"`
	Timezone     string             `toml:"timezone"`
	Daily        DailySchedule      `toml:"daily"`
	Weekly       WeeklySchedule     `toml:"weekly"`
	Monthly      MonthlySchedule    `toml:"monthly"`
	Yearly       YearlySchedule     `toml:"yearly"`
	Notification NotificationPolicy `toml:"notification"`
	Telegram     TelegramSection    `toml:"telegram"`
	Slack        SlackSection       `toml:"slack"`
}

// DefaultScheduleConfig returns the schedule used when schedule.toml is
// absent: disabled, Seoul time, daily 02:00, weekly Monday 03:00, monthly
// on the 1st at 04:00, yearly on January 1 at 05:00, failures notified.
func DefaultScheduleConfig() *ScheduleConfig {
	return &ScheduleConfig{
		Timezone:     "Asia/Seoul",
		Daily:        DailySchedule{Time: "02:00", Enrich: true, Workers: 5},
		Weekly:       WeeklySchedule{Day: "mon", Time: "03:00"},
		Monthly:      MonthlySchedule{Day: 1, Time: "04:00"},
		Yearly:       YearlySchedule{Month: 1, Day: 1, Time: "05:00"},
		Notification: NotificationPolicy{OnFailure: true},
	}
}

// LoadScheduleConfig reads schedule.toml from path. A missing file yields
// the defaults, and fields absent from the file keep their default values.
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	cfg := DefaultScheduleConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read schedule config %s: %w", path, err)
	}

	doc := struct {
		Scheduler ScheduleConfig `toml:"scheduler"`
	}{Scheduler: *cfg}

	err = toml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("parse schedule config %s: %w", path, err)
	}

	out := doc.Scheduler

	return &out, nil
}

// parseClock splits an "HH:MM" clock string.
func parseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", clock)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}

	return hour, minute, nil
}

func (d DailySchedule) cronSpec() (string, error) {
	hour, minute, err := parseClock(d.Time)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (w WeeklySchedule) cronSpec() (string, error) {
	hour, minute, err := parseClock(w.Time)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d %d * * %s", minute, hour, w.Day), nil
}

func (m MonthlySchedule) cronSpec() (string, error) {
	hour, minute, err := parseClock(m.Time)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d %d %d * *", minute, hour, m.Day), nil
}

func (y YearlySchedule) cronSpec() (string, error) {
	hour, minute, err := parseClock(y.Time)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d %d %d %d *", minute, hour, y.Day, y.Month), nil
}
