package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestSchedule_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule queue.Schedule
		from     time.Time
		want     time.Time
		str      string
	}{
		{"interval", queue.EveryInterval(30 * time.Second), at(2026, 1, 1, 10, 0), at(2026, 1, 1, 10, 0).Add(30 * time.Second), "every 30s"},
		{"every minute", queue.EveryMinute(), at(2026, 1, 1, 10, 0), at(2026, 1, 1, 10, 1), "every 1m0s"},
		{"every 15 minutes", queue.EveryMinutes(15), at(2026, 1, 1, 10, 0), at(2026, 1, 1, 10, 15), "every 15m0s"},
		{"every 2 hours", queue.EveryHours(2), at(2026, 1, 1, 10, 0), at(2026, 1, 1, 12, 0), "every 2h0m0s"},
		{"hourly later this hour", queue.HourlyAt(30), at(2026, 1, 1, 14, 15), at(2026, 1, 1, 14, 30), "hourly at :30"},
		{"hourly next hour", queue.HourlyAt(15), at(2026, 1, 1, 14, 30), at(2026, 1, 1, 15, 15), "hourly at :15"},
		{"hourly on the mark", queue.Hourly(), at(2026, 1, 1, 14, 0), at(2026, 1, 1, 15, 0), "hourly at :00"},
		{"daily later today", queue.DailyAt(15, 30), at(2026, 1, 1, 14, 0), at(2026, 1, 1, 15, 30), "daily at 15:30"},
		{"daily tomorrow", queue.DailyAt(9, 0), at(2026, 1, 1, 14, 0), at(2026, 1, 2, 9, 0), "daily at 09:00"},
		{"daily exact time", queue.DailyAt(14, 30), at(2026, 1, 1, 14, 30), at(2026, 1, 2, 14, 30), "daily at 14:30"},
		{"daily midnight across year", queue.Daily(), at(2026, 12, 31, 23, 59), at(2027, 1, 1, 0, 0), "daily at 00:00"},
		// 2026-01-01 is a Thursday
		{"weekly later this week", queue.WeeklyOn(time.Saturday, 8, 0), at(2026, 1, 1, 12, 0), at(2026, 1, 3, 8, 0), "weekly on Saturday at 08:00"},
		{"weekly same day later", queue.WeeklyOn(time.Thursday, 18, 0), at(2026, 1, 1, 12, 0), at(2026, 1, 1, 18, 0), "weekly on Thursday at 18:00"},
		{"weekly same day passed", queue.Weekly(time.Thursday), at(2026, 1, 1, 12, 0), at(2026, 1, 8, 0, 0), "weekly on Thursday at 00:00"},
		{"monthly this month", queue.MonthlyOn(15, 9, 0), at(2026, 1, 1, 0, 0), at(2026, 1, 15, 9, 0), "monthly on day 15 at 09:00"},
		{"monthly next month", queue.Monthly(1), at(2026, 1, 1, 0, 0), at(2026, 2, 1, 0, 0), "monthly on day 1 at 00:00"},
		{"monthly clamps to february", queue.Monthly(31), at(2026, 1, 31, 12, 0), at(2026, 2, 28, 0, 0), "monthly on day 31 at 00:00"},
		{"monthly leap year", queue.Monthly(30), at(2028, 1, 30, 12, 0), at(2028, 2, 29, 0, 0), "monthly on day 30 at 00:00"},
		{"monthly across year", queue.MonthlyOn(5, 6, 0), at(2026, 12, 10, 0, 0), at(2027, 1, 5, 6, 0), "monthly on day 5 at 06:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.schedule.Next(tt.from))
			assert.Equal(t, tt.str, tt.schedule.String())
		})
	}
}

func TestSchedule_KeepsLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)

	next := queue.DailyAt(9, 0).Next(from)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc), next)
	assert.Equal(t, loc, next.Location())
}
