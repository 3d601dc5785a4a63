package queue

import (
	"fmt"
	"time"
)

// Schedule computes the next occurrence of a recurring task strictly after from
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type every struct {
	d time.Duration
}

func (s every) Next(from time.Time) time.Time { return from.Add(s.d) }

func (s every) String() string { return fmt.Sprintf("every %v", s.d) }

type hourly struct {
	minute int
}

func (s hourly) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourly) String() string { return fmt.Sprintf("hourly at :%02d", s.minute) }

type daily struct {
	hour, minute int
}

func (s daily) Next(from time.Time) time.Time {
	next := atClock(from, s.hour, s.minute)
	if !next.After(from) {
		next = atClock(from.AddDate(0, 0, 1), s.hour, s.minute)
	}
	return next
}

func (s daily) String() string { return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute) }

type weekly struct {
	weekday      time.Weekday
	hour, minute int
}

func (s weekly) Next(from time.Time) time.Time {
	days := (int(s.weekday) - int(from.Weekday()) + 7) % 7
	next := atClock(from.AddDate(0, 0, days), s.hour, s.minute)
	if !next.After(from) {
		next = atClock(from.AddDate(0, 0, days+7), s.hour, s.minute)
	}
	return next
}

func (s weekly) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// monthly clamps day to the month length, so day 31 runs on the last day of shorter months
type monthly struct {
	day, hour, minute int
}

func (s monthly) Next(from time.Time) time.Time {
	next := s.in(from.Year(), from.Month(), from.Location())
	if !next.After(from) {
		first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, 0)
		next = s.in(first.Year(), first.Month(), from.Location())
	}
	return next
}

func (s monthly) in(year int, month time.Month, loc *time.Location) time.Time {
	day := min(s.day, daysInMonth(year, month))
	return time.Date(year, month, day, s.hour, s.minute, 0, 0, loc)
}

func (s monthly) String() string {
	return fmt.Sprintf("monthly on day %d at %02d:%02d", s.day, s.hour, s.minute)
}

func atClock(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EveryInterval runs every d, counted from the previous occurrence
func EveryInterval(d time.Duration) Schedule { return every{d: d} }

func EveryMinute() Schedule { return every{d: time.Minute} }

func EveryMinutes(n int) Schedule { return every{d: time.Duration(n) * time.Minute} }

func EveryHours(n int) Schedule { return every{d: time.Duration(n) * time.Hour} }

// Hourly runs at the top of every hour
func Hourly() Schedule { return hourly{} }

func HourlyAt(minute int) Schedule { return hourly{minute: minute} }

// Daily runs at midnight in the location of the scheduler clock
func Daily() Schedule { return daily{} }

func DailyAt(hour, minute int) Schedule { return daily{hour: hour, minute: minute} }

func Weekly(weekday time.Weekday) Schedule { return weekly{weekday: weekday} }

func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weekly{weekday: weekday, hour: hour, minute: minute}
}

func Monthly(day int) Schedule { return monthly{day: day} }

func MonthlyOn(day, hour, minute int) Schedule {
	return monthly{day: day, hour: hour, minute: minute}
}
