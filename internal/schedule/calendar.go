// Package schedule implements the availability engine: calendar-week
// normalization, per-day capacity grids, reservation validation and the
// read-only week schedule view.
package schedule

import "time"

const daysPerWeek = 7

// Calendar maps calendar dates to the day that starts their week and to
// a 0..6 weekday index. The week start day is configuration, not
// hardcoded arithmetic, to avoid silent locale bugs.
type Calendar struct {
	weekStart time.Weekday
}

// NewCalendar returns a calendar whose weeks begin on weekStart.
func NewCalendar(weekStart time.Weekday) *Calendar {
	return &Calendar{weekStart: weekStart}
}

// WeekdayIndex returns whole days elapsed since the start of t's week
// (week start day = 0). Correct across month and year boundaries.
func (c *Calendar) WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) - int(c.weekStart) + daysPerWeek) % daysPerWeek
}

// WeekStart returns 00:00 on the first day of the week containing t.
// Time-of-day components of t are truncated.
func (c *Calendar) WeekStart(t time.Time) time.Time {
	return truncateToDay(t).AddDate(0, 0, -c.WeekdayIndex(t))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
