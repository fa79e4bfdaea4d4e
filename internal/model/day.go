package model

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// ParseDay turns "YYYY-MM-DD" into the UTC day [00:00:00.000, 23:59:59.999].
func ParseDay(s string) (from, to time.Time, err error) {
	d, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return d, d.Add(24*time.Hour - time.Millisecond), nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfMonth truncates t to the first day of its month, UTC.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
