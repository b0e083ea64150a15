package utils

import (
	"fmt"
	"log"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// ParseDate parses a date string using the default format.
// Logs an error and returns zero time if parsing fails.
func ParseDate(dateStr string) time.Time {
	t, err := time.Parse(DefaultDateFormat, dateStr)
	if err != nil {
		log.Printf("Error parsing date '%s' with format '%s': %v. Returning zero time.", dateStr, DefaultDateFormat, err)
		return time.Time{}
	}
	return t
}

// Midnight truncates t to 00:00:00 UTC of its calendar day. All occurrence
// and transaction dates are compared at this granularity.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last instant of t's calendar day in UTC, so that an
// occurrence dated "today" still counts as due.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Midnight(a).Equal(Midnight(b))
}

// NextOccurrence advances d by one frequency step. Monthly and yearly steps
// preserve the day-of-month where it exists in the target month and clamp to
// the month's last day otherwise (Jan 31 -> Feb 28/29). Plain AddDate would
// roll Jan 31 over into March.
func NextOccurrence(d time.Time, frequency string) (time.Time, error) {
	switch frequency {
	case "daily":
		return d.AddDate(0, 0, 1), nil
	case "weekly":
		return d.AddDate(0, 0, 7), nil
	case "monthly":
		return addMonthsClamped(d, 1), nil
	case "yearly":
		return addMonthsClamped(d, 12), nil
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", frequency)
	}
}

func addMonthsClamped(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	// Normalize the target month via a day-1 anchor, then clamp the day.
	anchor := time.Date(y, m, 1, 0, 0, 0, 0, d.Location()).AddDate(0, months, 0)
	last := daysInMonth(anchor.Year(), anchor.Month())
	if day > last {
		day = last
	}
	h, min, sec := d.Clock()
	return time.Date(anchor.Year(), anchor.Month(), day, h, min, sec, d.Nanosecond(), d.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
