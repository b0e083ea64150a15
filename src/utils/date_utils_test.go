package utils

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(DefaultDateFormat, value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		frequency string
		want      string
	}{
		{"daily", "2024-03-10", "daily", "2024-03-11"},
		{"daily across month end", "2024-01-31", "daily", "2024-02-01"},
		{"weekly", "2024-01-01", "weekly", "2024-01-08"},
		{"weekly across year end", "2023-12-28", "weekly", "2024-01-04"},
		{"monthly", "2024-03-15", "monthly", "2024-04-15"},
		{"monthly jan 31 clamps to leap feb", "2024-01-31", "monthly", "2024-02-29"},
		{"monthly jan 31 clamps to non-leap feb", "2023-01-31", "monthly", "2023-02-28"},
		{"monthly may 31 clamps to june 30", "2024-05-31", "monthly", "2024-06-30"},
		{"monthly dec wraps year", "2023-12-15", "monthly", "2024-01-15"},
		{"yearly", "2023-06-10", "yearly", "2024-06-10"},
		{"yearly from leap day", "2024-02-29", "yearly", "2025-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(mustDate(t, tt.date), tt.frequency)
			if err != nil {
				t.Fatalf("NextOccurrence(%s, %s) error: %v", tt.date, tt.frequency, err)
			}
			if formatted := got.Format(DefaultDateFormat); formatted != tt.want {
				t.Errorf("NextOccurrence(%s, %s) = %s, want %s", tt.date, tt.frequency, formatted, tt.want)
			}
		})
	}
}

func TestNextOccurrenceUnknownFrequency(t *testing.T) {
	if _, err := NextOccurrence(mustDate(t, "2024-01-01"), "fortnightly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestMonthlyClampDoesNotStick(t *testing.T) {
	// After clamping Jan 31 to Feb 29, the next step lands on Mar 29 since
	// only the stored cursor date is carried, not the original day-of-month.
	d := mustDate(t, "2024-01-31")
	d, err := NextOccurrence(d, "monthly")
	if err != nil {
		t.Fatal(err)
	}
	d, err = NextOccurrence(d, "monthly")
	if err != nil {
		t.Fatal(err)
	}
	if formatted := d.Format(DefaultDateFormat); formatted != "2024-03-29" {
		t.Errorf("second monthly step = %s, want 2024-03-29", formatted)
	}
}

func TestParseDate(t *testing.T) {
	if got := ParseDate("2024-07-04"); !SameDay(got, mustDate(t, "2024-07-04")) {
		t.Errorf("ParseDate returned %v", got)
	}
	if got := ParseDate("04/07/2024"); !got.IsZero() {
		t.Errorf("ParseDate of malformed input = %v, want zero time", got)
	}
}

func TestMidnightAndSameDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	late := time.Date(2024, 3, 10, 2, 30, 0, 0, loc) // 2024-03-09 21:30 UTC

	if got := Midnight(late); got.Format(DefaultDateFormat) != "2024-03-09" {
		t.Errorf("Midnight normalized to %s, want 2024-03-09 (UTC day)", got.Format(DefaultDateFormat))
	}
	if !SameDay(late, mustDate(t, "2024-03-09")) {
		t.Error("SameDay should compare on the UTC calendar day")
	}
	if SameDay(late, mustDate(t, "2024-03-10")) {
		t.Error("SameDay matched across different UTC days")
	}
}

func TestEndOfDay(t *testing.T) {
	end := EndOfDay(mustDate(t, "2024-03-10"))
	if end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Errorf("EndOfDay = %v", end)
	}
	if !SameDay(end, mustDate(t, "2024-03-10")) {
		t.Error("EndOfDay left the calendar day")
	}
}
