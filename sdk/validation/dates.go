package validation

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for civil dates.
const DateLayout = time.DateOnly

// ParseFlexibleDate tries to parse a date string using multiple common formats
func ParseFlexibleDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.DateOnly,    // YYYY-MM-DD
		time.RFC3339,     // ISO 8601 with time
		time.RFC3339Nano, // ISO 8601 with fractional seconds
		"2006-01-02T15:04:05",
		"2006-01-02T15:04", // datetime-local inputs
		"01/02/2006",       // MM/DD/YYYY
		"2006/01/02",       // YYYY/MM/DD
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// ParseDate parses an ISO 8601 date or timestamp and truncates it to the
// start of its calendar day in loc. Timestamps carrying an explicit offset
// are converted into loc first.
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(time.DateOnly, dateStr, loc); err == nil {
		return t, nil
	}
	t, err := ParseFlexibleDate(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t, loc), nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FormatDate renders the calendar day of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween counts whole calendar days from a to b, ignoring clock time and
// daylight saving shifts.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
