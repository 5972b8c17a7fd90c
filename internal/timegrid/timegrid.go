package timegrid

import (
	"fmt"
	"time"
)

// MinutesPerDay bounds the minute-of-day grid.
const MinutesPerDay = 24 * 60

// MinuteOfDay converts a wall-clock "HH:MM" string into minutes since midnight.
func MinuteOfDay(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	return h*60 + m, nil
}

// Clock formats minutes since midnight as "HH:MM". Inverse of MinuteOfDay
// for every minute in 00:00-23:59.
func Clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// At anchors a minute offset onto a calendar date, in UTC. Used when mirroring
// date+minute appointments into timestamped calendar entries.
func At(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, time.UTC)
}

// FormatDate renders a date as business-local "YYYY-MM-DD".
func FormatDate(date time.Time) string {
	return date.Format("2006-01-02")
}

// ParseDate parses a business-local "YYYY-MM-DD" date into a UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return d, nil
}
