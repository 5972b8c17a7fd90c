package appointment

import (
	"fmt"
	"time"
)

type Frequency string

const (
	FreqDaily    Frequency = "daily"
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
)

// DefaultMaxOccurrences caps unbounded recurring requests.
const DefaultMaxOccurrences = 52

// Recurrence describes a recurring booking request. Count bounds the total
// number of occurrences including the first; Until (inclusive) bounds the
// last occurrence date. Either may be zero.
type Recurrence struct {
	Frequency Frequency
	Count     int
	Until     time.Time
}

func (r Recurrence) Validate() error {
	switch r.Frequency {
	case FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly:
	default:
		return fmt.Errorf("invalid recurrence frequency %q", r.Frequency)
	}
	if r.Count < 0 {
		return fmt.Errorf("invalid recurrence count %d", r.Count)
	}
	return nil
}

// ExpandDates returns the occurrence dates of a series, seed date first
// (index 0). The seed is always included; Until bounds only the repeats, so
// the result is never empty. maxOccurrences <= 0 falls back to
// DefaultMaxOccurrences; the cap applies even when Count or Until would
// allow more.
func ExpandDates(seed time.Time, r Recurrence, maxOccurrences int) []time.Time {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	limit := maxOccurrences
	if r.Count > 0 && r.Count < limit {
		limit = r.Count
	}

	dates := make([]time.Time, 0, limit)
	dates = append(dates, seed)
	for i := 1; len(dates) < limit; i++ {
		var next time.Time
		switch r.Frequency {
		case FreqDaily:
			next = seed.AddDate(0, 0, i)
		case FreqWeekly:
			next = seed.AddDate(0, 0, 7*i)
		case FreqBiweekly:
			next = seed.AddDate(0, 0, 14*i)
		case FreqMonthly:
			next = addMonthsClamped(seed, i)
		default:
			return dates
		}
		if !r.Until.IsZero() && next.After(r.Until) {
			break
		}
		dates = append(dates, next)
	}
	return dates
}

// addMonthsClamped keeps the seed's day-of-month, clamping to the last day
// of shorter months instead of letting AddDate spill into the next month.
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}
