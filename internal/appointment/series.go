package appointment

import "time"

// SelectForSeriesCancel picks the members of a recurrence group that a
// series cancellation touches: terminal occurrences stay as they are, and a
// non-zero fromDate leaves earlier occurrences untouched.
func SelectForSeriesCancel(group []Appointment, fromDate time.Time) []Appointment {
	var out []Appointment
	for _, a := range group {
		if a.Status.Terminal() {
			continue
		}
		if !fromDate.IsZero() && a.Date.Before(fromDate) {
			continue
		}
		out = append(out, a)
	}
	return out
}
