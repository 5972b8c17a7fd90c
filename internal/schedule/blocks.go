package schedule

import "sort"

// CollectBlocked merges every constraint source of the day into one sorted
// list of blocked windows: the break, partial leaves, non-terminal
// appointments (minus the one being rescheduled) and cross-module activities.
// Full-day leaves are handled by the callers before the sweep.
func CollectBlocked(d DaySchedule, excludeAppointmentID string) []Window {
	var blocked []Window
	if d.Break != nil && d.Break.End > d.Break.Start {
		blocked = append(blocked, *d.Break)
	}
	for _, l := range d.Leaves {
		if l.FullDay {
			continue
		}
		blocked = append(blocked, l.Window)
	}
	for _, a := range d.Appointments {
		if excludeAppointmentID != "" && a.AppointmentID == excludeAppointmentID {
			continue
		}
		blocked = append(blocked, a.Window)
	}
	for _, a := range d.Activities {
		blocked = append(blocked, a.Window)
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i].Start < blocked[j].Start })
	return blocked
}

// FreeWindows returns the gaps of the working day left open by the blocked
// intervals, sweeping a cursor from the day start and advancing it to
// max(cursor, blocked end) after each interval.
func FreeWindows(hours Window, blocked []Window) []Window {
	var free []Window
	cursor := hours.Start
	for _, b := range blocked {
		if b.Start >= hours.End {
			break
		}
		if b.End <= cursor {
			continue
		}
		if b.Start > cursor {
			free = append(free, Window{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if cursor < hours.End {
		free = append(free, Window{Start: cursor, End: hours.End})
	}
	return free
}
