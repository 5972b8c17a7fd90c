package schedule

// DefaultSlotStep is the grid on which slot starts are proposed.
const DefaultSlotStep = 15

// Slot is a candidate booking of the requested duration.
type Slot struct {
	Start int
	End   int
}

// Slots enumerates open slots of the requested duration for the day. Starts
// are proposed on the 15-minute grid within each free gap; a start qualifies
// as long as the full duration still fits before the end of the working day.
// A closed day, a full-day leave or an impossible duration yield an empty
// list, never an error.
func Slots(d DaySchedule, durationMinutes int) []Slot {
	if durationMinutes <= 0 {
		return nil
	}
	if !d.Working || d.Hours.End <= d.Hours.Start {
		return nil
	}
	if d.fullDayLeave() {
		return nil
	}

	blocked := CollectBlocked(d, "")
	var slots []Slot
	for _, free := range FreeWindows(d.Hours, blocked) {
		for start := free.Start; start < free.End; start += DefaultSlotStep {
			if start+durationMinutes > d.Hours.End {
				break
			}
			slots = append(slots, Slot{Start: start, End: start + durationMinutes})
		}
	}
	return slots
}
