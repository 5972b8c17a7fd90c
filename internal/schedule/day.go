package schedule

// Window is a half-open [Start,End) range of minutes since midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && w.End > o.Start
}

func (w Window) Contains(o Window) bool {
	return o.Start >= w.Start && o.End <= w.End
}

// Leave is an approved absence touching the day. FullDay leaves have no
// window; partial leaves block only their range.
type Leave struct {
	FullDay bool
	Window  Window
}

// Booked is a non-terminal appointment already occupying the employee's day.
type Booked struct {
	AppointmentID string
	Window        Window
}

// Activity is an incomplete cross-module calendar entry for the same staff
// member. Entries originating from this module are filtered out before they
// reach the snapshot, so the twin of an appointment is never counted twice.
type Activity struct {
	Window Window
}

// DaySchedule is one employee's fully resolved day: the working window from
// the employee override or the clinic default, plus every constraint source
// the engine merges. It is a plain snapshot so the sweep and the conflict
// checks stay pure and storage-free.
type DaySchedule struct {
	Working      bool
	Hours        Window
	Break        *Window
	Leaves       []Leave
	Appointments []Booked
	Activities   []Activity
}

func (d DaySchedule) fullDayLeave() bool {
	for _, l := range d.Leaves {
		if l.FullDay {
			return true
		}
	}
	return false
}
