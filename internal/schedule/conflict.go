package schedule

// Conflict reasons surfaced to callers. Checks run in a fixed order and stop
// at the first failure.
const (
	ReasonNotWorking  = "Employee is not working on this day"
	ReasonOutsideDay  = "Requested time is outside working hours"
	ReasonLeave       = "Employee is on approved leave"
	ReasonAppointment = "Time slot conflicts with an existing appointment"
	ReasonActivity    = "Employee has another scheduled activity at this time"
)

// ConflictResult reports whether a proposed range can be booked.
type ConflictResult struct {
	HasConflict bool
	Reason      string
}

func conflict(reason string) ConflictResult {
	return ConflictResult{HasConflict: true, Reason: reason}
}

// CheckConflict validates a proposed [start,end) against the day snapshot.
// excludeAppointmentID skips the appointment being rescheduled.
func CheckConflict(d DaySchedule, startMinute, endMinute int, excludeAppointmentID string) ConflictResult {
	if !d.Working || d.Hours.End <= d.Hours.Start {
		return conflict(ReasonNotWorking)
	}
	req := Window{Start: startMinute, End: endMinute}
	if !d.Hours.Contains(req) {
		return conflict(ReasonOutsideDay)
	}

	for _, l := range d.Leaves {
		if l.FullDay || req.Overlaps(l.Window) {
			return conflict(ReasonLeave)
		}
	}

	for _, a := range d.Appointments {
		if excludeAppointmentID != "" && a.AppointmentID == excludeAppointmentID {
			continue
		}
		if req.Overlaps(a.Window) {
			return conflict(ReasonAppointment)
		}
	}

	for _, a := range d.Activities {
		if req.Overlaps(a.Window) {
			return conflict(ReasonActivity)
		}
	}

	return ConflictResult{}
}
