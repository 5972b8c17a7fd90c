package schedule

import "testing"

func TestCheckConflict_Pass(t *testing.T) {
	res := CheckConflict(workedDay(), 600, 630, "")
	if res.HasConflict {
		t.Fatalf("expected no conflict, got %q", res.Reason)
	}
	if res.Reason != "" {
		t.Fatalf("reason should be empty on pass, got %q", res.Reason)
	}
}

func TestCheckConflict_NotWorking(t *testing.T) {
	d := workedDay()
	d.Working = false
	res := CheckConflict(d, 600, 630, "")
	if !res.HasConflict || res.Reason != ReasonNotWorking {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckConflict_OutsideHours(t *testing.T) {
	d := workedDay()
	for _, c := range [][2]int{{420, 480}, {1060, 1090}, {450, 500}} {
		res := CheckConflict(d, c[0], c[1], "")
		if !res.HasConflict || res.Reason != ReasonOutsideDay {
			t.Fatalf("range %v: unexpected result %+v", c, res)
		}
	}
}

func TestCheckConflict_FullDayLeave(t *testing.T) {
	d := workedDay()
	d.Leaves = []Leave{{FullDay: true}}
	res := CheckConflict(d, 600, 630, "")
	if !res.HasConflict || res.Reason != ReasonLeave {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckConflict_PartialLeave(t *testing.T) {
	d := workedDay()
	d.Leaves = []Leave{{Window: Window{Start: 840, End: 900}}}

	if res := CheckConflict(d, 870, 930, ""); !res.HasConflict || res.Reason != ReasonLeave {
		t.Fatalf("overlapping leave should conflict: %+v", res)
	}
	// Adjacent to the leave is fine: half-open intervals.
	if res := CheckConflict(d, 900, 930, ""); res.HasConflict {
		t.Fatalf("range starting at leave end should pass: %+v", res)
	}
}

func TestCheckConflict_AppointmentOverlap(t *testing.T) {
	d := workedDay() // existing appointment a1 at 540-570

	if res := CheckConflict(d, 555, 585, ""); !res.HasConflict || res.Reason != ReasonAppointment {
		t.Fatalf("overlap should conflict: %+v", res)
	}
	// Back-to-back appointments are always accepted.
	if res := CheckConflict(d, 570, 600, ""); res.HasConflict {
		t.Fatalf("adjacent range should pass: %+v", res)
	}
	if res := CheckConflict(d, 510, 540, ""); res.HasConflict {
		t.Fatalf("range ending at existing start should pass: %+v", res)
	}
}

func TestCheckConflict_ExcludesRescheduledAppointment(t *testing.T) {
	d := workedDay()
	res := CheckConflict(d, 540, 570, "a1")
	if res.HasConflict {
		t.Fatalf("rescheduling over itself should pass: %+v", res)
	}
}

func TestCheckConflict_Activity(t *testing.T) {
	d := workedDay()
	d.Activities = []Activity{{Window: Window{Start: 600, End: 660}}}
	res := CheckConflict(d, 630, 690, "")
	if !res.HasConflict || res.Reason != ReasonActivity {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckConflict_OrderShortCircuits(t *testing.T) {
	// Outside hours wins over every later check even when overlaps exist.
	d := workedDay()
	d.Leaves = []Leave{{FullDay: true}}
	res := CheckConflict(d, 400, 2000, "")
	if res.Reason != ReasonOutsideDay {
		t.Fatalf("expected outside-hours reason, got %q", res.Reason)
	}
}

func TestCheckConflict_SlotFreedByCancellation(t *testing.T) {
	// A cancelled appointment never reaches the snapshot, so an identical
	// booking passes again.
	d := workedDay()
	d.Appointments = nil
	res := CheckConflict(d, 540, 570, "")
	if res.HasConflict {
		t.Fatalf("freed slot should pass: %+v", res)
	}
}
