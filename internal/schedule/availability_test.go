package schedule

import "testing"

func workedDay() DaySchedule {
	// 08:00-18:00 with a 12:00-12:30 break and an existing 09:00-09:30 booking.
	br := Window{Start: 720, End: 750}
	return DaySchedule{
		Working: true,
		Hours:   Window{Start: 480, End: 1080},
		Break:   &br,
		Appointments: []Booked{
			{AppointmentID: "a1", Window: Window{Start: 540, End: 570}},
		},
	}
}

func slotStarts(slots []Slot) map[int]bool {
	m := make(map[int]bool, len(slots))
	for _, s := range slots {
		m[s.Start] = true
	}
	return m
}

func TestSlots_WorkedDayScenario(t *testing.T) {
	slots := Slots(workedDay(), 30)
	starts := slotStarts(slots)

	for _, want := range []int{510, 525} { // 08:30, 08:45
		if !starts[want] {
			t.Fatalf("expected slot starting at minute %d", want)
		}
	}
	for _, blocked := range []int{540, 720, 735} { // 09:00, 12:00, 12:15
		if starts[blocked] {
			t.Fatalf("slot starting at minute %d should be blocked", blocked)
		}
	}
	for _, s := range slots {
		if s.Start > 1050 { // no 30-minute slot may start after 17:30
			t.Fatalf("slot starting at minute %d does not fit the day", s.Start)
		}
		if s.End-s.Start != 30 {
			t.Fatalf("slot %d-%d has wrong duration", s.Start, s.End)
		}
	}
}

func TestSlots_Ordered(t *testing.T) {
	slots := Slots(workedDay(), 30)
	for i := 1; i < len(slots); i++ {
		if slots[i].Start <= slots[i-1].Start {
			t.Fatalf("slots out of order at %d: %d after %d", i, slots[i].Start, slots[i-1].Start)
		}
	}
}

func TestSlots_ClosedDay(t *testing.T) {
	d := workedDay()
	d.Working = false
	if got := Slots(d, 30); len(got) != 0 {
		t.Fatalf("closed day should have no slots, got %d", len(got))
	}
}

func TestSlots_FullDayLeave(t *testing.T) {
	d := workedDay()
	d.Leaves = []Leave{{FullDay: true}}
	if got := Slots(d, 30); len(got) != 0 {
		t.Fatalf("full-day leave should have no slots, got %d", len(got))
	}
}

func TestSlots_PartialLeaveBlocksRange(t *testing.T) {
	d := workedDay()
	d.Leaves = []Leave{{Window: Window{Start: 840, End: 900}}} // 14:00-15:00
	starts := slotStarts(Slots(d, 30))
	for _, m := range []int{840, 855, 870, 885} {
		if starts[m] {
			t.Fatalf("slot at minute %d overlaps a partial leave", m)
		}
	}
	if !starts[900] {
		t.Fatal("slot at 15:00 should be free again after the leave")
	}
}

func TestSlots_ActivityBlocks(t *testing.T) {
	d := workedDay()
	d.Activities = []Activity{{Window: Window{Start: 600, End: 660}}} // 10:00-11:00
	starts := slotStarts(Slots(d, 30))
	if starts[600] || starts[630] {
		t.Fatal("cross-module activity should block its range")
	}
}

func TestSlots_ImpossibleDuration(t *testing.T) {
	if got := Slots(workedDay(), 0); got != nil {
		t.Fatal("zero duration should yield no slots")
	}
	if got := Slots(workedDay(), 700); len(got) != 0 {
		t.Fatal("duration longer than the day should yield no slots")
	}
}

func TestFreeWindows(t *testing.T) {
	hours := Window{Start: 480, End: 1080}
	blocked := []Window{
		{Start: 540, End: 570},
		{Start: 720, End: 750},
	}
	free := FreeWindows(hours, blocked)
	want := []Window{
		{Start: 480, End: 540},
		{Start: 570, End: 720},
		{Start: 750, End: 1080},
	}
	if len(free) != len(want) {
		t.Fatalf("expected %d free windows, got %d", len(want), len(free))
	}
	for i := range want {
		if free[i] != want[i] {
			t.Fatalf("free[%d] = %+v, want %+v", i, free[i], want[i])
		}
	}
}

func TestFreeWindows_OverlappingBlocks(t *testing.T) {
	hours := Window{Start: 480, End: 600}
	blocked := []Window{
		{Start: 480, End: 540},
		{Start: 510, End: 550}, // overlaps the first
	}
	free := FreeWindows(hours, blocked)
	if len(free) != 1 || free[0].Start != 550 || free[0].End != 600 {
		t.Fatalf("unexpected free windows: %+v", free)
	}
}
