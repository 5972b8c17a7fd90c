package appointment

import (
	"testing"
	"time"
)

func seriesFixture() []Appointment {
	return []Appointment{
		{ID: "a0", Date: day(2026, 3, 2), Status: StatusCompleted, RecurringIndex: 0},
		{ID: "a1", Date: day(2026, 3, 9), Status: StatusConfirmed, RecurringIndex: 1},
		{ID: "a2", Date: day(2026, 3, 16), Status: StatusCancelled, RecurringIndex: 2},
		{ID: "a3", Date: day(2026, 3, 23), Status: StatusScheduled, RecurringIndex: 3},
		{ID: "a4", Date: day(2026, 3, 30), Status: StatusScheduled, RecurringIndex: 4},
	}
}

func ids(appts []Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID)
	}
	return out
}

func TestSelectForSeriesCancel_SkipsTerminal(t *testing.T) {
	got := ids(SelectForSeriesCancel(seriesFixture(), time.Time{}))
	want := []string{"a1", "a3", "a4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSelectForSeriesCancel_FromDateBound(t *testing.T) {
	got := ids(SelectForSeriesCancel(seriesFixture(), day(2026, 3, 20)))
	if len(got) != 2 || got[0] != "a3" || got[1] != "a4" {
		t.Fatalf("occurrences before fromDate must stay, got %v", got)
	}
}

func TestSelectForSeriesCancel_FromDateInclusive(t *testing.T) {
	got := ids(SelectForSeriesCancel(seriesFixture(), day(2026, 3, 23)))
	if len(got) != 2 || got[0] != "a3" {
		t.Fatalf("fromDate itself must be included, got %v", got)
	}
}

func TestSelectForSeriesCancel_Empty(t *testing.T) {
	if got := SelectForSeriesCancel(nil, time.Time{}); len(got) != 0 {
		t.Fatalf("empty group should select nothing, got %v", got)
	}
}
