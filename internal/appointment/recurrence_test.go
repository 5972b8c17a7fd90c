package appointment

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandDates_Weekly(t *testing.T) {
	dates := ExpandDates(day(2026, 3, 2), Recurrence{Frequency: FreqWeekly, Count: 4}, 0)
	if len(dates) != 4 {
		t.Fatalf("expected 4 dates, got %d", len(dates))
	}
	if !dates[0].Equal(day(2026, 3, 2)) {
		t.Fatalf("index 0 must be the seed date, got %s", dates[0])
	}
	if !dates[3].Equal(day(2026, 3, 23)) {
		t.Fatalf("unexpected last date %s", dates[3])
	}
}

func TestExpandDates_Biweekly(t *testing.T) {
	dates := ExpandDates(day(2026, 3, 2), Recurrence{Frequency: FreqBiweekly, Count: 3}, 0)
	if len(dates) != 3 || !dates[2].Equal(day(2026, 3, 30)) {
		t.Fatalf("unexpected dates: %v", dates)
	}
}

func TestExpandDates_Monthly(t *testing.T) {
	dates := ExpandDates(day(2026, 1, 15), Recurrence{Frequency: FreqMonthly, Count: 3}, 0)
	if len(dates) != 3 || !dates[2].Equal(day(2026, 3, 15)) {
		t.Fatalf("unexpected dates: %v", dates)
	}
}

func TestExpandDates_UntilBound(t *testing.T) {
	r := Recurrence{Frequency: FreqDaily, Until: day(2026, 3, 5)}
	dates := ExpandDates(day(2026, 3, 2), r, 0)
	if len(dates) != 4 { // 2nd..5th inclusive
		t.Fatalf("expected 4 dates, got %d", len(dates))
	}
	if !dates[len(dates)-1].Equal(day(2026, 3, 5)) {
		t.Fatalf("until date should be included, got %s", dates[len(dates)-1])
	}
}

func TestExpandDates_UntilBeforeSeedStillBooksSeed(t *testing.T) {
	r := Recurrence{Frequency: FreqWeekly, Until: day(2026, 3, 1)}
	dates := ExpandDates(day(2026, 3, 2), r, 0)
	if len(dates) != 1 || !dates[0].Equal(day(2026, 3, 2)) {
		t.Fatalf("the requested date must always book, got %v", dates)
	}
}

func TestExpandDates_MonthlyClampsMonthEnd(t *testing.T) {
	dates := ExpandDates(day(2026, 1, 31), Recurrence{Frequency: FreqMonthly, Count: 4}, 0)
	want := []time.Time{day(2026, 1, 31), day(2026, 2, 28), day(2026, 3, 31), day(2026, 4, 30)}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %v", len(want), dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("index %d: expected %s, got %s", i, want[i], dates[i])
		}
	}
}

func TestExpandDates_DefaultCap(t *testing.T) {
	dates := ExpandDates(day(2026, 1, 1), Recurrence{Frequency: FreqDaily}, 0)
	if len(dates) != DefaultMaxOccurrences {
		t.Fatalf("unbounded series must stop at the cap, got %d", len(dates))
	}
}

func TestExpandDates_ExplicitCapWins(t *testing.T) {
	dates := ExpandDates(day(2026, 1, 1), Recurrence{Frequency: FreqDaily, Count: 100}, 10)
	if len(dates) != 10 {
		t.Fatalf("cap should bound the count, got %d", len(dates))
	}
}

func TestRecurrence_Validate(t *testing.T) {
	if err := (Recurrence{Frequency: FreqWeekly, Count: 4}).Validate(); err != nil {
		t.Fatalf("valid recurrence rejected: %v", err)
	}
	if err := (Recurrence{Frequency: "yearly"}).Validate(); err == nil {
		t.Fatal("unknown frequency should be rejected")
	}
	if err := (Recurrence{Frequency: FreqDaily, Count: -1}).Validate(); err == nil {
		t.Fatal("negative count should be rejected")
	}
}
