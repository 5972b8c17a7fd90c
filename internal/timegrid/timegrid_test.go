package timegrid

import (
	"testing"
	"time"
)

func TestMinuteOfDay(t *testing.T) {
	cases := []struct {
		clock string
		want  int
	}{
		{"00:00", 0},
		{"08:30", 510},
		{"12:00", 720},
		{"23:59", 1439},
	}
	for _, c := range cases {
		got, err := MinuteOfDay(c.clock)
		if err != nil {
			t.Fatalf("MinuteOfDay(%q) failed: %v", c.clock, err)
		}
		if got != c.want {
			t.Fatalf("MinuteOfDay(%q) = %d, want %d", c.clock, got, c.want)
		}
	}
}

func TestMinuteOfDay_Invalid(t *testing.T) {
	for _, clock := range []string{"", "24:00", "12:60", "abc", "12"} {
		if _, err := MinuteOfDay(clock); err == nil {
			t.Fatalf("MinuteOfDay(%q) should fail", clock)
		}
	}
}

func TestClock_RoundTrip(t *testing.T) {
	for minute := 0; minute < 24*60; minute++ {
		back, err := MinuteOfDay(Clock(minute))
		if err != nil {
			t.Fatalf("round trip failed at %d: %v", minute, err)
		}
		if back != minute {
			t.Fatalf("round trip at %d gave %d", minute, back)
		}
	}
}

func TestAt(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	got := At(date, 510)
	want := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("At = %s, want %s", got, want)
	}
}
