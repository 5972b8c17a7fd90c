package appointment

import (
	"fmt"
	"testing"
)

var allStatuses = []Status{
	StatusScheduled, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

func TestValidateTransition_Table(t *testing.T) {
	allowed := map[Status][]Status{
		StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
		StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
		StatusInProgress: {StatusCompleted, StatusCancelled},
		StatusCompleted:  {},
		StatusCancelled:  {},
		StatusNoShow:     {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			ok := false
			for _, next := range allowed[from] {
				if next == to {
					ok = true
				}
			}
			err := ValidateTransition(from, to)
			if ok && err != nil {
				t.Fatalf("%s -> %s should be allowed: %v", from, to, err)
			}
			if !ok {
				if err == nil {
					t.Fatalf("%s -> %s should be rejected", from, to)
				}
				want := fmt.Sprintf("Cannot transition from %s to %s", from, to)
				if err.Error() != want {
					t.Fatalf("wrong message: got %q, want %q", err.Error(), want)
				}
			}
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
		if s.Terminal() != want {
			t.Fatalf("Terminal(%s) = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range allStatuses {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Status("booked").Valid() {
		t.Fatal("unknown status should be invalid")
	}
}
