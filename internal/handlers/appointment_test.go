package handlers

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/internal/appointment"
)

func testHandler() *AppointmentHandler {
	return &AppointmentHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestWriteServiceError_TransitionMessage(t *testing.T) {
	w := httptest.NewRecorder()
	testHandler().writeServiceError(w, &appointment.TransitionError{
		From: appointment.StatusCompleted,
		To:   appointment.StatusScheduled,
	})

	if w.Code != 409 {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	body := strings.TrimSpace(w.Body.String())
	if body != "Cannot transition from completed to scheduled" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestWriteServiceError_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", pgx.ErrNoRows, 404},
		{"already terminal", appointment.ErrAlreadyTerminal, 409},
		{"conflict", &appointment.ConflictError{Reason: "Time slot conflicts with an existing appointment"}, 409},
		{"qualification", &appointment.QualificationError{Reason: "Employee is not qualified for this treatment"}, 409},
		{"unknown", io.ErrUnexpectedEOF, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			testHandler().writeServiceError(w, tc.err)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, w.Code)
			}
		})
	}
}

func TestToAppointmentItem(t *testing.T) {
	cancelledAt := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	a := appointment.Appointment{
		ID:          "appt-1",
		PatientID:   "pat-1",
		EmployeeID:  "emp-1",
		Date:        time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartMinute: 510,
		EndMinute:   540,
		Status:      appointment.StatusCancelled,
		CancelledAt: &cancelledAt,
	}

	item := toAppointmentItem(a)
	if item.Date != "2026-03-02" || item.StartTime != "08:30" || item.EndTime != "09:00" {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.CancelledAt != "2026-03-02T10:30:00Z" {
		t.Fatalf("unexpected cancelled_at %q", item.CancelledAt)
	}
}
