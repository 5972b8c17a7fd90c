package appointment

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// transitions is the full state machine. Missing keys are terminal states.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for any edge outside the transition table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot transition from %s to %s", e.From, e.To)
}

func ValidateTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// ErrAlreadyTerminal rejects cancelling an appointment that is already
// completed or cancelled.
var ErrAlreadyTerminal = errors.New("appointment is already completed or cancelled")

// ConflictError carries the reason produced by the conflict checker.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// QualificationError carries the reason produced by the qualification checker.
type QualificationError struct {
	Reason string
}

func (e *QualificationError) Error() string { return e.Reason }

// Appointment is one clinic visit. Times are stored as the business-local
// calendar date plus minute-of-day offsets; the calendar twin carries the
// equivalent UTC instants.
type Appointment struct {
	ID          string
	OrgID       string
	PatientID   string
	TreatmentID string
	EmployeeID  string

	Date        time.Time
	StartMinute int
	EndMinute   int

	Status Status
	Notes  string

	RecurringGroupID string
	RecurringIndex   int

	// ScheduledActivityID points at the calendar twin mirrored into the
	// cross-module calendar.
	ScheduledActivityID string

	PrepaymentAmount float64
	PrepaymentPaid   bool
	PackageUsageID   string

	CancelledAt  *time.Time
	CancelledBy  string
	CancelReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
