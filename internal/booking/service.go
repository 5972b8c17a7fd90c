package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/internal/appointment"
	"github.com/w-lukawski/gabinet/internal/completion"
	"github.com/w-lukawski/gabinet/internal/directory"
	"github.com/w-lukawski/gabinet/internal/outbox"
	"github.com/w-lukawski/gabinet/internal/qualification"
	"github.com/w-lukawski/gabinet/internal/schedule"
	"github.com/w-lukawski/gabinet/internal/storage"
	"github.com/w-lukawski/gabinet/internal/timegrid"
)

// Service owns the appointment lifecycle: creation with qualification and
// conflict gates, reschedules, the status machine, series cancellation and
// the calendar twin kept in lockstep with every write.
type Service struct {
	appts     *storage.AppointmentRepository
	days      *storage.ScheduleRepository
	calendar  *storage.CalendarRepository
	directory directory.Provider
	outbox    *outbox.Repository
	completer *completion.Processor
	maxOccurs int
	logger    *slog.Logger
}

func NewService(
	appts *storage.AppointmentRepository,
	days *storage.ScheduleRepository,
	calendar *storage.CalendarRepository,
	dir directory.Provider,
	outboxRepo *outbox.Repository,
	completer *completion.Processor,
	maxOccurrences int,
	logger *slog.Logger,
) *Service {
	if maxOccurrences <= 0 {
		maxOccurrences = appointment.DefaultMaxOccurrences
	}
	return &Service{
		appts:     appts,
		days:      days,
		calendar:  calendar,
		directory: dir,
		outbox:    outboxRepo,
		completer: completer,
		maxOccurs: maxOccurrences,
		logger:    logger,
	}
}

type CreateRequest struct {
	OrgID       string
	PatientID   string
	TreatmentID string
	EmployeeID  string
	Date        time.Time
	StartMinute int
	Notes       string

	Recurrence *appointment.Recurrence

	PrepaymentAmount float64
	PrepaymentPaid   bool
	PackageUsageID   string
}

type CreateResult struct {
	Appointment appointment.Appointment
	Siblings    []appointment.Appointment
	// SkippedDates lists recurrence dates dropped because the slot was
	// already taken on that day.
	SkippedDates []time.Time
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	var res CreateResult

	treatment, err := s.directory.GetTreatment(ctx, req.OrgID, req.TreatmentID)
	if err != nil {
		return res, fmt.Errorf("load treatment: %w", err)
	}
	if treatment.DurationMinutes <= 0 {
		return res, fmt.Errorf("treatment %s has no duration", req.TreatmentID)
	}
	endMinute := req.StartMinute + treatment.DurationMinutes
	if req.StartMinute < 0 || endMinute > timegrid.MinutesPerDay {
		return res, fmt.Errorf("requested time is outside the day grid")
	}

	profile, err := s.directory.QualificationProfile(ctx, req.OrgID, req.EmployeeID)
	if err != nil {
		return res, fmt.Errorf("load employee profile: %w", err)
	}
	if q := qualification.Check(profile, req.TreatmentID); !q.Qualified {
		return res, &appointment.QualificationError{Reason: q.Reason}
	}

	if err := s.checkSlot(ctx, req.OrgID, req.EmployeeID, req.Date, req.StartMinute, endMinute, ""); err != nil {
		return res, err
	}

	dates := []time.Time{req.Date}
	groupID := ""
	if req.Recurrence != nil {
		if err := req.Recurrence.Validate(); err != nil {
			return res, err
		}
		dates = appointment.ExpandDates(req.Date, *req.Recurrence, s.maxOccurs)
		groupID = uuid.NewString()
	}

	// Siblings losing the race for their day are dropped, not fatal; the
	// seed date was already verified above.
	accepted := dates[:1]
	for _, d := range dates[1:] {
		if err := s.checkSlot(ctx, req.OrgID, req.EmployeeID, d, req.StartMinute, endMinute, ""); err != nil {
			if _, ok := err.(*appointment.ConflictError); ok {
				res.SkippedDates = append(res.SkippedDates, d)
				continue
			}
			return res, err
		}
		accepted = append(accepted, d)
	}

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, d := range accepted {
		a := appointment.Appointment{
			OrgID:            req.OrgID,
			PatientID:        req.PatientID,
			TreatmentID:      req.TreatmentID,
			EmployeeID:       req.EmployeeID,
			Date:             d,
			StartMinute:      req.StartMinute,
			EndMinute:        endMinute,
			Status:           appointment.StatusScheduled,
			Notes:            req.Notes,
			RecurringGroupID: groupID,
			RecurringIndex:   i,
			PrepaymentAmount: req.PrepaymentAmount,
			PrepaymentPaid:   req.PrepaymentPaid,
			PackageUsageID:   req.PackageUsageID,
		}
		id, err := s.appts.Create(ctx, tx, &a)
		if err != nil {
			if storage.IsConflict(err) {
				return res, &appointment.ConflictError{Reason: schedule.ReasonAppointment}
			}
			return res, err
		}
		a.ID = id

		twinID, err := s.pairTwin(ctx, tx, &a, treatment.Name)
		if err != nil {
			return res, err
		}
		a.ScheduledActivityID = twinID

		if err := s.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentScheduled, a); err != nil {
			return res, err
		}
		if i == 0 {
			res.Appointment = a
		} else {
			res.Siblings = append(res.Siblings, a)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return res, &appointment.ConflictError{Reason: schedule.ReasonAppointment}
		}
		return res, err
	}
	return res, nil
}

// pairTwin mirrors the appointment into the cross-module calendar and
// stores the twin id back on the row.
func (s *Service) pairTwin(ctx context.Context, tx pgx.Tx, a *appointment.Appointment, title string) (string, error) {
	twinID, err := s.calendar.InsertTwin(ctx, tx, storage.ScheduledActivity{
		OrgID:          a.OrgID,
		EmployeeID:     a.EmployeeID,
		Title:          title,
		StartsAt:       timegrid.At(a.Date, a.StartMinute),
		EndsAt:         timegrid.At(a.Date, a.EndMinute),
		OriginEntityID: a.ID,
	})
	if err != nil {
		return "", err
	}
	if err := s.appts.SetScheduledActivityID(ctx, tx, a.OrgID, a.ID, twinID); err != nil {
		return "", err
	}
	return twinID, s.emitCalendarSync(ctx, tx, *a)
}

type UpdateRequest struct {
	OrgID         string
	AppointmentID string

	Date        *time.Time
	StartMinute *int
	EmployeeID  *string
	Notes       *string
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (appointment.Appointment, error) {
	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return appointment.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := s.appts.GetForUpdate(ctx, tx, req.OrgID, req.AppointmentID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if a.Status.Terminal() {
		return appointment.Appointment{}, appointment.ErrAlreadyTerminal
	}

	duration := a.EndMinute - a.StartMinute
	newDate, newStart, newEmployee := a.Date, a.StartMinute, a.EmployeeID
	if req.Date != nil {
		newDate = *req.Date
	}
	if req.StartMinute != nil {
		newStart = *req.StartMinute
	}
	if req.EmployeeID != nil {
		newEmployee = *req.EmployeeID
	}
	newEnd := newStart + duration
	if newStart < 0 || newEnd > timegrid.MinutesPerDay {
		return appointment.Appointment{}, fmt.Errorf("requested time is outside the day grid")
	}

	rebooked := !newDate.Equal(a.Date) || newStart != a.StartMinute || newEmployee != a.EmployeeID
	if rebooked {
		if newEmployee != a.EmployeeID {
			profile, err := s.directory.QualificationProfile(ctx, req.OrgID, newEmployee)
			if err != nil {
				return appointment.Appointment{}, err
			}
			if q := qualification.Check(profile, a.TreatmentID); !q.Qualified {
				return appointment.Appointment{}, &appointment.QualificationError{Reason: q.Reason}
			}
		}
		if err := s.checkSlot(ctx, req.OrgID, newEmployee, newDate, newStart, newEnd, a.ID); err != nil {
			return appointment.Appointment{}, err
		}
	}

	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	if err := s.appts.UpdateSchedule(ctx, tx, req.OrgID, a.ID, newDate, newStart, newEnd, newEmployee, notes); err != nil {
		if storage.IsConflict(err) {
			return appointment.Appointment{}, &appointment.ConflictError{Reason: schedule.ReasonAppointment}
		}
		return appointment.Appointment{}, err
	}
	if rebooked {
		if err := s.calendar.UpdateTwinWindow(ctx, tx, req.OrgID, a.ID, newEmployee,
			timegrid.At(newDate, newStart), timegrid.At(newDate, newEnd)); err != nil {
			return appointment.Appointment{}, err
		}
	}

	a.Date, a.StartMinute, a.EndMinute, a.EmployeeID = newDate, newStart, newEnd, newEmployee
	if notes != "" {
		a.Notes = notes
	}
	if err := s.emitCalendarSync(ctx, tx, a); err != nil {
		return appointment.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return appointment.Appointment{}, &appointment.ConflictError{Reason: schedule.ReasonAppointment}
		}
		return appointment.Appointment{}, err
	}
	return a, nil
}

type StatusResult struct {
	Appointment appointment.Appointment
	Completion  *completion.Result
}

// UpdateStatus drives the state machine. Reaching completed runs the
// side-effect processor synchronously after the row commit; its failures are
// logged per step and never undo the transition.
func (s *Service) UpdateStatus(ctx context.Context, orgID, appointmentID string, to appointment.Status, actor string) (StatusResult, error) {
	if !to.Valid() {
		return StatusResult{}, fmt.Errorf("unknown status %q", to)
	}

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := s.appts.GetForUpdate(ctx, tx, orgID, appointmentID)
	if err != nil {
		return StatusResult{}, err
	}
	if err := appointment.ValidateTransition(a.Status, to); err != nil {
		return StatusResult{}, err
	}

	if to == appointment.StatusCancelled {
		cancelledAt, err := s.appts.MarkCancelled(ctx, tx, orgID, a.ID, actor, "")
		if err != nil {
			return StatusResult{}, err
		}
		a.CancelledAt = &cancelledAt
		a.CancelledBy = actor
	} else {
		if err := s.appts.UpdateStatus(ctx, tx, orgID, a.ID, to); err != nil {
			return StatusResult{}, err
		}
	}
	a.Status = to

	if to.Terminal() {
		if err := s.calendar.CompleteTwin(ctx, tx, orgID, a.ID); err != nil {
			return StatusResult{}, err
		}
	}

	switch to {
	case appointment.StatusCancelled:
		err = s.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentCancelled, a)
	case appointment.StatusCompleted:
		err = s.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentCompleted, a)
	}
	if err != nil {
		return StatusResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StatusResult{}, err
	}

	res := StatusResult{Appointment: a}
	if to == appointment.StatusCompleted && s.completer != nil {
		cr := s.completer.Process(ctx, a)
		res.Completion = &cr
	}
	return res, nil
}

// Cancel rejects appointments that already ran their course; an optional
// reason is kept for the audit trail.
func (s *Service) Cancel(ctx context.Context, orgID, appointmentID, cancelledBy, reason string) (appointment.Appointment, error) {
	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return appointment.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := s.appts.GetForUpdate(ctx, tx, orgID, appointmentID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if a.Status == appointment.StatusCompleted || a.Status == appointment.StatusCancelled {
		return appointment.Appointment{}, appointment.ErrAlreadyTerminal
	}
	if err := appointment.ValidateTransition(a.Status, appointment.StatusCancelled); err != nil {
		return appointment.Appointment{}, err
	}

	cancelledAt, err := s.appts.MarkCancelled(ctx, tx, orgID, a.ID, cancelledBy, reason)
	if err != nil {
		return appointment.Appointment{}, err
	}
	a.Status = appointment.StatusCancelled
	a.CancelledAt = &cancelledAt
	a.CancelledBy = cancelledBy
	a.CancelReason = reason

	if err := s.calendar.CompleteTwin(ctx, tx, orgID, a.ID); err != nil {
		return appointment.Appointment{}, err
	}
	if err := s.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentCancelled, a); err != nil {
		return appointment.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return appointment.Appointment{}, err
	}
	return a, nil
}

// CancelSeries cancels the remaining occurrences of a recurrence group,
// optionally only those on or after fromDate. Terminal members are left
// untouched.
func (s *Service) CancelSeries(ctx context.Context, orgID, groupID string, fromDate time.Time, cancelledBy, reason string) (int, error) {
	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	group, err := s.appts.ListGroupForUpdate(ctx, tx, orgID, groupID)
	if err != nil {
		return 0, err
	}

	targets := appointment.SelectForSeriesCancel(group, fromDate)
	for i := range targets {
		a := &targets[i]
		cancelledAt, err := s.appts.MarkCancelled(ctx, tx, orgID, a.ID, cancelledBy, reason)
		if err != nil {
			return 0, err
		}
		a.Status = appointment.StatusCancelled
		a.CancelledAt = &cancelledAt
		if err := s.calendar.CompleteTwin(ctx, tx, orgID, a.ID); err != nil {
			return 0, err
		}
		if err := s.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentCancelled, *a); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(targets), nil
}

func (s *Service) Get(ctx context.Context, orgID, appointmentID string) (appointment.Appointment, error) {
	return s.appts.Get(ctx, orgID, appointmentID)
}

func (s *Service) List(ctx context.Context, orgID, employeeID string, date *time.Time, limit int) ([]appointment.Appointment, error) {
	return s.appts.ListByOrg(ctx, orgID, employeeID, date, limit)
}

// AvailableSlots sweeps the employee's day for starts that fit the
// treatment's duration.
func (s *Service) AvailableSlots(ctx context.Context, orgID, employeeID, treatmentID string, date time.Time) ([]schedule.Slot, error) {
	treatment, err := s.directory.GetTreatment(ctx, orgID, treatmentID)
	if err != nil {
		return nil, err
	}
	day, err := s.days.LoadDaySchedule(ctx, orgID, employeeID, date)
	if err != nil {
		return nil, err
	}
	return schedule.Slots(day, treatment.DurationMinutes), nil
}

// CheckSlot answers the public conflict query without touching any rows.
func (s *Service) CheckSlot(ctx context.Context, orgID, employeeID string, date time.Time, startMinute, endMinute int, excludeAppointmentID string) (schedule.ConflictResult, error) {
	day, err := s.days.LoadDaySchedule(ctx, orgID, employeeID, date)
	if err != nil {
		return schedule.ConflictResult{}, err
	}
	return schedule.CheckConflict(day, startMinute, endMinute, excludeAppointmentID), nil
}

func (s *Service) checkSlot(ctx context.Context, orgID, employeeID string, date time.Time, startMinute, endMinute int, excludeID string) error {
	day, err := s.days.LoadDaySchedule(ctx, orgID, employeeID, date)
	if err != nil {
		return err
	}
	if cr := schedule.CheckConflict(day, startMinute, endMinute, excludeID); cr.HasConflict {
		return &appointment.ConflictError{Reason: cr.Reason}
	}
	return nil
}

func (s *Service) emitAppointmentEvent(ctx context.Context, tx pgx.Tx, eventType string, a appointment.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":     a.ID,
		"org_id":             a.OrgID,
		"patient_id":         a.PatientID,
		"treatment_id":       a.TreatmentID,
		"employee_id":        a.EmployeeID,
		"date":               timegrid.FormatDate(a.Date),
		"start_minute":       a.StartMinute,
		"end_minute":         a.EndMinute,
		"status":             string(a.Status),
		"recurring_group_id": a.RecurringGroupID,
		"recurring_index":    a.RecurringIndex,
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

// emitCalendarSync asks the external calendar bridge to refresh the twin.
// Sync runs post-commit off the outbox, so its failures never reach here.
func (s *Service) emitCalendarSync(ctx context.Context, tx pgx.Tx, a appointment.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"org_id":         a.OrgID,
		"appointment_id": a.ID,
		"employee_id":    a.EmployeeID,
		"starts_at":      timegrid.At(a.Date, a.StartMinute).Format(time.RFC3339),
		"ends_at":        timegrid.At(a.Date, a.EndMinute).Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.EventCalendarSyncRequest,
		Payload:       payload,
	})
}
