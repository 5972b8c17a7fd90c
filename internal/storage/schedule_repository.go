package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/internal/schedule"
	"github.com/w-lukawski/gabinet/libs/db"
)

type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

type ClinicHours struct {
	OrgID            string
	Weekday          int
	IsOpen           bool
	StartMinute      int
	EndMinute        int
	BreakStartMinute *int
	BreakEndMinute   *int
}

func (r *ScheduleRepository) UpsertClinicHours(ctx context.Context, h ClinicHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinic_working_hours (org_id, weekday, is_open, start_minute, end_minute, break_start_minute, break_end_minute)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, weekday) DO UPDATE
		SET is_open = EXCLUDED.is_open,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			break_start_minute = EXCLUDED.break_start_minute,
			break_end_minute = EXCLUDED.break_end_minute,
			updated_at = now()
	`, h.OrgID, h.Weekday, h.IsOpen, h.StartMinute, h.EndMinute, h.BreakStartMinute, h.BreakEndMinute)
	return err
}

func (r *ScheduleRepository) ListClinicHours(ctx context.Context, orgID string) ([]ClinicHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT org_id::text, weekday, is_open, start_minute, end_minute, break_start_minute, break_end_minute
		FROM clinic_working_hours
		WHERE org_id = $1
		ORDER BY weekday ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClinicHours
	for rows.Next() {
		var h ClinicHours
		if err := rows.Scan(&h.OrgID, &h.Weekday, &h.IsOpen, &h.StartMinute, &h.EndMinute, &h.BreakStartMinute, &h.BreakEndMinute); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type EmployeeOverride struct {
	ID               string
	OrgID            string
	EmployeeID       string
	Weekday          int
	IsWorking        bool
	StartMinute      int
	EndMinute        int
	BreakStartMinute *int
	BreakEndMinute   *int
	EffectiveFrom    *time.Time
	EffectiveTo      *time.Time
}

func (r *ScheduleRepository) UpsertEmployeeOverride(ctx context.Context, o EmployeeOverride) (string, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO employee_schedule_overrides
			(id, org_id, employee_id, weekday, is_working, start_minute, end_minute,
			 break_start_minute, break_end_minute, effective_from, effective_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (org_id, employee_id, weekday) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			break_start_minute = EXCLUDED.break_start_minute,
			break_end_minute = EXCLUDED.break_end_minute,
			effective_from = EXCLUDED.effective_from,
			effective_to = EXCLUDED.effective_to,
			updated_at = now()
	`, o.ID, o.OrgID, o.EmployeeID, o.Weekday, o.IsWorking, o.StartMinute, o.EndMinute,
		o.BreakStartMinute, o.BreakEndMinute, o.EffectiveFrom, o.EffectiveTo)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

func (r *ScheduleRepository) ListEmployeeOverrides(ctx context.Context, orgID, employeeID string) ([]EmployeeOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, employee_id::text, weekday, is_working, start_minute, end_minute,
			break_start_minute, break_end_minute, effective_from, effective_to
		FROM employee_schedule_overrides
		WHERE org_id = $1 AND employee_id = $2
		ORDER BY weekday ASC
	`, orgID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeOverride
	for rows.Next() {
		var o EmployeeOverride
		if err := rows.Scan(&o.ID, &o.OrgID, &o.EmployeeID, &o.Weekday, &o.IsWorking, &o.StartMinute, &o.EndMinute,
			&o.BreakStartMinute, &o.BreakEndMinute, &o.EffectiveFrom, &o.EffectiveTo); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ScheduleRepository) DeleteEmployeeOverride(ctx context.Context, orgID, overrideID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM employee_schedule_overrides
		WHERE org_id = $1 AND id = $2
	`, orgID, overrideID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type Leave struct {
	ID          string
	OrgID       string
	EmployeeID  string
	Status      string
	StartDate   time.Time
	EndDate     time.Time
	StartMinute *int
	EndMinute   *int
	Reason      string
	CreatedAt   time.Time
}

const (
	LeaveStatusPending  = "pending"
	LeaveStatusApproved = "approved"
	LeaveStatusRejected = "rejected"
)

func (r *ScheduleRepository) CreateLeave(ctx context.Context, l Leave) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leaves (id, org_id, employee_id, status, start_date, end_date, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $8)
	`, id, l.OrgID, l.EmployeeID, l.StartDate, l.EndDate, l.StartMinute, l.EndMinute, l.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ScheduleRepository) SetLeaveStatus(ctx context.Context, orgID, leaveID, status string) error {
	if status != LeaveStatusApproved && status != LeaveStatusRejected {
		return errors.New("leave status must be approved or rejected")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE leaves
		SET status = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, leaveID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ScheduleRepository) ListLeaves(ctx context.Context, orgID, employeeID string, limit int) ([]Leave, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, employee_id::text, status, start_date, end_date, start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM leaves
		WHERE org_id = $1 AND ($2 = '' OR employee_id::text = $2)
		ORDER BY start_date DESC
		LIMIT $3
	`, orgID, employeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Leave
	for rows.Next() {
		var l Leave
		if err := rows.Scan(&l.ID, &l.OrgID, &l.EmployeeID, &l.Status, &l.StartDate, &l.EndDate, &l.StartMinute, &l.EndMinute, &l.Reason, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LoadDaySchedule resolves one employee's day into the snapshot the pure
// engine works on: the employee override (honouring its effective range)
// wins over the clinic default; approved leaves, non-terminal appointments
// and incomplete foreign-origin calendar activities become blocking input.
func (r *ScheduleRepository) LoadDaySchedule(ctx context.Context, orgID, employeeID string, date time.Time) (schedule.DaySchedule, error) {
	weekday := int(date.Weekday())
	var d schedule.DaySchedule

	var isWorking bool
	var start, end int
	var breakStart, breakEnd *int
	err := r.pool.QueryRow(ctx, `
		SELECT is_working, start_minute, end_minute, break_start_minute, break_end_minute
		FROM employee_schedule_overrides
		WHERE org_id = $1 AND employee_id = $2 AND weekday = $3
			AND (effective_from IS NULL OR effective_from <= $4)
			AND (effective_to IS NULL OR effective_to >= $4)
	`, orgID, employeeID, weekday, date).Scan(&isWorking, &start, &end, &breakStart, &breakEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.pool.QueryRow(ctx, `
			SELECT is_open, start_minute, end_minute, break_start_minute, break_end_minute
			FROM clinic_working_hours
			WHERE org_id = $1 AND weekday = $2
		`, orgID, weekday).Scan(&isWorking, &start, &end, &breakStart, &breakEnd)
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.DaySchedule{}, nil
		}
	}
	if err != nil {
		return schedule.DaySchedule{}, err
	}

	d.Working = isWorking
	d.Hours = schedule.Window{Start: start, End: end}
	if breakStart != nil && breakEnd != nil && *breakEnd > *breakStart {
		d.Break = &schedule.Window{Start: *breakStart, End: *breakEnd}
	}
	if !d.Working {
		return d, nil
	}

	leaveRows, err := r.pool.Query(ctx, `
		SELECT start_minute, end_minute
		FROM leaves
		WHERE org_id = $1 AND employee_id = $2
			AND status = 'approved'
			AND start_date <= $3 AND end_date >= $3
	`, orgID, employeeID, date)
	if err != nil {
		return schedule.DaySchedule{}, err
	}
	defer leaveRows.Close()
	for leaveRows.Next() {
		var lo, hi *int
		if err := leaveRows.Scan(&lo, &hi); err != nil {
			return schedule.DaySchedule{}, err
		}
		if lo == nil || hi == nil {
			d.Leaves = append(d.Leaves, schedule.Leave{FullDay: true})
			continue
		}
		d.Leaves = append(d.Leaves, schedule.Leave{Window: schedule.Window{Start: *lo, End: *hi}})
	}
	if leaveRows.Err() != nil {
		return schedule.DaySchedule{}, leaveRows.Err()
	}

	apptRows, err := r.pool.Query(ctx, `
		SELECT id::text, start_minute, end_minute
		FROM appointments
		WHERE org_id = $1 AND employee_id = $2 AND date = $3
			AND status NOT IN ('completed', 'cancelled', 'no_show')
		ORDER BY start_minute ASC
	`, orgID, employeeID, date)
	if err != nil {
		return schedule.DaySchedule{}, err
	}
	defer apptRows.Close()
	for apptRows.Next() {
		var b schedule.Booked
		if err := apptRows.Scan(&b.AppointmentID, &b.Window.Start, &b.Window.End); err != nil {
			return schedule.DaySchedule{}, err
		}
		d.Appointments = append(d.Appointments, b)
	}
	if apptRows.Err() != nil {
		return schedule.DaySchedule{}, apptRows.Err()
	}

	dayStart := date
	dayEnd := date.AddDate(0, 0, 1)
	actRows, err := r.pool.Query(ctx, `
		SELECT starts_at, ends_at
		FROM scheduled_activities
		WHERE org_id = $1 AND employee_id = $2
			AND NOT completed
			AND origin_module <> 'gabinet'
			AND starts_at < $4 AND ends_at > $3
	`, orgID, employeeID, dayStart, dayEnd)
	if err != nil {
		return schedule.DaySchedule{}, err
	}
	defer actRows.Close()
	for actRows.Next() {
		var startsAt, endsAt time.Time
		if err := actRows.Scan(&startsAt, &endsAt); err != nil {
			return schedule.DaySchedule{}, err
		}
		d.Activities = append(d.Activities, schedule.Activity{Window: clipToDay(startsAt, endsAt, dayStart, dayEnd)})
	}
	return d, actRows.Err()
}

// clipToDay converts a timestamp range to minute offsets within the day,
// clamping multi-day activities at the day edges.
func clipToDay(startsAt, endsAt, dayStart, dayEnd time.Time) schedule.Window {
	if startsAt.Before(dayStart) {
		startsAt = dayStart
	}
	if endsAt.After(dayEnd) {
		endsAt = dayEnd
	}
	return schedule.Window{
		Start: int(startsAt.Sub(dayStart) / time.Minute),
		End:   int(endsAt.Sub(dayStart) / time.Minute),
	}
}
