package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/w-lukawski/gabinet/internal/appointment"
	"github.com/w-lukawski/gabinet/libs/db"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id::text, org_id::text, patient_id::text, treatment_id::text, employee_id::text,
	date, start_minute, end_minute, status, COALESCE(notes, ''),
	COALESCE(recurring_group_id::text, ''), COALESCE(recurring_index, 0),
	COALESCE(scheduled_activity_id::text, ''),
	COALESCE(prepayment_amount, 0), prepayment_paid, COALESCE(package_usage_id::text, ''),
	cancelled_at, COALESCE(cancelled_by, ''), COALESCE(cancel_reason, ''),
	created_at, updated_at`

func scanAppointment(row pgx.Row) (appointment.Appointment, error) {
	var a appointment.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&a.ID, &a.OrgID, &a.PatientID, &a.TreatmentID, &a.EmployeeID,
		&a.Date, &a.StartMinute, &a.EndMinute, &a.Status, &a.Notes,
		&a.RecurringGroupID, &a.RecurringIndex,
		&a.ScheduledActivityID,
		&a.PrepaymentAmount, &a.PrepaymentPaid, &a.PackageUsageID,
		&cancelledAt, &a.CancelledBy, &a.CancelReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return appointment.Appointment{}, err
	}
	a.CancelledAt = cancelledAt
	return a, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, a *appointment.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(org_id, patient_id, treatment_id, employee_id, date, start_minute, end_minute,
			 status, notes, recurring_group_id, recurring_index, prepayment_amount, prepayment_paid, package_usage_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id::text
	`, a.OrgID, a.PatientID, a.TreatmentID, a.EmployeeID, a.Date, a.StartMinute, a.EndMinute,
		a.Status, nullIfEmpty(a.Notes), nullIfEmpty(a.RecurringGroupID), a.RecurringIndex,
		a.PrepaymentAmount, a.PrepaymentPaid, nullIfEmpty(a.PackageUsageID)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) SetScheduledActivityID(ctx context.Context, tx pgx.Tx, orgID, appointmentID, activityID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET scheduled_activity_id = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, appointmentID, activityID)
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, orgID, appointmentID string) (appointment.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1 AND id = $2
	`, orgID, appointmentID))
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, orgID, appointmentID string) (appointment.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`, orgID, appointmentID))
}

// ListForEmployeeDay returns the non-terminal appointments holding time on
// the employee's day, ordered by start.
func (r *AppointmentRepository) ListForEmployeeDay(ctx context.Context, orgID, employeeID string, date time.Time) ([]appointment.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1
			AND employee_id = $2
			AND date = $3
			AND status NOT IN ('completed', 'cancelled', 'no_show')
		ORDER BY start_minute ASC
	`, orgID, employeeID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentRepository) ListByOrg(ctx context.Context, orgID, employeeID string, date *time.Time, limit int) ([]appointment.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1
			AND ($2 = '' OR employee_id::text = $2)
			AND ($3::date IS NULL OR date = $3)
		ORDER BY date DESC, start_minute DESC
		LIMIT $4
	`, orgID, employeeID, date, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListGroupForUpdate locks and returns every occurrence of a recurrence
// group, ordered by index.
func (r *AppointmentRepository) ListGroupForUpdate(ctx context.Context, tx pgx.Tx, orgID, groupID string) ([]appointment.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1 AND recurring_group_id = $2
		ORDER BY recurring_index ASC
		FOR UPDATE
	`, orgID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpdateSchedule patches the rebookable fields after a successful conflict
// re-check.
func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, orgID, appointmentID string, date time.Time, startMinute, endMinute int, employeeID, notes string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET date = $3,
			start_minute = $4,
			end_minute = $5,
			employee_id = $6,
			notes = COALESCE(NULLIF($7, ''), notes),
			updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, appointmentID, date, startMinute, endMinute, employeeID, notes)
	return err
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, orgID, appointmentID string, status appointment.Status) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, appointmentID, status)
	return err
}

func (r *AppointmentRepository) MarkCancelled(ctx context.Context, tx pgx.Tx, orgID, appointmentID, cancelledBy, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancelled_by = NULLIF($3, ''),
			cancel_reason = NULLIF($4, ''),
			updated_at = now()
		WHERE org_id = $1 AND id = $2
		RETURNING cancelled_at
	`, orgID, appointmentID, cancelledBy, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// IsConflict reports the exclusion-constraint violation raised when two
// non-terminal appointments for one employee overlap.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
