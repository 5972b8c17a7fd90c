package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/libs/db"
)

// OriginGabinet marks calendar rows mirrored from appointments. The day
// loader skips them so an appointment never blocks itself through its twin.
const OriginGabinet = "gabinet"

type ScheduledActivity struct {
	ID             string
	OrgID          string
	EmployeeID     string
	Title          string
	StartsAt       time.Time
	EndsAt         time.Time
	Completed      bool
	OriginModule   string
	OriginEntityID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CalendarRepository struct {
	pool *db.Pool
}

func NewCalendarRepository(pool *db.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

// InsertTwin writes the calendar mirror of an appointment inside the same
// transaction that created it.
func (r *CalendarRepository) InsertTwin(ctx context.Context, tx pgx.Tx, a ScheduledActivity) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO scheduled_activities
			(org_id, employee_id, title, starts_at, ends_at, completed, origin_module, origin_entity_id)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7)
		RETURNING id::text
	`, a.OrgID, a.EmployeeID, a.Title, a.StartsAt, a.EndsAt, OriginGabinet, a.OriginEntityID).Scan(&id)
	return id, err
}

// UpdateTwinWindow moves the mirror when its appointment is rescheduled.
func (r *CalendarRepository) UpdateTwinWindow(ctx context.Context, tx pgx.Tx, orgID, appointmentID, employeeID string, startsAt, endsAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE scheduled_activities
		SET employee_id = $3, starts_at = $4, ends_at = $5, updated_at = now()
		WHERE org_id = $1 AND origin_module = $6 AND origin_entity_id = $2
	`, orgID, appointmentID, employeeID, startsAt, endsAt, OriginGabinet)
	return err
}

// CompleteTwin marks the mirror done once its appointment reaches a terminal
// status, freeing the slot for the availability sweep.
func (r *CalendarRepository) CompleteTwin(ctx context.Context, tx pgx.Tx, orgID, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE scheduled_activities
		SET completed = true, updated_at = now()
		WHERE org_id = $1 AND origin_module = $2 AND origin_entity_id = $3
	`, orgID, OriginGabinet, appointmentID)
	return err
}

// UpsertExternal ingests activities announced by other modules. Replays are
// keyed on (origin_module, origin_entity_id) so the consumer stays idempotent.
func (r *CalendarRepository) UpsertExternal(ctx context.Context, a ScheduledActivity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_activities
			(org_id, employee_id, title, starts_at, ends_at, completed, origin_module, origin_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (org_id, origin_module, origin_entity_id) DO UPDATE
		SET employee_id = EXCLUDED.employee_id,
			title = EXCLUDED.title,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			completed = EXCLUDED.completed,
			updated_at = now()
	`, a.OrgID, a.EmployeeID, a.Title, a.StartsAt, a.EndsAt, a.Completed, a.OriginModule, a.OriginEntityID)
	return err
}

func (r *CalendarRepository) ListForEmployeeDay(ctx context.Context, orgID, employeeID string, dayStart, dayEnd time.Time) ([]ScheduledActivity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, employee_id::text, title, starts_at, ends_at,
			completed, origin_module, COALESCE(origin_entity_id::text, ''), created_at, updated_at
		FROM scheduled_activities
		WHERE org_id = $1 AND employee_id = $2
			AND starts_at < $4 AND ends_at > $3
		ORDER BY starts_at ASC
	`, orgID, employeeID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledActivity
	for rows.Next() {
		var a ScheduledActivity
		if err := rows.Scan(&a.ID, &a.OrgID, &a.EmployeeID, &a.Title, &a.StartsAt, &a.EndsAt,
			&a.Completed, &a.OriginModule, &a.OriginEntityID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
