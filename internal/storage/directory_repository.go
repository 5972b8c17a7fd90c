package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/internal/qualification"
	"github.com/w-lukawski/gabinet/libs/db"
)

type Treatment struct {
	ID              string
	OrgID           string
	Name            string
	DurationMinutes int
	Price           float64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type EmployeeProfile struct {
	ID           string
	OrgID        string
	DisplayName  string
	Active       bool
	TreatmentIDs []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DirectoryRepository struct {
	pool *db.Pool
}

func NewDirectoryRepository(pool *db.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) UpsertTreatment(ctx context.Context, t Treatment) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO treatments (id, org_id, name, duration_minutes, price, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			active = EXCLUDED.active,
			updated_at = now()
	`, t.ID, t.OrgID, t.Name, t.DurationMinutes, t.Price, t.Active)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (r *DirectoryRepository) GetTreatment(ctx context.Context, orgID, treatmentID string) (Treatment, error) {
	var t Treatment
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, org_id::text, name, duration_minutes, price, active, created_at, updated_at
		FROM treatments
		WHERE org_id = $1 AND id = $2
	`, orgID, treatmentID).Scan(&t.ID, &t.OrgID, &t.Name, &t.DurationMinutes, &t.Price, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *DirectoryRepository) ListTreatments(ctx context.Context, orgID string) ([]Treatment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, name, duration_minutes, price, active, created_at, updated_at
		FROM treatments
		WHERE org_id = $1 AND active
		ORDER BY name ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Treatment
	for rows.Next() {
		var t Treatment
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &t.DurationMinutes, &t.Price, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *DirectoryRepository) UpsertEmployee(ctx context.Context, p EmployeeProfile) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO employee_profiles (id, org_id, display_name, active, treatment_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			active = EXCLUDED.active,
			treatment_ids = EXCLUDED.treatment_ids,
			updated_at = now()
	`, p.ID, p.OrgID, p.DisplayName, p.Active, p.TreatmentIDs)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func (r *DirectoryRepository) ListEmployees(ctx context.Context, orgID string) ([]EmployeeProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, display_name, active, COALESCE(treatment_ids, '{}'), created_at, updated_at
		FROM employee_profiles
		WHERE org_id = $1
		ORDER BY display_name ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeProfile
	for rows.Next() {
		var p EmployeeProfile
		if err := rows.Scan(&p.ID, &p.OrgID, &p.DisplayName, &p.Active, &p.TreatmentIDs, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// QualificationProfile adapts the stored employee row to the checker's
// input. A missing row returns nil, which the checker treats as
// unconstrained.
func (r *DirectoryRepository) QualificationProfile(ctx context.Context, orgID, employeeID string) (*qualification.Profile, error) {
	var p qualification.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, active, COALESCE(treatment_ids, '{}')
		FROM employee_profiles
		WHERE org_id = $1 AND id = $2
	`, orgID, employeeID).Scan(&p.EmployeeID, &p.Active, &p.TreatmentIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
