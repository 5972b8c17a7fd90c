package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/libs/db"
)

const (
	PackageStatusActive    = "active"
	PackageStatusCompleted = "completed"
)

// ErrPackageExhausted reports a deduction attempt against a package (or the
// matching entry) with no uses left.
var ErrPackageExhausted = errors.New("package has no remaining entries")

// ErrPackageMismatch reports a deduction for a treatment the package does
// not cover.
var ErrPackageMismatch = errors.New("package does not cover this treatment")

// PackageEntry is one treatment's allotment inside a package.
type PackageEntry struct {
	ID          string
	TreatmentID string
	UsedCount   int
	TotalCount  int
}

type PackageUsage struct {
	ID        string
	OrgID     string
	PatientID string
	Name      string
	Status    string
	Entries   []PackageEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PackageDeduction reports the entry that burned and the package status
// after the deduction.
type PackageDeduction struct {
	TreatmentID string
	UsedCount   int
	TotalCount  int
	Status      string
}

type PackageRepository struct {
	pool *db.Pool
}

func NewPackageRepository(pool *db.Pool) *PackageRepository {
	return &PackageRepository{pool: pool}
}

func (r *PackageRepository) Create(ctx context.Context, p PackageUsage) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO package_usages (id, org_id, patient_id, name, status)
		VALUES ($1, $2, $3, $4, 'active')
	`, id, p.OrgID, p.PatientID, p.Name); err != nil {
		return "", err
	}
	for _, e := range p.Entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO package_usage_entries (id, usage_id, org_id, treatment_id, used_count, total_count)
			VALUES ($1, $2, $3, $4, 0, $5)
		`, uuid.NewString(), id, p.OrgID, e.TreatmentID, e.TotalCount); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *PackageRepository) Get(ctx context.Context, orgID, packageID string) (PackageUsage, error) {
	var p PackageUsage
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, org_id::text, patient_id::text, name, status, created_at, updated_at
		FROM package_usages
		WHERE org_id = $1 AND id = $2
	`, orgID, packageID).Scan(&p.ID, &p.OrgID, &p.PatientID, &p.Name, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PackageUsage{}, err
	}
	p.Entries, err = r.listEntries(ctx, packageID)
	return p, err
}

func (r *PackageRepository) listEntries(ctx context.Context, packageID string) ([]PackageEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, treatment_id::text, used_count, total_count
		FROM package_usage_entries
		WHERE usage_id = $1
		ORDER BY treatment_id
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PackageEntry
	for rows.Next() {
		var e PackageEntry
		if err := rows.Scan(&e.ID, &e.TreatmentID, &e.UsedCount, &e.TotalCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Consume burns one use off the entry matching the completed treatment and
// flips the package to completed once every entry is exhausted. The usage
// row lock serialises concurrent completions against the same package.
func (r *PackageRepository) Consume(ctx context.Context, orgID, packageID, treatmentID string) (PackageDeduction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return PackageDeduction{}, err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status
		FROM package_usages
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`, orgID, packageID).Scan(&status)
	if err != nil {
		return PackageDeduction{}, err
	}
	if status != PackageStatusActive {
		return PackageDeduction{Status: status}, ErrPackageExhausted
	}

	var e PackageEntry
	err = tx.QueryRow(ctx, `
		SELECT id::text, treatment_id::text, used_count, total_count
		FROM package_usage_entries
		WHERE usage_id = $1 AND treatment_id = $2
	`, packageID, treatmentID).Scan(&e.ID, &e.TreatmentID, &e.UsedCount, &e.TotalCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return PackageDeduction{Status: status}, ErrPackageMismatch
	}
	if err != nil {
		return PackageDeduction{}, err
	}
	if e.UsedCount >= e.TotalCount {
		return PackageDeduction{TreatmentID: treatmentID, UsedCount: e.UsedCount, TotalCount: e.TotalCount, Status: status}, ErrPackageExhausted
	}

	e.UsedCount++
	if _, err := tx.Exec(ctx, `
		UPDATE package_usage_entries
		SET used_count = $2
		WHERE id = $1
	`, e.ID, e.UsedCount); err != nil {
		return PackageDeduction{}, err
	}

	var allDone bool
	if err := tx.QueryRow(ctx, `
		SELECT bool_and(used_count >= total_count)
		FROM package_usage_entries
		WHERE usage_id = $1
	`, packageID).Scan(&allDone); err != nil {
		return PackageDeduction{}, err
	}
	if allDone {
		status = PackageStatusCompleted
	}
	if _, err := tx.Exec(ctx, `
		UPDATE package_usages
		SET status = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, packageID, status); err != nil {
		return PackageDeduction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PackageDeduction{}, err
	}
	return PackageDeduction{TreatmentID: treatmentID, UsedCount: e.UsedCount, TotalCount: e.TotalCount, Status: status}, nil
}

func (r *PackageRepository) ListForPatient(ctx context.Context, orgID, patientID string) ([]PackageUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id::text, u.org_id::text, u.patient_id::text, u.name, u.status,
			u.created_at, u.updated_at,
			COALESCE(e.id::text, ''), COALESCE(e.treatment_id::text, ''),
			COALESCE(e.used_count, 0), COALESCE(e.total_count, 0)
		FROM package_usages u
		LEFT JOIN package_usage_entries e ON e.usage_id = u.id
		WHERE u.org_id = $1 AND u.patient_id = $2
		ORDER BY u.created_at DESC, e.treatment_id
	`, orgID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PackageUsage
	byID := map[string]int{}
	for rows.Next() {
		var p PackageUsage
		var e PackageEntry
		if err := rows.Scan(&p.ID, &p.OrgID, &p.PatientID, &p.Name, &p.Status,
			&p.CreatedAt, &p.UpdatedAt, &e.ID, &e.TreatmentID, &e.UsedCount, &e.TotalCount); err != nil {
			return nil, err
		}
		idx, seen := byID[p.ID]
		if !seen {
			idx = len(out)
			byID[p.ID] = idx
			out = append(out, p)
		}
		if e.ID != "" {
			out[idx].Entries = append(out[idx].Entries, e)
		}
	}
	return out, rows.Err()
}
