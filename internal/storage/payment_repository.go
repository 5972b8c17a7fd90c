package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/w-lukawski/gabinet/libs/db"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

type Payment struct {
	ID               string
	OrgID            string
	PatientID        string
	AppointmentID    string
	Amount           float64
	Currency         string
	Status           string
	ProviderIntentID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type PaymentRepository struct {
	pool *db.Pool
}

func NewPaymentRepository(pool *db.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// CreatePending opens the receivable for a completed visit. The unique key
// on appointment_id keeps retries from double-billing.
func (r *PaymentRepository) CreatePending(ctx context.Context, p Payment) (string, error) {
	id := uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, org_id, patient_id, appointment_id, amount, currency, status, provider_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', NULLIF($7, ''))
		ON CONFLICT (appointment_id) DO UPDATE SET updated_at = now()
		RETURNING id::text
	`, id, p.OrgID, p.PatientID, p.AppointmentID, p.Amount, p.Currency, p.ProviderIntentID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PaymentRepository) MarkPaid(ctx context.Context, orgID, paymentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = 'paid', updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, paymentID)
	return err
}

func (r *PaymentRepository) ListForPatient(ctx context.Context, orgID, patientID string, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, patient_id::text, appointment_id::text,
			amount, currency, status, COALESCE(provider_intent_id, ''), created_at, updated_at
		FROM payments
		WHERE org_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, orgID, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrgID, &p.PatientID, &p.AppointmentID,
			&p.Amount, &p.Currency, &p.Status, &p.ProviderIntentID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
