package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/w-lukawski/gabinet/libs/db"
)

type LoyaltyTransaction struct {
	ID            string
	OrgID         string
	PatientID     string
	AppointmentID string
	Points        int
	BalanceAfter  int
	CreatedAt     time.Time
}

// LoyaltyBalance is the patient's ledger summary: the spendable balance plus
// lifetime earned/spent counters that only ever grow.
type LoyaltyBalance struct {
	Balance        int
	LifetimeEarned int
	LifetimeSpent  int
}

// creditPoints applies an earn to a ledger snapshot: the balance and the
// lifetime-earned counter both move by the credited points.
func creditPoints(b LoyaltyBalance, points int) LoyaltyBalance {
	b.Balance += points
	b.LifetimeEarned += points
	return b
}

type LoyaltyRepository struct {
	pool *db.Pool
}

func NewLoyaltyRepository(pool *db.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// Earn credits points to the patient's balance and lifetime-earned counter
// and records an append-only transaction carrying the balance after the
// credit. The balance row is locked for the read-modify-write.
func (r *LoyaltyRepository) Earn(ctx context.Context, orgID, patientID, appointmentID string, points int) (LoyaltyTransaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return LoyaltyTransaction{}, err
	}
	defer tx.Rollback(ctx)

	var b LoyaltyBalance
	err = tx.QueryRow(ctx, `
		SELECT balance, lifetime_earned, lifetime_spent
		FROM loyalty_balances
		WHERE org_id = $1 AND patient_id = $2
		FOR UPDATE
	`, orgID, patientID).Scan(&b.Balance, &b.LifetimeEarned, &b.LifetimeSpent)
	if errors.Is(err, pgx.ErrNoRows) {
		b = LoyaltyBalance{}
		_, err = tx.Exec(ctx, `
			INSERT INTO loyalty_balances (org_id, patient_id, balance, lifetime_earned, lifetime_spent)
			VALUES ($1, $2, 0, 0, 0)
		`, orgID, patientID)
	}
	if err != nil {
		return LoyaltyTransaction{}, err
	}

	b = creditPoints(b, points)
	lt := LoyaltyTransaction{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		PatientID:     patientID,
		AppointmentID: appointmentID,
		Points:        points,
		BalanceAfter:  b.Balance,
	}
	if _, err := tx.Exec(ctx, `
		UPDATE loyalty_balances
		SET balance = $3, lifetime_earned = $4, updated_at = now()
		WHERE org_id = $1 AND patient_id = $2
	`, orgID, patientID, b.Balance, b.LifetimeEarned); err != nil {
		return LoyaltyTransaction{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO loyalty_transactions (id, org_id, patient_id, appointment_id, points, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, lt.ID, orgID, patientID, appointmentID, points, lt.BalanceAfter); err != nil {
		return LoyaltyTransaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return LoyaltyTransaction{}, err
	}
	return lt, nil
}

func (r *LoyaltyRepository) Balance(ctx context.Context, orgID, patientID string) (LoyaltyBalance, error) {
	var b LoyaltyBalance
	err := r.pool.QueryRow(ctx, `
		SELECT balance, lifetime_earned, lifetime_spent
		FROM loyalty_balances
		WHERE org_id = $1 AND patient_id = $2
	`, orgID, patientID).Scan(&b.Balance, &b.LifetimeEarned, &b.LifetimeSpent)
	if errors.Is(err, pgx.ErrNoRows) {
		return LoyaltyBalance{}, nil
	}
	return b, err
}

func (r *LoyaltyRepository) ListTransactions(ctx context.Context, orgID, patientID string, limit int) ([]LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, patient_id::text, COALESCE(appointment_id::text, ''),
			points, balance_after, created_at
		FROM loyalty_transactions
		WHERE org_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, orgID, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoyaltyTransaction
	for rows.Next() {
		var lt LoyaltyTransaction
		if err := rows.Scan(&lt.ID, &lt.OrgID, &lt.PatientID, &lt.AppointmentID,
			&lt.Points, &lt.BalanceAfter, &lt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}
