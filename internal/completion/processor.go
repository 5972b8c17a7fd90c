package completion

import (
	"context"
	"log/slog"
	"math"

	"github.com/w-lukawski/gabinet/internal/appointment"
	"github.com/w-lukawski/gabinet/internal/storage"
)

// PackageStore burns one use off a prepaid package's entry for the
// completed treatment.
type PackageStore interface {
	Consume(ctx context.Context, orgID, packageID, treatmentID string) (storage.PackageDeduction, error)
}

// LoyaltyStore credits points and reports the balance after the credit.
type LoyaltyStore interface {
	Earn(ctx context.Context, orgID, patientID, appointmentID string, points int) (storage.LoyaltyTransaction, error)
}

// PaymentStore opens the receivable for a completed visit.
type PaymentStore interface {
	CreatePending(ctx context.Context, p storage.Payment) (string, error)
}

// IntentCreator registers the pending amount with the payment provider.
// Optional; a nil creator leaves the payment without a provider intent.
type IntentCreator interface {
	CreateIntent(ctx context.Context, orgID, appointmentID string, amount float64, currency string) (string, error)
}

type Treatments interface {
	GetTreatment(ctx context.Context, orgID, treatmentID string) (storage.Treatment, error)
}

type Result struct {
	PackageDeducted  bool
	PackageUsedCount int
	PackageTotal     int
	PackageStatus    string
	PointsEarned     int
	BalanceAfter     int
	PaymentID        string
	PaymentAmount    float64
}

// Processor runs the side effects of a completed visit: package deduction,
// loyalty accrual, payment creation. The steps are independent; one failing
// is logged and must not block the others or the status change itself.
type Processor struct {
	treatments Treatments
	packages   PackageStore
	loyalty    LoyaltyStore
	payments   PaymentStore
	intents    IntentCreator
	currency   string
	logger     *slog.Logger
}

func NewProcessor(treatments Treatments, packages PackageStore, loyalty LoyaltyStore, payments PaymentStore, intents IntentCreator, currency string, logger *slog.Logger) *Processor {
	if currency == "" {
		currency = "pln"
	}
	return &Processor{
		treatments: treatments,
		packages:   packages,
		loyalty:    loyalty,
		payments:   payments,
		intents:    intents,
		currency:   currency,
		logger:     logger,
	}
}

func (p *Processor) Process(ctx context.Context, a appointment.Appointment) Result {
	var res Result

	price := 0.0
	t, err := p.treatments.GetTreatment(ctx, a.OrgID, a.TreatmentID)
	if err != nil {
		p.logger.Error("completion: treatment lookup failed", "appointment_id", a.ID, "treatment_id", a.TreatmentID, "err", err)
	} else {
		price = t.Price
	}

	if a.PackageUsageID != "" {
		deduction, err := p.packages.Consume(ctx, a.OrgID, a.PackageUsageID, a.TreatmentID)
		if err != nil {
			p.logger.Error("completion: package deduction failed", "appointment_id", a.ID, "package_usage_id", a.PackageUsageID, "treatment_id", a.TreatmentID, "err", err)
		} else {
			res.PackageDeducted = true
			res.PackageUsedCount = deduction.UsedCount
			res.PackageTotal = deduction.TotalCount
			res.PackageStatus = deduction.Status
		}
	}

	if points := int(math.Floor(price)); points > 0 {
		lt, err := p.loyalty.Earn(ctx, a.OrgID, a.PatientID, a.ID, points)
		if err != nil {
			p.logger.Error("completion: loyalty accrual failed", "appointment_id", a.ID, "patient_id", a.PatientID, "err", err)
		} else {
			res.PointsEarned = lt.Points
			res.BalanceAfter = lt.BalanceAfter
		}
	}

	// A package-covered visit owes nothing. A paid prepayment reduces the
	// remainder.
	if a.PackageUsageID == "" {
		amount := price
		if a.PrepaymentPaid {
			amount -= a.PrepaymentAmount
		}
		if amount > 0 {
			intentID := ""
			if p.intents != nil {
				intentID, err = p.intents.CreateIntent(ctx, a.OrgID, a.ID, amount, p.currency)
				if err != nil {
					p.logger.Error("completion: payment intent failed", "appointment_id", a.ID, "err", err)
					intentID = ""
				}
			}
			paymentID, err := p.payments.CreatePending(ctx, storage.Payment{
				OrgID:            a.OrgID,
				PatientID:        a.PatientID,
				AppointmentID:    a.ID,
				Amount:           amount,
				Currency:         p.currency,
				ProviderIntentID: intentID,
			})
			if err != nil {
				p.logger.Error("completion: payment creation failed", "appointment_id", a.ID, "err", err)
			} else {
				res.PaymentID = paymentID
				res.PaymentAmount = amount
			}
		}
	}

	return res
}
