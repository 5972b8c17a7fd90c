package completion

import (
	"context"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// StripeIntentCreator registers pending amounts as Stripe PaymentIntents.
type StripeIntentCreator struct {
	secretKey string
}

func NewStripeIntentCreator(secretKey string) *StripeIntentCreator {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil
	}
	return &StripeIntentCreator{secretKey: key}
}

func (c *StripeIntentCreator) CreateIntent(ctx context.Context, orgID, appointmentID string, amount float64, currency string) (string, error) {
	stripe.Key = c.secretKey

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(amount * 100))),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("org_id", orgID)
	params.AddMetadata("appointment_id", appointmentID)
	// Deterministic key: retrying the same completion must not open a second intent.
	params.IdempotencyKey = stripe.String("appt-complete:" + appointmentID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}
