package completion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/w-lukawski/gabinet/internal/appointment"
	"github.com/w-lukawski/gabinet/internal/storage"
)

type fakeTreatments struct {
	price float64
	err   error
}

func (f *fakeTreatments) GetTreatment(ctx context.Context, orgID, treatmentID string) (storage.Treatment, error) {
	if f.err != nil {
		return storage.Treatment{}, f.err
	}
	return storage.Treatment{ID: treatmentID, OrgID: orgID, Price: f.price, DurationMinutes: 30, Active: true}, nil
}

type fakePackages struct {
	used, total int
	covered     string
	err         error
	consumed    []string
}

func (f *fakePackages) Consume(ctx context.Context, orgID, packageID, treatmentID string) (storage.PackageDeduction, error) {
	if f.err != nil {
		return storage.PackageDeduction{}, f.err
	}
	if f.covered != "" && treatmentID != f.covered {
		return storage.PackageDeduction{Status: storage.PackageStatusActive}, storage.ErrPackageMismatch
	}
	f.consumed = append(f.consumed, packageID)
	f.used++
	status := storage.PackageStatusActive
	if f.used >= f.total {
		status = storage.PackageStatusCompleted
	}
	return storage.PackageDeduction{TreatmentID: treatmentID, UsedCount: f.used, TotalCount: f.total, Status: status}, nil
}

type fakeLoyalty struct {
	balance int
	err     error
}

func (f *fakeLoyalty) Earn(ctx context.Context, orgID, patientID, appointmentID string, points int) (storage.LoyaltyTransaction, error) {
	if f.err != nil {
		return storage.LoyaltyTransaction{}, f.err
	}
	f.balance += points
	return storage.LoyaltyTransaction{
		OrgID: orgID, PatientID: patientID, AppointmentID: appointmentID,
		Points: points, BalanceAfter: f.balance,
	}, nil
}

type fakePayments struct {
	created []storage.Payment
	err     error
}

func (f *fakePayments) CreatePending(ctx context.Context, p storage.Payment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, p)
	return "pay-1", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completedAppt() appointment.Appointment {
	return appointment.Appointment{
		ID:          "appt-1",
		OrgID:       "org-1",
		PatientID:   "pat-1",
		TreatmentID: "tr-1",
		Status:      appointment.StatusCompleted,
	}
}

func TestProcess_PackageVisit(t *testing.T) {
	packages := &fakePackages{used: 4, total: 5, covered: "tr-1"}
	loyalty := &fakeLoyalty{}
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 120}, packages, loyalty, payments, nil, "pln", discardLogger())

	a := completedAppt()
	a.PackageUsageID = "pkg-1"
	res := p.Process(context.Background(), a)

	if !res.PackageDeducted || res.PackageUsedCount != 5 || res.PackageTotal != 5 {
		t.Fatalf("expected 5/5 after deduction, got %+v", res)
	}
	if res.PackageStatus != storage.PackageStatusCompleted {
		t.Fatalf("last entry must complete the package, got %q", res.PackageStatus)
	}
	if len(payments.created) != 0 {
		t.Fatal("package visit must not create a payment")
	}
	if res.PointsEarned != 120 || res.BalanceAfter != 120 {
		t.Fatalf("expected 120 points, got %+v", res)
	}
}

func TestProcess_PackageNotCoveringTreatmentBurnsNothing(t *testing.T) {
	packages := &fakePackages{used: 0, total: 5, covered: "tr-other"}
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 90}, packages, &fakeLoyalty{}, payments, nil, "pln", discardLogger())

	a := completedAppt()
	a.PackageUsageID = "pkg-1"
	res := p.Process(context.Background(), a)

	if res.PackageDeducted || len(packages.consumed) != 0 {
		t.Fatal("an uncovered treatment must not burn a package entry")
	}
	if res.PointsEarned != 90 {
		t.Fatalf("loyalty still accrues on the mismatch, got %d", res.PointsEarned)
	}
}

func TestProcess_PayableVisit(t *testing.T) {
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 120.50}, &fakePackages{}, &fakeLoyalty{balance: 30}, payments, nil, "pln", discardLogger())

	res := p.Process(context.Background(), completedAppt())

	if res.PaymentID != "pay-1" || res.PaymentAmount != 120.50 {
		t.Fatalf("expected pending payment for the full price, got %+v", res)
	}
	if payments.created[0].Currency != "pln" {
		t.Fatalf("unexpected currency %q", payments.created[0].Currency)
	}
	if res.PointsEarned != 120 {
		t.Fatalf("points must floor the price, got %d", res.PointsEarned)
	}
	if res.BalanceAfter != 150 {
		t.Fatalf("balance after accrual should be 150, got %d", res.BalanceAfter)
	}
}

func TestProcess_PrepaymentReducesAmount(t *testing.T) {
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 100}, &fakePackages{}, &fakeLoyalty{}, payments, nil, "pln", discardLogger())

	a := completedAppt()
	a.PrepaymentAmount = 40
	a.PrepaymentPaid = true
	res := p.Process(context.Background(), a)

	if res.PaymentAmount != 60 {
		t.Fatalf("paid prepayment must reduce the receivable, got %v", res.PaymentAmount)
	}
}

func TestProcess_FullyPrepaidSkipsPayment(t *testing.T) {
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 100}, &fakePackages{}, &fakeLoyalty{}, payments, nil, "pln", discardLogger())

	a := completedAppt()
	a.PrepaymentAmount = 100
	a.PrepaymentPaid = true
	res := p.Process(context.Background(), a)

	if res.PaymentID != "" || len(payments.created) != 0 {
		t.Fatal("fully prepaid visit must not open a payment")
	}
}

func TestProcess_StepFailuresAreIndependent(t *testing.T) {
	packages := &fakePackages{err: errors.New("deadlock")}
	loyalty := &fakeLoyalty{}
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 80}, packages, loyalty, payments, nil, "pln", discardLogger())

	a := completedAppt()
	a.PackageUsageID = "pkg-1"
	res := p.Process(context.Background(), a)

	if res.PackageDeducted {
		t.Fatal("failed deduction must not report success")
	}
	if res.PointsEarned != 80 {
		t.Fatalf("loyalty must still accrue after a package failure, got %d", res.PointsEarned)
	}
	if len(payments.created) != 0 {
		t.Fatal("package visit stays payment-free even when deduction fails")
	}
}

func TestProcess_ZeroPriceEarnsNothing(t *testing.T) {
	loyalty := &fakeLoyalty{}
	payments := &fakePayments{}
	p := NewProcessor(&fakeTreatments{price: 0}, &fakePackages{}, loyalty, payments, nil, "pln", discardLogger())

	res := p.Process(context.Background(), completedAppt())

	if res.PointsEarned != 0 || len(payments.created) != 0 {
		t.Fatalf("free visit must earn nothing and owe nothing, got %+v", res)
	}
}
