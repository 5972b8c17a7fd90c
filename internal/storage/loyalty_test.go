package storage

import "testing"

func TestCreditPoints(t *testing.T) {
	b := creditPoints(LoyaltyBalance{Balance: 30, LifetimeEarned: 200, LifetimeSpent: 170}, 120)
	if b.Balance != 150 {
		t.Fatalf("expected balance 150, got %d", b.Balance)
	}
	if b.LifetimeEarned != 320 {
		t.Fatalf("earning must grow the lifetime counter, got %d", b.LifetimeEarned)
	}
	if b.LifetimeSpent != 170 {
		t.Fatalf("earning must not touch lifetime spent, got %d", b.LifetimeSpent)
	}
}

func TestCreditPoints_FreshLedger(t *testing.T) {
	b := creditPoints(LoyaltyBalance{}, 120)
	if b.Balance != 120 || b.LifetimeEarned != 120 || b.LifetimeSpent != 0 {
		t.Fatalf("unexpected ledger %+v", b)
	}
}
