package entitlement

import "testing"

func TestCostForDays(t *testing.T) {
	ledger := NewCreditLedger()

	tests := []struct {
		days, want int
	}{
		{1, 1},
		{29, 1},
		{30, 1},
		{31, 2},
		{45, 2},
		{60, 2},
		{61, 3},
		{365, 13},
		{0, 0},
		{-5, 0},
	}

	for _, tt := range tests {
		if got := ledger.CostForDays(tt.days); got != tt.want {
			t.Errorf("CostForDays(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestDebitInsufficientLeavesBalance(t *testing.T) {
	ledger := NewCreditLedger()
	reseller := &Reseller{Credits: 3}

	if _, err := ledger.Debit(reseller, 5); err != ErrInsufficientCredits {
		t.Fatalf("Debit() error = %v, want ErrInsufficientCredits", err)
	}
	if reseller.Credits != 3 {
		t.Errorf("balance changed on failed debit: %d", reseller.Credits)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	ledger := NewCreditLedger()
	reseller := &Reseller{Credits: 10}

	for _, amount := range []int{0, -2} {
		if _, err := ledger.Debit(reseller, amount); err != ErrInvalidAmount {
			t.Errorf("Debit(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if _, err := ledger.Credit(reseller, 0); err != ErrInvalidAmount {
		t.Errorf("Credit(0) error = %v, want ErrInvalidAmount", err)
	}
	if reseller.Credits != 10 {
		t.Errorf("balance changed on rejected operations: %d", reseller.Credits)
	}
}

// TestBalanceNeverNegative runs a mixed debit/credit sequence; the
// balance must stay non-negative throughout, with failed debits leaving
// it untouched.
func TestBalanceNeverNegative(t *testing.T) {
	ledger := NewCreditLedger()
	reseller := &Reseller{Credits: 2}

	ops := []struct {
		debit  bool
		amount int
	}{
		{true, 1},  // 1
		{true, 2},  // fails, still 1
		{false, 3}, // 4
		{true, 4},  // 0
		{true, 1},  // fails, still 0
		{false, 1}, // 1
		{true, 1},  // 0
	}

	for i, op := range ops {
		var err error
		if op.debit {
			_, err = ledger.Debit(reseller, op.amount)
		} else {
			_, err = ledger.Credit(reseller, op.amount)
		}
		_ = err
		if reseller.Credits < 0 {
			t.Fatalf("op %d drove balance negative: %d", i, reseller.Credits)
		}
	}

	if reseller.Credits != 0 {
		t.Errorf("final balance = %d, want 0", reseller.Credits)
	}
}
