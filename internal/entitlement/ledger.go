package entitlement

// DaysPerCredit is how many activation days one reseller credit buys.
const DaysPerCredit = 30

// CreditLedger applies debits and credits to a reseller balance. The
// balance is a plain integer on the reseller record; atomicity with
// respect to concurrent debits comes from the store transaction the
// caller holds the record in, not from the ledger itself.
type CreditLedger struct{}

// NewCreditLedger creates a credit ledger.
func NewCreditLedger() *CreditLedger {
	return &CreditLedger{}
}

// CostForDays returns the credit price of an activation: ceil(days/30).
// Partial months round up in the platform's favor.
func (l *CreditLedger) CostForDays(days int) int {
	if days <= 0 {
		return 0
	}
	return (days + DaysPerCredit - 1) / DaysPerCredit
}

// Debit removes amount credits from the reseller. Fails with
// ErrInsufficientCredits when the balance would go negative, leaving it
// unchanged; there is no partial debit.
func (l *CreditLedger) Debit(r *Reseller, amount int) (int, error) {
	if amount < 1 {
		return r.Credits, ErrInvalidAmount
	}
	if r.Credits < amount {
		return r.Credits, ErrInsufficientCredits
	}
	r.Credits -= amount
	return r.Credits, nil
}

// Credit adds amount credits to the reseller (admin top-up).
func (l *CreditLedger) Credit(r *Reseller, amount int) (int, error) {
	if amount < 1 {
		return r.Credits, ErrInvalidAmount
	}
	r.Credits += amount
	return r.Credits, nil
}
