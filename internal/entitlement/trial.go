package entitlement

// TrialManager enforces the one-trial-ever rule and computes the trial
// window. It mutates the in-memory device only; persistence and audit are
// the service's job.
type TrialManager struct {
	clock Clock
}

// NewTrialManager creates a trial manager using the given clock.
func NewTrialManager(clock Clock) *TrialManager {
	return &TrialManager{clock: clock}
}

// CanStartTrial reports whether a trial may still be started. Pure
// predicate for callers that want to avoid a failed write; StartTrial
// re-checks regardless.
func (m *TrialManager) CanStartTrial(d *Device) bool {
	return d.TrialStartedAt == nil
}

// StartTrial begins the device's one and only trial window of the given
// length. Fails with ErrTrialAlreadyUsed if a trial was ever started,
// even one that has long expired; there is no restart path. The
// precondition is checked here, not only in CanStartTrial, so a
// check-then-act race between two callers cannot grant two trials.
func (m *TrialManager) StartTrial(d *Device, days int) error {
	if days <= 0 {
		return ErrInvalidDays
	}
	if d.TrialStartedAt != nil {
		return ErrTrialAlreadyUsed
	}

	now := m.clock.Now()
	expires := now.AddDate(0, 0, days)
	d.TrialStartedAt = &now
	d.TrialExpiresAt = &expires
	d.Status = DeriveStatus(d, now)
	return nil
}
