package entitlement

// ActivationManager computes paid activation windows and permanent
// grants. Like TrialManager it mutates the in-memory device only.
type ActivationManager struct {
	clock Clock
}

// NewActivationManager creates an activation manager using the given clock.
func NewActivationManager(clock Clock) *ActivationManager {
	return &ActivationManager{clock: clock}
}

// ExtendActivation adds days to the device's paid window. The new expiry
// extends from the later of now and the current expiry, so buying 30 more
// days with 10 remaining leaves 40. Sequential purchases are additive,
// never lossy. A null or lapsed window starts fresh at now.
func (m *ActivationManager) ExtendActivation(d *Device, days int) error {
	if days <= 0 {
		return ErrInvalidDays
	}

	now := m.clock.Now()
	base := now
	if d.ActivatedUntil != nil && d.ActivatedUntil.After(now) {
		base = *d.ActivatedUntil
	}
	until := base.AddDate(0, 0, days)
	d.ActivatedUntil = &until
	d.Status = DeriveStatus(d, now)
	return nil
}

// GrantLifetime marks the device permanently entitled. ActivatedUntil is
// kept as historical record; the status priority order makes it
// irrelevant from here on. There is no reverse operation.
func (m *ActivationManager) GrantLifetime(d *Device) {
	now := m.clock.Now()
	d.Lifetime = true
	d.Status = DeriveStatus(d, now)
}

// ExpireNow force-expires the device's entitlement. The paid window is
// collapsed to now rather than cleared; a null window would read back as
// OPEN, not EXPIRED. A running trial is collapsed the same way. Lifetime
// is deliberately left untouched: force-expiring a lifetime device is a
// no-op, and callers must not rely on it taking effect.
func (m *ActivationManager) ExpireNow(d *Device) {
	now := m.clock.Now()
	d.ActivatedUntil = &now
	if d.TrialExpiresAt != nil && d.TrialExpiresAt.After(now) {
		d.TrialExpiresAt = &now
	}
	d.Status = DeriveStatus(d, now)
}
