package entitlement

import "time"

// DeriveStatus computes the entitlement status of a device at the given
// instant. Pure function: no I/O, deterministic for a fixed snapshot and
// now.
//
// The priority order is load-bearing and must not be reordered:
//
//  1. banned devices are EXPIRED regardless of any grant
//  2. lifetime dominates every temporal window
//  3. an unexpired paid window is ACTIVE
//  4. a started trial is TRIAL while its window holds, EXPIRED after
//  5. a lapsed paid window with no trial is EXPIRED
//  6. otherwise the device has never been entitled: OPEN
//
// A device holding both a lapsed paid window and a still-running trial
// cannot occur through normal flow, but if it does the trial wins (rule 4
// is checked before rule 5).
func DeriveStatus(d *Device, now time.Time) Status {
	if d.IsBanned {
		return StatusExpired
	}
	if d.Lifetime {
		return StatusLifetime
	}
	if d.ActivatedUntil != nil && d.ActivatedUntil.After(now) {
		return StatusActive
	}
	if d.TrialStartedAt != nil {
		if d.TrialExpiresAt != nil && d.TrialExpiresAt.After(now) {
			return StatusTrial
		}
		return StatusExpired
	}
	if d.ActivatedUntil != nil {
		return StatusExpired
	}
	return StatusOpen
}

// Reconcile recomputes the cached status column from the raw fields.
// Returns the previous cached value and whether it changed. Any
// authorization-relevant read must go through this before trusting
// d.Status.
func Reconcile(d *Device, now time.Time) (prev Status, changed bool) {
	prev = d.Status
	d.Status = DeriveStatus(d, now)
	return prev, prev != d.Status
}
