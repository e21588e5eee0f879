package entitlement

import (
	"testing"
	"time"
)

func TestStartTrialSetsWindow(t *testing.T) {
	clock := newFakeClock(baseTime)
	m := NewTrialManager(clock)
	device := &Device{Status: StatusOpen}

	if !m.CanStartTrial(device) {
		t.Fatal("fresh device should be eligible for a trial")
	}
	if err := m.StartTrial(device, 7); err != nil {
		t.Fatalf("StartTrial() error = %v", err)
	}

	if device.TrialStartedAt == nil || !device.TrialStartedAt.Equal(baseTime) {
		t.Errorf("TrialStartedAt = %v, want %v", device.TrialStartedAt, baseTime)
	}
	want := baseTime.AddDate(0, 0, 7)
	if device.TrialExpiresAt == nil || !device.TrialExpiresAt.Equal(want) {
		t.Errorf("TrialExpiresAt = %v, want %v", device.TrialExpiresAt, want)
	}
	if device.Status != StatusTrial {
		t.Errorf("Status = %v, want %v", device.Status, StatusTrial)
	}
}

// TestStartTrialOnlyOnce: the second start always fails, even long after
// the first trial expired. There is no restart path.
func TestStartTrialOnlyOnce(t *testing.T) {
	clock := newFakeClock(baseTime)
	m := NewTrialManager(clock)
	device := &Device{Status: StatusOpen}

	if err := m.StartTrial(device, 7); err != nil {
		t.Fatalf("first StartTrial() error = %v", err)
	}

	// Immediately.
	if err := m.StartTrial(device, 7); err != ErrTrialAlreadyUsed {
		t.Errorf("second StartTrial() error = %v, want ErrTrialAlreadyUsed", err)
	}

	// And after the window has long expired.
	clock.AdvanceDays(365)
	if err := m.StartTrial(device, 7); err != ErrTrialAlreadyUsed {
		t.Errorf("StartTrial() after expiry error = %v, want ErrTrialAlreadyUsed", err)
	}
	if m.CanStartTrial(device) {
		t.Error("CanStartTrial should be false once a trial was ever started")
	}
}

func TestStartTrialRejectsBadDays(t *testing.T) {
	m := NewTrialManager(newFakeClock(baseTime))
	device := &Device{}

	for _, days := range []int{0, -1} {
		if err := m.StartTrial(device, days); err != ErrInvalidDays {
			t.Errorf("StartTrial(%d) error = %v, want ErrInvalidDays", days, err)
		}
	}
	if device.TrialStartedAt != nil {
		t.Error("rejected trial must not set TrialStartedAt")
	}
}

func TestTrialExpiryDiscoveredLazily(t *testing.T) {
	clock := newFakeClock(baseTime)
	m := NewTrialManager(clock)
	device := &Device{}

	if err := m.StartTrial(device, 7); err != nil {
		t.Fatalf("StartTrial() error = %v", err)
	}

	clock.Advance(24 * time.Hour)
	if got := DeriveStatus(device, clock.Now()); got != StatusTrial {
		t.Errorf("status at day 1 = %v, want TRIAL", got)
	}

	clock.AdvanceDays(7)
	if got := DeriveStatus(device, clock.Now()); got != StatusExpired {
		t.Errorf("status at day 8 = %v, want EXPIRED", got)
	}
}
