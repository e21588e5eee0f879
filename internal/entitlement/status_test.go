package entitlement

import (
	"testing"
	"time"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time {
	return &t
}

// TestDeriveStatusPriorityOrder walks the full priority ladder.
func TestDeriveStatusPriorityOrder(t *testing.T) {
	now := baseTime

	tests := []struct {
		name   string
		device Device
		want   Status
	}{
		{
			name:   "fresh device is OPEN",
			device: Device{},
			want:   StatusOpen,
		},
		{
			name: "running trial is TRIAL",
			device: Device{
				TrialStartedAt: timePtr(now.AddDate(0, 0, -1)),
				TrialExpiresAt: timePtr(now.AddDate(0, 0, 6)),
			},
			want: StatusTrial,
		},
		{
			name: "lapsed trial is EXPIRED",
			device: Device{
				TrialStartedAt: timePtr(now.AddDate(0, 0, -10)),
				TrialExpiresAt: timePtr(now.AddDate(0, 0, -3)),
			},
			want: StatusExpired,
		},
		{
			name: "unexpired paid window is ACTIVE",
			device: Device{
				ActivatedUntil: timePtr(now.AddDate(0, 0, 30)),
			},
			want: StatusActive,
		},
		{
			name: "lapsed paid window with no trial is EXPIRED",
			device: Device{
				ActivatedUntil: timePtr(now.AddDate(0, 0, -1)),
			},
			want: StatusExpired,
		},
		{
			name: "active window beats lapsed trial",
			device: Device{
				TrialStartedAt: timePtr(now.AddDate(0, 0, -20)),
				TrialExpiresAt: timePtr(now.AddDate(0, 0, -13)),
				ActivatedUntil: timePtr(now.AddDate(0, 0, 5)),
			},
			want: StatusActive,
		},
		{
			name: "lifetime dominates temporal windows",
			device: Device{
				Lifetime:       true,
				ActivatedUntil: timePtr(now.AddDate(0, 0, -5)),
			},
			want: StatusLifetime,
		},
		{
			name: "ban dominates lifetime",
			device: Device{
				Lifetime: true,
				IsBanned: true,
			},
			want: StatusExpired,
		},
		{
			name: "ban dominates active window",
			device: Device{
				IsBanned:       true,
				ActivatedUntil: timePtr(now.AddDate(0, 0, 30)),
			},
			want: StatusExpired,
		},
		{
			name: "window expiring exactly now is EXPIRED",
			device: Device{
				ActivatedUntil: timePtr(now),
			},
			want: StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(&tt.device, now); got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDeriveStatusDeterministic repeats the derivation on a fixed
// snapshot and fixed now; every call must agree.
func TestDeriveStatusDeterministic(t *testing.T) {
	device := Device{
		TrialStartedAt: timePtr(baseTime.AddDate(0, 0, -2)),
		TrialExpiresAt: timePtr(baseTime.AddDate(0, 0, 5)),
		ActivatedUntil: timePtr(baseTime.AddDate(0, 0, -30)),
	}

	first := DeriveStatus(&device, baseTime)
	for i := 0; i < 100; i++ {
		if got := DeriveStatus(&device, baseTime); got != first {
			t.Fatalf("call %d returned %v, first call returned %v", i, got, first)
		}
	}
}

// TestDeriveStatusTrialWinsOverLapsedActivation covers the impossible-
// under-normal-flow combination of a lapsed paid window and a still-valid
// trial: the trial check comes before the lapsed-activation fallback, so
// the trial wins.
func TestDeriveStatusTrialWinsOverLapsedActivation(t *testing.T) {
	device := Device{
		TrialStartedAt: timePtr(baseTime.AddDate(0, 0, -1)),
		TrialExpiresAt: timePtr(baseTime.AddDate(0, 0, 6)),
		ActivatedUntil: timePtr(baseTime.AddDate(0, 0, -10)),
	}

	if got := DeriveStatus(&device, baseTime); got != StatusTrial {
		t.Errorf("DeriveStatus() = %v, want %v", got, StatusTrial)
	}
}

func TestReconcile(t *testing.T) {
	device := Device{
		ActivatedUntil: timePtr(baseTime.AddDate(0, 0, -1)),
		Status:         StatusActive, // stale cache
	}

	prev, changed := Reconcile(&device, baseTime)
	if !changed {
		t.Fatal("expected reconciliation to detect drift")
	}
	if prev != StatusActive {
		t.Errorf("prev = %v, want %v", prev, StatusActive)
	}
	if device.Status != StatusExpired {
		t.Errorf("status = %v, want %v", device.Status, StatusExpired)
	}

	if _, changed := Reconcile(&device, baseTime); changed {
		t.Error("second reconciliation should be a no-op")
	}
}
