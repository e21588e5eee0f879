package entitlement

import (
	"context"
	"testing"
	"time"
)

func TestRegisterDevice(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(newFakeClock(baseTime))

	device, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	if device.Status != StatusOpen {
		t.Errorf("Status = %v, want OPEN", device.Status)
	}
	if device.PinHash == "1234" {
		t.Error("pin must not be stored in the clear")
	}

	// Duplicate code is a conflict.
	if _, err := svc.RegisterDevice(ctx, "DEV-001", "9999"); err != ErrDeviceExists {
		t.Errorf("duplicate RegisterDevice() error = %v, want ErrDeviceExists", err)
	}

	entries := store.historyFor(device.ID)
	if len(entries) != 1 || entries[0].Action != ActionRegister {
		t.Errorf("expected one REGISTER history entry, got %v", entries)
	}
}

func TestRegisterDeviceValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeClock(baseTime))

	if _, err := svc.RegisterDevice(ctx, "", "1234"); KindOf(err) != KindInvalidInput {
		t.Errorf("empty code error = %v, want InvalidInput kind", err)
	}
	if _, err := svc.RegisterDevice(ctx, "DEV-001", ""); KindOf(err) != KindInvalidInput {
		t.Errorf("empty pin error = %v, want InvalidInput kind", err)
	}
}

func TestAuthenticateDevice(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, _ := newTestService(clock)

	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.AuthenticateDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Errorf("AuthenticateDevice() error = %v", err)
	}
	if _, err := svc.AuthenticateDevice(ctx, "DEV-001", "wrong"); err != ErrInvalidPin {
		t.Errorf("wrong pin error = %v, want ErrInvalidPin", err)
	}
	if _, err := svc.AuthenticateDevice(ctx, "DEV-404", "1234"); err != ErrDeviceNotFound {
		t.Errorf("unknown code error = %v, want ErrDeviceNotFound", err)
	}
}

func TestAuthenticateBannedDevice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeClock(baseTime))

	device, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.BanDevice(ctx, device.ID, "chargeback", Actor{Kind: ActorAdmin, ID: "admin-1"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.AuthenticateDevice(ctx, "DEV-001", "1234"); err != ErrDeviceBanned {
		t.Errorf("AuthenticateDevice() on banned device error = %v, want ErrDeviceBanned", err)
	}
}

// TestTrialScenario: register → trial(7d) at T → TRIAL at T+1d, EXPIRED
// at T+8d, with the lazy expiry persisted on read.
func TestTrialScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, store := newTestService(clock)

	registered, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}

	device, err := svc.StartTrial(ctx, "DEV-001", 7, SystemActor)
	if err != nil {
		t.Fatalf("StartTrial() error = %v", err)
	}
	if device.Status != StatusTrial {
		t.Errorf("Status = %v, want TRIAL", device.Status)
	}

	clock.AdvanceDays(1)
	device, err = svc.GetStatus(ctx, "DEV-001")
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusTrial {
		t.Errorf("status at T+1d = %v, want TRIAL", device.Status)
	}

	clock.AdvanceDays(7)
	device, err = svc.GetStatus(ctx, "DEV-001")
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusExpired {
		t.Errorf("status at T+8d = %v, want EXPIRED", device.Status)
	}

	// The reconciliation write landed: reading the raw record shows the
	// cache was overwritten, and the drift was audited.
	raw, _ := store.GetDeviceByID(ctx, registered.ID)
	if raw.Status != StatusExpired {
		t.Errorf("persisted status = %v, want EXPIRED", raw.Status)
	}
}

func TestStartTrialTwiceViaService(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, _ := newTestService(clock)

	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.StartTrial(ctx, "DEV-001", 7, SystemActor); err != nil {
		t.Fatal(err)
	}

	clock.AdvanceDays(30) // first trial long expired
	if _, err := svc.StartTrial(ctx, "DEV-001", 7, SystemActor); err != ErrTrialAlreadyUsed {
		t.Errorf("second StartTrial() error = %v, want ErrTrialAlreadyUsed", err)
	}
}

// TestActivateWithCredits covers scenarios B and C: a 45-day activation
// costs 2 credits; the follow-up attempt at zero balance fails and leaves
// the device untouched.
func TestActivateWithCredits(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, _ := newTestService(clock)

	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}
	reseller, err := svc.CreateReseller(ctx, "shop@example.com", "Shop", "secret", 2)
	if err != nil {
		t.Fatal(err)
	}

	device, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-001", 45)
	if err != nil {
		t.Fatalf("ActivateWithCredits() error = %v", err)
	}
	if device.Status != StatusActive {
		t.Errorf("Status = %v, want ACTIVE", device.Status)
	}
	want := baseTime.AddDate(0, 0, 45)
	if device.ActivatedUntil == nil || !device.ActivatedUntil.Equal(want) {
		t.Errorf("ActivatedUntil = %v, want %v", device.ActivatedUntil, want)
	}
	if device.ResellerID == nil || *device.ResellerID != reseller.ID {
		t.Errorf("ResellerID = %v, want %s", device.ResellerID, reseller.ID)
	}

	updated, err := svc.GetReseller(ctx, reseller.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Credits != 0 {
		t.Errorf("balance = %d, want 0", updated.Credits)
	}

	// Scenario C: no credits left.
	if _, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-001", 30); err != ErrInsufficientCredits {
		t.Fatalf("ActivateWithCredits() at zero balance error = %v, want ErrInsufficientCredits", err)
	}
	after, _ := svc.GetStatus(ctx, "DEV-001")
	if !after.ActivatedUntil.Equal(want) {
		t.Errorf("failed activation changed the device: %v", after.ActivatedUntil)
	}
}

// TestActivateWithCreditsExtensionAdditive: buying 30 days with 10
// remaining yields 40 remaining.
func TestActivateWithCreditsExtensionAdditive(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, _ := newTestService(clock)

	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}
	reseller, err := svc.CreateReseller(ctx, "shop@example.com", "Shop", "secret", 10)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-001", 10); err != nil {
		t.Fatal(err)
	}
	device, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-001", 30)
	if err != nil {
		t.Fatal(err)
	}

	want := baseTime.AddDate(0, 0, 40)
	if !device.ActivatedUntil.Equal(want) {
		t.Errorf("ActivatedUntil = %v, want %v", device.ActivatedUntil, want)
	}
}

// TestActivateWithCreditsAtomicity injects a store failure after the
// debit and device write; afterwards neither the device window nor the
// reseller balance may differ from their pre-call values.
func TestActivateWithCreditsAtomicity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, store := newTestService(clock)

	registered, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}
	reseller, err := svc.CreateReseller(ctx, "shop@example.com", "Shop", "secret", 5)
	if err != nil {
		t.Fatal(err)
	}

	for _, failOn := range []string{"SaveDevice", "SaveReseller", "AppendHistory"} {
		store.failOn = failOn
		if _, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-001", 30); err == nil {
			t.Fatalf("expected injected %s failure to surface", failOn)
		}
		store.failOn = ""

		device, _ := store.GetDeviceByID(ctx, registered.ID)
		if device.ActivatedUntil != nil {
			t.Errorf("%s: device window changed despite rollback: %v", failOn, device.ActivatedUntil)
		}
		r, _ := store.GetResellerByID(ctx, reseller.ID)
		if r.Credits != 5 {
			t.Errorf("%s: balance changed despite rollback: %d", failOn, r.Credits)
		}
		if entries := store.historyFor(registered.ID); len(entries) != 1 {
			t.Errorf("%s: history gained entries from a rolled-back operation: %d", failOn, len(entries))
		}
	}
}

func TestActivateWithCreditsValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeClock(baseTime))

	reseller, err := svc.CreateReseller(ctx, "shop@example.com", "Shop", "secret", 5)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-404", 0); err != ErrInvalidDays {
		t.Errorf("zero days error = %v, want ErrInvalidDays", err)
	}
	if _, err := svc.ActivateWithCredits(ctx, reseller.ID, "DEV-404", 30); err != ErrDeviceNotFound {
		t.Errorf("unknown device error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ActivateWithCredits(ctx, "nope", "DEV-001", 30); err != ErrResellerNotFound {
		t.Errorf("unknown reseller error = %v, want ErrResellerNotFound", err)
	}
}

// TestBanUnbanLifetime covers scenario D: banning a lifetime device
// derives EXPIRED; unbanning re-derives LIFETIME from the preserved
// grant rather than restoring a stale cache.
func TestBanUnbanLifetime(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeClock(baseTime))
	admin := Actor{Kind: ActorAdmin, ID: "admin-1"}

	registered, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}
	device, err := svc.ActivateLifetime(ctx, registered.ID, admin)
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusLifetime {
		t.Fatalf("Status = %v, want LIFETIME", device.Status)
	}

	device, err = svc.BanDevice(ctx, registered.ID, "abuse", admin)
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusExpired {
		t.Errorf("banned status = %v, want EXPIRED", device.Status)
	}
	if device.BannedReason == nil || *device.BannedReason != "abuse" {
		t.Errorf("BannedReason = %v, want abuse", device.BannedReason)
	}

	device, err = svc.UnbanDevice(ctx, registered.ID, admin)
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusLifetime {
		t.Errorf("unbanned status = %v, want LIFETIME", device.Status)
	}
	if device.BannedReason != nil {
		t.Errorf("BannedReason not cleared: %v", *device.BannedReason)
	}
}

func TestProlongAndExpire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, _ := newTestService(clock)
	admin := Actor{Kind: ActorAdmin, ID: "admin-1"}

	registered, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}

	device, err := svc.ProlongDevice(ctx, registered.ID, 30, admin)
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusActive {
		t.Errorf("Status = %v, want ACTIVE", device.Status)
	}

	device, err = svc.ExpireDevice(ctx, registered.ID, admin)
	if err != nil {
		t.Fatal(err)
	}
	if device.Status != StatusExpired {
		t.Errorf("Status after force-expire = %v, want EXPIRED", device.Status)
	}
	// Not OPEN: the collapsed window stays set.
	if device.ActivatedUntil == nil {
		t.Error("force-expire must not clear ActivatedUntil")
	}
}

func TestMutationsRejectBannedDevice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeClock(baseTime))
	admin := Actor{Kind: ActorAdmin, ID: "admin-1"}

	registered, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.BanDevice(ctx, registered.ID, "fraud", admin); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.StartTrial(ctx, "DEV-001", 7, SystemActor); err != ErrDeviceBanned {
		t.Errorf("StartTrial on banned device error = %v, want ErrDeviceBanned", err)
	}
	if _, err := svc.ProlongDevice(ctx, registered.ID, 30, admin); err != ErrDeviceBanned {
		t.Errorf("ProlongDevice on banned device error = %v, want ErrDeviceBanned", err)
	}
}

func TestEveryMutationAudited(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(newFakeClock(baseTime))
	admin := Actor{Kind: ActorAdmin, ID: "admin-1"}

	registered, err := svc.RegisterDevice(ctx, "DEV-001", "1234")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.StartTrial(ctx, "DEV-001", 7, admin); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProlongDevice(ctx, registered.ID, 30, admin); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.BanDevice(ctx, registered.ID, "x", admin); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UnbanDevice(ctx, registered.ID, admin); err != nil {
		t.Fatal(err)
	}

	entries := store.historyFor(registered.ID)
	wantActions := []string{ActionRegister, ActionStartTrial, ActionProlong, ActionBan, ActionUnban}
	if len(entries) != len(wantActions) {
		t.Fatalf("history length = %d, want %d", len(entries), len(wantActions))
	}
	for i, action := range wantActions {
		if entries[i].Action != action {
			t.Errorf("entry %d action = %s, want %s", i, entries[i].Action, action)
		}
	}
	// Actor recorded on the trial entry.
	if entries[1].ActorKind != ActorAdmin || entries[1].ActorID != "admin-1" {
		t.Errorf("trial entry actor = %s/%s, want admin/admin-1", entries[1].ActorKind, entries[1].ActorID)
	}
}

func TestEventSinkReceivesCommittedEntries(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(newFakeClock(baseTime))

	var got []HistoryEntry
	svc.SetEventSink(eventSinkFunc(func(e HistoryEntry) { got = append(got, e) }))

	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Action != ActionRegister {
		t.Fatalf("sink entries = %v, want one REGISTER", got)
	}

	// A rolled-back operation must not reach the sink.
	store.failOn = "AppendHistory"
	if _, err := svc.StartTrial(ctx, "DEV-001", 7, SystemActor); err == nil {
		t.Fatal("expected injected failure")
	}
	store.failOn = ""
	if len(got) != 1 {
		t.Errorf("sink received entries from a rolled-back operation: %d", len(got))
	}
}

type eventSinkFunc func(HistoryEntry)

func (f eventSinkFunc) EntitlementEvent(e HistoryEntry) { f(e) }

func TestTopUpReseller(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeClock(baseTime))

	reseller, err := svc.CreateReseller(ctx, "shop@example.com", "Shop", "secret", 0)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.TopUpReseller(ctx, reseller.ID, 10)
	if err != nil {
		t.Fatalf("TopUpReseller() error = %v", err)
	}
	if updated.Credits != 10 {
		t.Errorf("balance = %d, want 10", updated.Credits)
	}

	if _, err := svc.TopUpReseller(ctx, reseller.ID, -1); err != ErrInvalidAmount {
		t.Errorf("negative top-up error = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.TopUpReseller(ctx, "nope", 5); err != ErrResellerNotFound {
		t.Errorf("unknown reseller error = %v, want ErrResellerNotFound", err)
	}
}

func TestGetStatusReconciliationIsDeterministic(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime)
	svc, _ := newTestService(clock)

	if _, err := svc.RegisterDevice(ctx, "DEV-001", "1234"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.StartTrial(ctx, "DEV-001", 7, SystemActor); err != nil {
		t.Fatal(err)
	}

	clock.Advance(3 * 24 * time.Hour)
	for i := 0; i < 5; i++ {
		device, err := svc.GetStatus(ctx, "DEV-001")
		if err != nil {
			t.Fatal(err)
		}
		if device.Status != StatusTrial {
			t.Fatalf("call %d status = %v, want TRIAL", i, device.Status)
		}
	}
}
