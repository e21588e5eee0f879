package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Config holds entitlement service configuration.
type Config struct {
	// TrialDays is the default trial window length when the caller does
	// not specify one.
	TrialDays int
}

// DefaultTrialDays is used when no trial length is configured.
const DefaultTrialDays = 7

// Service is the composition root for device entitlement: it orchestrates
// the status calculator, trial and activation managers and the credit
// ledger against persisted records, and is the only component with
// persistence side effects. Every mutating operation runs in a single
// store transaction, appends one audit entry and returns the freshly
// re-derived device, never a value computed before the write.
type Service struct {
	store       TxStore
	hasher      Hasher
	clock       Clock
	trials      *TrialManager
	activations *ActivationManager
	ledger      *CreditLedger
	config      Config

	events EventSink   // optional
	cache  StatusCache // optional
}

// NewService creates an entitlement service.
func NewService(store TxStore, hasher Hasher, clock Clock, cfg Config) *Service {
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = DefaultTrialDays
	}
	return &Service{
		store:       store,
		hasher:      hasher,
		clock:       clock,
		trials:      NewTrialManager(clock),
		activations: NewActivationManager(clock),
		ledger:      NewCreditLedger(),
		config:      cfg,
	}
}

// SetEventSink attaches a sink that receives committed audit entries.
func (s *Service) SetEventSink(sink EventSink) {
	s.events = sink
}

// SetStatusCache attaches a best-effort status cache updated after writes.
func (s *Service) SetStatusCache(cache StatusCache) {
	s.cache = cache
}

// Ledger exposes the credit ledger for cost queries (e.g. quoting an
// activation price to a reseller before committing).
func (s *Service) Ledger() *CreditLedger {
	return s.ledger
}

// TrialDays returns the configured default trial length.
func (s *Service) TrialDays() int {
	return s.config.TrialDays
}

// RegisterDevice creates a device in OPEN state with a hashed PIN. Fails
// with ErrDeviceExists when the code is already taken.
func (s *Service) RegisterDevice(ctx context.Context, code, pin string) (*Device, error) {
	if code == "" {
		return nil, Error{Kind: KindInvalidInput, Code: "INVALID_CODE", Message: "device code is required"}
	}
	if pin == "" {
		return nil, Error{Kind: KindInvalidInput, Code: "INVALID_PIN_FORMAT", Message: "device pin is required"}
	}

	pinHash, err := s.hasher.Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	var (
		device *Device
		entry  *HistoryEntry
	)
	err = s.store.InTx(ctx, func(tx Store) error {
		existing, err := tx.GetDeviceByCode(ctx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDeviceExists
		}

		now := s.clock.Now()
		device = &Device{
			ID:        uuid.New().String(),
			Code:      code,
			PinHash:   pinHash,
			Status:    StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateDevice(ctx, device); err != nil {
			return err
		}
		entry, err = s.appendHistory(ctx, tx, device, ActionRegister, StatusOpen, SystemActor, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(device, entry)
	return device, nil
}

// AuthenticateDevice verifies the device PIN and reconciles the cached
// status. Banned devices are rejected even with a valid PIN. The PIN is
// checked before the ban so a guessing caller cannot probe ban state.
func (s *Service) AuthenticateDevice(ctx context.Context, code, pin string) (*Device, error) {
	var (
		device *Device
		entry  *HistoryEntry
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		d, err := tx.GetDeviceByCode(ctx, code)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrDeviceNotFound
		}
		if !s.hasher.Verify(pin, d.PinHash) {
			return ErrInvalidPin
		}

		entry, err = s.reconcilePersist(ctx, tx, d, ActionReconcile)
		if err != nil {
			return err
		}
		if d.IsBanned {
			return ErrDeviceBanned
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(device, entry)
	return device, nil
}

// GetStatus re-derives and persists the device status. The cached status
// column is never returned without a reconciliation pass.
func (s *Service) GetStatus(ctx context.Context, code string) (*Device, error) {
	var (
		device *Device
		entry  *HistoryEntry
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		d, err := tx.GetDeviceByCode(ctx, code)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrDeviceNotFound
		}
		entry, err = s.reconcilePersist(ctx, tx, d, ActionReconcile)
		if err != nil {
			return err
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(device, entry)
	return device, nil
}

// StartTrial begins the device's one-time trial. days <= 0 selects the
// configured default. Banned devices cannot start a trial.
func (s *Service) StartTrial(ctx context.Context, code string, days int, actor Actor) (*Device, error) {
	if days <= 0 {
		days = s.config.TrialDays
	}
	return s.mutateByCode(ctx, code, ActionStartTrial, actor, fmt.Sprintf("days=%d", days), func(d *Device) error {
		return s.trials.StartTrial(d, days)
	})
}

// ActivateWithCredits is the one multi-entity transaction in the system:
// it extends the device's paid window and debits the reseller's balance
// as a single all-or-nothing unit, with both rows locked for the
// duration. A failure at any step leaves device and reseller unchanged.
func (s *Service) ActivateWithCredits(ctx context.Context, resellerID, code string, days int) (*Device, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}
	cost := s.ledger.CostForDays(days)

	var (
		device *Device
		entry  *HistoryEntry
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		// Lock order is fixed (device, then reseller) so concurrent
		// activations cannot deadlock.
		d, err := tx.GetDeviceByCode(ctx, code)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrDeviceNotFound
		}
		r, err := tx.GetResellerByID(ctx, resellerID)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrResellerNotFound
		}

		now := s.clock.Now()
		prev := DeriveStatus(d, now)
		if d.IsBanned {
			return ErrDeviceBanned
		}

		balance, err := s.ledger.Debit(r, cost)
		if err != nil {
			return err
		}
		if err := s.activations.ExtendActivation(d, days); err != nil {
			return err
		}
		if d.ResellerID == nil {
			d.ResellerID = &r.ID
		}

		if err := tx.SaveDevice(ctx, d); err != nil {
			return err
		}
		if err := tx.SaveReseller(ctx, r); err != nil {
			return err
		}

		detail := fmt.Sprintf("days=%d cost=%d balance_after=%d", days, cost, balance)
		actor := Actor{Kind: ActorReseller, ID: r.ID}
		entry, err = s.appendHistory(ctx, tx, d, ActionActivateCredits, prev, actor, detail)
		if err != nil {
			return err
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(device, entry)
	return device, nil
}

// BanDevice marks the device banned with a reason. Derived status becomes
// EXPIRED regardless of any grant while the ban holds.
func (s *Service) BanDevice(ctx context.Context, id, reason string, actor Actor) (*Device, error) {
	return s.mutateByID(ctx, id, ActionBan, actor, reason, func(d *Device) error {
		d.IsBanned = true
		if reason != "" {
			d.BannedReason = &reason
		}
		return nil
	})
}

// UnbanDevice lifts a ban. The status is re-derived from the underlying
// grants rather than restored from the stale cached value, so a lifetime
// device returns to LIFETIME and a lapsed one stays EXPIRED.
func (s *Service) UnbanDevice(ctx context.Context, id string, actor Actor) (*Device, error) {
	return s.mutateByID(ctx, id, ActionUnban, actor, "", func(d *Device) error {
		d.IsBanned = false
		d.BannedReason = nil
		return nil
	})
}

// ProlongDevice is the administrative equivalent of a paid extension.
func (s *Service) ProlongDevice(ctx context.Context, id string, days int, actor Actor) (*Device, error) {
	return s.mutateByID(ctx, id, ActionProlong, actor, fmt.Sprintf("days=%d", days), func(d *Device) error {
		return s.activations.ExtendActivation(d, days)
	})
}

// ActivateLifetime grants permanent entitlement.
func (s *Service) ActivateLifetime(ctx context.Context, id string, actor Actor) (*Device, error) {
	return s.mutateByID(ctx, id, ActionLifetime, actor, "", func(d *Device) error {
		s.activations.GrantLifetime(d)
		return nil
	})
}

// ExpireDevice force-expires the device's current windows. Lifetime
// grants are unaffected (see ActivationManager.ExpireNow).
func (s *Service) ExpireDevice(ctx context.Context, id string, actor Actor) (*Device, error) {
	return s.mutateByID(ctx, id, ActionExpire, actor, "", func(d *Device) error {
		s.activations.ExpireNow(d)
		return nil
	})
}

// mutateByCode runs fn on the code-addressed device inside one
// transaction, re-derives and saves, and appends one audit entry.
func (s *Service) mutateByCode(ctx context.Context, code, action string, actor Actor, detail string, fn func(*Device) error) (*Device, error) {
	return s.mutateDevice(ctx, action, actor, detail, fn, func(tx Store) (*Device, error) {
		return tx.GetDeviceByCode(ctx, code)
	})
}

// mutateByID is mutateByCode for the internal surrogate id.
func (s *Service) mutateByID(ctx context.Context, id, action string, actor Actor, detail string, fn func(*Device) error) (*Device, error) {
	return s.mutateDevice(ctx, action, actor, detail, fn, func(tx Store) (*Device, error) {
		return tx.GetDeviceByID(ctx, id)
	})
}

func (s *Service) mutateDevice(ctx context.Context, action string, actor Actor, detail string, fn func(*Device) error, load func(Store) (*Device, error)) (*Device, error) {
	var (
		device *Device
		entry  *HistoryEntry
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		d, err := load(tx)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrDeviceNotFound
		}

		now := s.clock.Now()
		prev := DeriveStatus(d, now)
		if d.IsBanned && action != ActionUnban && action != ActionBan {
			return ErrDeviceBanned
		}

		if err := fn(d); err != nil {
			return err
		}
		d.Status = DeriveStatus(d, s.clock.Now())

		if err := tx.SaveDevice(ctx, d); err != nil {
			return err
		}
		entry, err = s.appendHistory(ctx, tx, d, action, prev, actor, detail)
		if err != nil {
			return err
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(device, entry)
	return device, nil
}

// reconcilePersist re-derives the cached status and, when it drifted,
// writes it back with an audit entry marking the lazy expiry discovery.
// Returns nil when the cache was already correct.
func (s *Service) reconcilePersist(ctx context.Context, tx Store, d *Device, action string) (*HistoryEntry, error) {
	prev, changed := Reconcile(d, s.clock.Now())
	if !changed {
		return nil, nil
	}
	if err := tx.SaveDevice(ctx, d); err != nil {
		return nil, err
	}
	return s.appendHistory(ctx, tx, d, action, prev, SystemActor, "status reconciled on read")
}

func (s *Service) appendHistory(ctx context.Context, tx Store, d *Device, action string, prev Status, actor Actor, detail string) (*HistoryEntry, error) {
	entry := &HistoryEntry{
		ID:         uuid.New().String(),
		DeviceID:   d.ID,
		Action:     action,
		PrevStatus: prev,
		NewStatus:  d.Status,
		ActorKind:  actor.Kind,
		ActorID:    actor.ID,
		Detail:     detail,
		CreatedAt:  s.clock.Now(),
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append history: %w", err)
	}
	return entry, nil
}

// afterCommit pushes the committed audit entry to the event sink and the
// status cache. Both are best-effort and run outside the transaction.
func (s *Service) afterCommit(d *Device, entry *HistoryEntry) {
	if d == nil {
		return
	}
	if s.events != nil && entry != nil {
		s.events.EntitlementEvent(*entry)
	}
	if s.cache != nil {
		s.cache.SetStatus(context.Background(), d.Code, d.Status)
	}
}
