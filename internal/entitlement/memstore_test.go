package entitlement

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock is a manually advanced clock for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) AdvanceDays(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

// fakeHasher avoids bcrypt cost in tests.
type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (fakeHasher) Verify(plain, digest string) bool {
	return digest == "hashed:"+plain
}

// memStore is an in-memory TxStore. InTx snapshots all state up front and
// restores it when the closure fails, which makes the all-or-nothing
// transaction behavior observable without a database. failOn injects an
// infrastructure failure into the named operation.
type memStore struct {
	mu        sync.Mutex
	devices   map[string]*Device // by id
	byCode    map[string]string  // code -> id
	resellers map[string]*Reseller
	history   []HistoryEntry

	failOn string
}

var errInjected = errors.New("injected store failure")

func newMemStore() *memStore {
	return &memStore{
		devices:   make(map[string]*Device),
		byCode:    make(map[string]string),
		resellers: make(map[string]*Reseller),
	}
}

func cloneDevice(d *Device) *Device {
	c := *d
	if d.TrialStartedAt != nil {
		t := *d.TrialStartedAt
		c.TrialStartedAt = &t
	}
	if d.TrialExpiresAt != nil {
		t := *d.TrialExpiresAt
		c.TrialExpiresAt = &t
	}
	if d.ActivatedUntil != nil {
		t := *d.ActivatedUntil
		c.ActivatedUntil = &t
	}
	if d.BannedReason != nil {
		r := *d.BannedReason
		c.BannedReason = &r
	}
	if d.ResellerID != nil {
		r := *d.ResellerID
		c.ResellerID = &r
	}
	return &c
}

func (m *memStore) GetDeviceByCode(ctx context.Context, code string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, nil
	}
	return cloneDevice(m.devices[id]), nil
}

func (m *memStore) GetDeviceByID(ctx context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, nil
	}
	return cloneDevice(d), nil
}

func (m *memStore) CreateDevice(ctx context.Context, d *Device) error {
	if m.failOn == "CreateDevice" {
		return errInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = cloneDevice(d)
	m.byCode[d.Code] = d.ID
	return nil
}

func (m *memStore) SaveDevice(ctx context.Context, d *Device) error {
	if m.failOn == "SaveDevice" {
		return errInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = cloneDevice(d)
	return nil
}

func (m *memStore) GetResellerByID(ctx context.Context, id string) (*Reseller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resellers[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *memStore) CreateReseller(ctx context.Context, r *Reseller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.resellers[r.ID] = &c
	return nil
}

func (m *memStore) SaveReseller(ctx context.Context, r *Reseller) error {
	if m.failOn == "SaveReseller" {
		return errInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.resellers[r.ID] = &c
	return nil
}

func (m *memStore) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	if m.failOn == "AppendHistory" {
		return errInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, *e)
	return nil
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	devices := make(map[string]*Device, len(m.devices))
	for id, d := range m.devices {
		devices[id] = cloneDevice(d)
	}
	byCode := make(map[string]string, len(m.byCode))
	for c, id := range m.byCode {
		byCode[c] = id
	}
	resellers := make(map[string]*Reseller, len(m.resellers))
	for id, r := range m.resellers {
		c := *r
		resellers[id] = &c
	}
	history := make([]HistoryEntry, len(m.history))
	copy(history, m.history)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.devices = devices
		m.byCode = byCode
		m.resellers = resellers
		m.history = history
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) historyFor(deviceID string) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, e := range m.history {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(clock Clock) (*Service, *memStore) {
	store := newMemStore()
	svc := NewService(store, fakeHasher{}, clock, Config{TrialDays: 7})
	return svc, store
}
