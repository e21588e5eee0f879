package entitlement

import "context"

// Store is the persistence contract the core consumes. Lookups return
// (nil, nil) when the record does not exist; infrastructure failures are
// returned unchanged and never interpreted here.
//
// Inside a transaction (see TxStore.InTx) device and reseller reads must
// lock the row for the duration of the read-modify-write, so concurrent
// mutations on the same record serialize instead of interleaving.
type Store interface {
	GetDeviceByCode(ctx context.Context, code string) (*Device, error)
	GetDeviceByID(ctx context.Context, id string) (*Device, error)
	CreateDevice(ctx context.Context, d *Device) error
	SaveDevice(ctx context.Context, d *Device) error

	GetResellerByID(ctx context.Context, id string) (*Reseller, error)
	CreateReseller(ctx context.Context, r *Reseller) error
	SaveReseller(ctx context.Context, r *Reseller) error

	AppendHistory(ctx context.Context, e *HistoryEntry) error
}

// TxStore adds the unit-of-work boundary: fn runs against a
// transaction-scoped Store and its writes commit or roll back as a whole.
// Every mutating entitlement operation runs inside InTx; the combined
// device+reseller activation depends on it for its all-or-nothing
// guarantee.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

// Hasher abstracts PIN/password hashing. The core never sees algorithm
// details.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// EventSink receives audit entries after they are committed, for live
// feeds and logging. Implementations must not block.
type EventSink interface {
	EntitlementEvent(e HistoryEntry)
}

// StatusCache is a best-effort denormalized status sink (dashboards,
// listings). It is written after commits and never read for
// authorization decisions.
type StatusCache interface {
	SetStatus(ctx context.Context, code string, status Status)
}
