package entitlement

import (
	"time"
)

// Status is the derived entitlement state of a device. The persisted
// status column is a cache of this value; DeriveStatus is the source of
// truth.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusTrial    Status = "TRIAL"
	StatusActive   Status = "ACTIVE"
	StatusLifetime Status = "LIFETIME"
	StatusExpired  Status = "EXPIRED"
)

// Device is a hardware-bound client instance identified by an opaque code.
type Device struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	PinHash        string     `json:"-"`
	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
	TrialExpiresAt *time.Time `json:"trial_expires_at,omitempty"`
	ActivatedUntil *time.Time `json:"activated_until,omitempty"`
	Lifetime       bool       `json:"lifetime"`
	IsBanned       bool       `json:"is_banned"`
	BannedReason   *string    `json:"banned_reason,omitempty"`
	ResellerID     *string    `json:"reseller_id,omitempty"`
	Status         Status     `json:"status"` // cached derived status
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Reseller holds a prepaid credit balance spent on device activations.
type Reseller struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActorKind identifies who performed a state-changing operation.
type ActorKind string

const (
	ActorAdmin    ActorKind = "admin"
	ActorReseller ActorKind = "reseller"
	ActorSystem   ActorKind = "system"
)

// Actor is the principal recorded on audit entries.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// SystemActor is used for operations with no human principal.
var SystemActor = Actor{Kind: ActorSystem}

// Action kinds recorded in the activation history.
const (
	ActionRegister        = "REGISTER"
	ActionAuthenticate    = "AUTHENTICATE"
	ActionStartTrial      = "START_TRIAL"
	ActionActivateCredits = "ACTIVATE_WITH_CREDITS"
	ActionProlong         = "PROLONG"
	ActionLifetime        = "GRANT_LIFETIME"
	ActionExpire          = "FORCE_EXPIRE"
	ActionBan             = "BAN"
	ActionUnban           = "UNBAN"
	ActionReconcile       = "STATUS_RECONCILED"
)

// HistoryEntry is one append-only audit record. Entries are never mutated
// or deleted; creation-time order is the canonical history view.
type HistoryEntry struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	Action     string    `json:"action"`
	PrevStatus Status    `json:"prev_status"`
	NewStatus  Status    `json:"new_status"`
	ActorKind  ActorKind `json:"actor_kind"`
	ActorID    string    `json:"actor_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
