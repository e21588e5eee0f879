package entitlement

// Kind classifies expected, caller-recoverable failures. The HTTP layer
// maps kinds to status codes; the core never sees transport concerns.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInsufficientCredits Kind = "INSUFFICIENT_CREDITS"
	KindForbidden           Kind = "FORBIDDEN"
	KindInvalidInput        Kind = "INVALID_INPUT"
)

// Error is a domain error with a stable code for API responses.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

var (
	ErrDeviceNotFound      = Error{Kind: KindNotFound, Code: "DEVICE_NOT_FOUND", Message: "device not found"}
	ErrResellerNotFound    = Error{Kind: KindNotFound, Code: "RESELLER_NOT_FOUND", Message: "reseller not found"}
	ErrDeviceExists        = Error{Kind: KindConflict, Code: "DEVICE_EXISTS", Message: "device code already registered"}
	ErrTrialAlreadyUsed    = Error{Kind: KindConflict, Code: "TRIAL_ALREADY_USED", Message: "trial has already been used on this device"}
	ErrInsufficientCredits = Error{Kind: KindInsufficientCredits, Code: "INSUFFICIENT_CREDITS", Message: "reseller balance is too low for this activation"}
	ErrDeviceBanned        = Error{Kind: KindForbidden, Code: "DEVICE_BANNED", Message: "device is banned"}
	ErrInvalidPin          = Error{Kind: KindForbidden, Code: "INVALID_PIN", Message: "invalid device pin"}
	ErrInvalidDays         = Error{Kind: KindInvalidInput, Code: "INVALID_DAYS", Message: "day count must be positive"}
	ErrInvalidAmount       = Error{Kind: KindInvalidInput, Code: "INVALID_AMOUNT", Message: "credit amount must be positive"}
)

// KindOf returns the domain kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	if e, ok := err.(Error); ok {
		return e.Kind
	}
	return ""
}

// CodeOf returns the stable error code of err, or "INTERNAL" for
// infrastructure errors.
func CodeOf(err error) string {
	if e, ok := err.(Error); ok {
		return e.Code
	}
	return "INTERNAL"
}
