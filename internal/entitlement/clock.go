package entitlement

import "time"

// Clock provides the current time. Injected so status derivation and
// window math are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by the wall clock (UTC).
func SystemClock() Clock {
	return systemClock{}
}
