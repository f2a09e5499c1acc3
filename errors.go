package rampart

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is returned when a zero-trust evaluation denies access.
	ErrAccessDenied = errors.New("rampart: access denied")

	// ErrRateLimited is returned when an identity is locked out.
	ErrRateLimited = errors.New("rampart: rate limited")

	// ErrDeviceNotFound is returned when a device trust record cannot be found.
	ErrDeviceNotFound = errors.New("rampart: device not found")

	// ErrDeviceCompromised is returned for a device marked compromised.
	// The flag is sticky; only an administrative reset outside this
	// library can clear it.
	ErrDeviceCompromised = errors.New("rampart: device compromised")

	// ErrDeviceQuarantined is returned for a quarantined device.
	ErrDeviceQuarantined = errors.New("rampart: device quarantined")

	// ErrAttemptNotFound is returned when an attempt record cannot be found.
	ErrAttemptNotFound = errors.New("rampart: attempt not found")

	// ErrDecisionLogNotFound is returned when a decision log entry cannot be found.
	ErrDecisionLogNotFound = errors.New("rampart: decision log entry not found")

	// ErrStoreUnavailable is returned when the ledger or trust store
	// cannot be read or written. Callers must treat it as a denial:
	// the protected resource is authentication itself, so storage
	// failure always fails closed.
	ErrStoreUnavailable = errors.New("rampart: store unavailable")

	// ErrInvalidConfig is returned for invalid thresholds, weights, or
	// windows. Construction fails fast before any traffic is served.
	ErrInvalidConfig = errors.New("rampart: invalid configuration")

	// ErrInvalidInput is returned for a malformed identity or access
	// context. Evaluation is rejected immediately, no partial result.
	ErrInvalidInput = errors.New("rampart: invalid input")
)

func errUnknownLevel(s string) error {
	return fmt.Errorf("%w: unknown level %q", ErrInvalidInput, s)
}
