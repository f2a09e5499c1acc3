package device

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by every store backend when a device trust
// record does not exist.
var ErrNotFound = errors.New("device not found")

// Store defines persistence operations for device trust records.
//
// Reads are safe for concurrent callers. The transition operations
// (verification, quarantine, compromise, touch) are serialized per
// device by every implementation so racing verification events cannot
// lose updates.
type Store interface {
	// CreateDevice persists a new device trust record.
	CreateDevice(ctx context.Context, t *Trust) error

	// GetDevice retrieves a device by ID.
	GetDevice(ctx context.Context, deviceID string) (*Trust, error)

	// GetDeviceByFingerprint retrieves a device by tenant and fingerprint.
	GetDeviceByFingerprint(ctx context.Context, tenantID, fingerprint string) (*Trust, error)

	// ListDevices returns devices matching the filter.
	ListDevices(ctx context.Context, filter *ListFilter) ([]*Trust, error)

	// CountDevices returns the number of devices matching the filter.
	CountDevices(ctx context.Context, filter *ListFilter) (int64, error)

	// TouchDevice updates a device's last-seen time.
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error

	// RecordVerification appends a verification event to a device's
	// history. A successful event raises the trust score by
	// VerificationTrustGain, capped at 1.
	RecordVerification(ctx context.Context, deviceID string, ev *VerificationEvent) error

	// QuarantineDevice sets the quarantine flag and records the
	// "quarantined" risk factor.
	QuarantineDevice(ctx context.Context, deviceID, reason string) error

	// ReleaseDevice clears the quarantine flag. The compromise flag is
	// never cleared here.
	ReleaseDevice(ctx context.Context, deviceID string) error

	// MarkDeviceCompromised sets the sticky compromise flag and records
	// the "compromised" risk factor. No store operation clears it.
	MarkDeviceCompromised(ctx context.Context, deviceID, reason string) error

	// DeleteDevicesByTenant removes all devices for a tenant.
	DeleteDevicesByTenant(ctx context.Context, tenantID string) error
}
