// Package plugin defines the plugin system for Rampart.
// Plugins are notified of lifecycle events (rate limit checked, access
// evaluated, lockout started, device quarantined, etc.) and can react,
// for example with logging, metrics, or alerting.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/device"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Rate limit lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeCheck is called before a rate limit check is evaluated.
// The req parameter is *rampart.RequestInfo (passed as any to avoid import cycle).
type BeforeCheck interface {
	OnBeforeCheck(ctx context.Context, identity string, req any) error
}

// AfterCheck is called after a rate limit check completes.
// The decision parameter is *rampart.RateLimitDecision.
type AfterCheck interface {
	OnAfterCheck(ctx context.Context, identity string, decision any) error
}

// AttemptRecorded is called after an authentication outcome is recorded.
type AttemptRecorded interface {
	OnAttemptRecorded(ctx context.Context, r *attempt.Record) error
}

// LockoutStarted is called when an identity first crosses into a
// lockout tier. It is not re-emitted for checks made while the lockout
// is already active.
type LockoutStarted interface {
	OnLockoutStarted(ctx context.Context, tenantID, identity string, level string, retryAfterSeconds int) error
}

// ──────────────────────────────────────────────────
// Access evaluation lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeEvaluate is called before an access request is evaluated.
// The access parameter is *rampart.AccessContext.
type BeforeEvaluate interface {
	OnBeforeEvaluate(ctx context.Context, access any) error
}

// AfterEvaluate is called after an access evaluation completes.
// The access parameter is *rampart.AccessContext; decision is
// *rampart.AccessDecision.
type AfterEvaluate interface {
	OnAfterEvaluate(ctx context.Context, access, decision any) error
}

// ──────────────────────────────────────────────────
// Device lifecycle hooks
// ──────────────────────────────────────────────────

// VerificationRecorded is called after a step-up verification event is
// recorded for a device.
type VerificationRecorded interface {
	OnVerificationRecorded(ctx context.Context, deviceID string, ev *device.VerificationEvent) error
}

// DeviceQuarantined is called after a device is quarantined.
type DeviceQuarantined interface {
	OnDeviceQuarantined(ctx context.Context, deviceID, reason string) error
}

// DeviceCompromised is called after a device is marked compromised.
type DeviceCompromised interface {
	OnDeviceCompromised(ctx context.Context, deviceID, reason string) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
