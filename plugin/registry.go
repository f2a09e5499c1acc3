package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/device"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeCheckEntry struct {
	name string
	hook BeforeCheck
}
type afterCheckEntry struct {
	name string
	hook AfterCheck
}
type attemptRecordedEntry struct {
	name string
	hook AttemptRecorded
}
type lockoutStartedEntry struct {
	name string
	hook LockoutStarted
}
type beforeEvaluateEntry struct {
	name string
	hook BeforeEvaluate
}
type afterEvaluateEntry struct {
	name string
	hook AfterEvaluate
}
type verificationRecordedEntry struct {
	name string
	hook VerificationRecorded
}
type deviceQuarantinedEntry struct {
	name string
	hook DeviceQuarantined
}
type deviceCompromisedEntry struct {
	name string
	hook DeviceCompromised
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeCheck          []beforeCheckEntry
	afterCheck           []afterCheckEntry
	attemptRecorded      []attemptRecordedEntry
	lockoutStarted       []lockoutStartedEntry
	beforeEvaluate       []beforeEvaluateEntry
	afterEvaluate        []afterEvaluateEntry
	verificationRecorded []verificationRecordedEntry
	deviceQuarantined    []deviceQuarantinedEntry
	deviceCompromised    []deviceCompromisedEntry
	shutdown             []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeCheck); ok {
		r.beforeCheck = append(r.beforeCheck, beforeCheckEntry{name, h})
	}
	if h, ok := p.(AfterCheck); ok {
		r.afterCheck = append(r.afterCheck, afterCheckEntry{name, h})
	}
	if h, ok := p.(AttemptRecorded); ok {
		r.attemptRecorded = append(r.attemptRecorded, attemptRecordedEntry{name, h})
	}
	if h, ok := p.(LockoutStarted); ok {
		r.lockoutStarted = append(r.lockoutStarted, lockoutStartedEntry{name, h})
	}
	if h, ok := p.(BeforeEvaluate); ok {
		r.beforeEvaluate = append(r.beforeEvaluate, beforeEvaluateEntry{name, h})
	}
	if h, ok := p.(AfterEvaluate); ok {
		r.afterEvaluate = append(r.afterEvaluate, afterEvaluateEntry{name, h})
	}
	if h, ok := p.(VerificationRecorded); ok {
		r.verificationRecorded = append(r.verificationRecorded, verificationRecordedEntry{name, h})
	}
	if h, ok := p.(DeviceQuarantined); ok {
		r.deviceQuarantined = append(r.deviceQuarantined, deviceQuarantinedEntry{name, h})
	}
	if h, ok := p.(DeviceCompromised); ok {
		r.deviceCompromised = append(r.deviceCompromised, deviceCompromisedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Rate limit event emitters
// ──────────────────────────────────────────────────

// EmitBeforeCheck notifies all plugins that implement BeforeCheck.
func (r *Registry) EmitBeforeCheck(ctx context.Context, identity string, req any) {
	for _, e := range r.beforeCheck {
		if err := e.hook.OnBeforeCheck(ctx, identity, req); err != nil {
			r.logHookError("OnBeforeCheck", e.name, err)
		}
	}
}

// EmitAfterCheck notifies all plugins that implement AfterCheck.
func (r *Registry) EmitAfterCheck(ctx context.Context, identity string, decision any) {
	for _, e := range r.afterCheck {
		if err := e.hook.OnAfterCheck(ctx, identity, decision); err != nil {
			r.logHookError("OnAfterCheck", e.name, err)
		}
	}
}

// EmitAttemptRecorded notifies all plugins that implement AttemptRecorded.
func (r *Registry) EmitAttemptRecorded(ctx context.Context, rec *attempt.Record) {
	for _, e := range r.attemptRecorded {
		if err := e.hook.OnAttemptRecorded(ctx, rec); err != nil {
			r.logHookError("OnAttemptRecorded", e.name, err)
		}
	}
}

// EmitLockoutStarted notifies all plugins that implement LockoutStarted.
func (r *Registry) EmitLockoutStarted(ctx context.Context, tenantID, identity, level string, retryAfterSeconds int) {
	for _, e := range r.lockoutStarted {
		if err := e.hook.OnLockoutStarted(ctx, tenantID, identity, level, retryAfterSeconds); err != nil {
			r.logHookError("OnLockoutStarted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Access evaluation event emitters
// ──────────────────────────────────────────────────

// EmitBeforeEvaluate notifies all plugins that implement BeforeEvaluate.
func (r *Registry) EmitBeforeEvaluate(ctx context.Context, access any) {
	for _, e := range r.beforeEvaluate {
		if err := e.hook.OnBeforeEvaluate(ctx, access); err != nil {
			r.logHookError("OnBeforeEvaluate", e.name, err)
		}
	}
}

// EmitAfterEvaluate notifies all plugins that implement AfterEvaluate.
func (r *Registry) EmitAfterEvaluate(ctx context.Context, access, decision any) {
	for _, e := range r.afterEvaluate {
		if err := e.hook.OnAfterEvaluate(ctx, access, decision); err != nil {
			r.logHookError("OnAfterEvaluate", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Device event emitters
// ──────────────────────────────────────────────────

// EmitVerificationRecorded notifies all plugins that implement VerificationRecorded.
func (r *Registry) EmitVerificationRecorded(ctx context.Context, deviceID string, ev *device.VerificationEvent) {
	for _, e := range r.verificationRecorded {
		if err := e.hook.OnVerificationRecorded(ctx, deviceID, ev); err != nil {
			r.logHookError("OnVerificationRecorded", e.name, err)
		}
	}
}

// EmitDeviceQuarantined notifies all plugins that implement DeviceQuarantined.
func (r *Registry) EmitDeviceQuarantined(ctx context.Context, deviceID, reason string) {
	for _, e := range r.deviceQuarantined {
		if err := e.hook.OnDeviceQuarantined(ctx, deviceID, reason); err != nil {
			r.logHookError("OnDeviceQuarantined", e.name, err)
		}
	}
}

// EmitDeviceCompromised notifies all plugins that implement DeviceCompromised.
func (r *Registry) EmitDeviceCompromised(ctx context.Context, deviceID, reason string) {
	for _, e := range r.deviceCompromised {
		if err := e.hook.OnDeviceCompromised(ctx, deviceID, reason); err != nil {
			r.logHookError("OnDeviceCompromised", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
