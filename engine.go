package rampart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
	"github.com/xraph/rampart/id"
	"github.com/xraph/rampart/plugin"
	"github.com/xraph/rampart/store"
)

// Engine is the zero-trust access evaluator. It combines the trust
// score embedded in an access context with the device trust record and
// produces an allow/deny/challenge decision.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time
}

// NewEngine creates a new access evaluator with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	st := defaultSettings()
	for _, opt := range opts {
		opt(&st)
	}
	if st.store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := st.config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		store:   st.store,
		cache:   st.cache,
		plugins: st.plugins,
		logger:  st.logger,
		config:  st.config,
		now:     st.now,
	}, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown and fires the Shutdown hook.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Evaluate loads the device trust record referenced by the access
// context and decides the request. This is the hot path.
//
// Every return carries a well-formed decision. If the device store
// cannot respond the evaluation fails closed: the decision denies and
// the error wraps ErrStoreUnavailable.
func (e *Engine) Evaluate(ctx context.Context, access *AccessContext) (*AccessDecision, error) {
	start := time.Now()
	if access == nil || access.UserID == "" {
		return deniedAccess(start, RiskCritical, "invalid access context"),
			fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	scope := scopeFromContext(ctx)

	// A stale score is re-penalized on every evaluation: it neither
	// reads from nor feeds the decision cache.
	cacheable := e.cache != nil && !e.scoreIsStale(access)

	if cacheable {
		if cached, ok := e.cache.Get(ctx, scope.tenantID, access); ok {
			cached.EvalTimeNs = time.Since(start).Nanoseconds()
			return cached, nil
		}
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeEvaluate(ctx, access)
	}

	var dev *device.Trust
	if access.DeviceID != "" {
		var err error
		dev, err = e.store.GetDevice(ctx, access.DeviceID)
		if err != nil {
			if isNotFound(err) {
				// An unknown device cannot be trusted: challenge it.
				decision := deniedAccess(start, RiskHigh, "unknown device")
				decision.RequiredVerifications = []VerificationKind{VerifyDevice}
				e.finish(ctx, scope.tenantID, access, decision, start)
				return decision, fmt.Errorf("%w: %s", ErrDeviceNotFound, access.DeviceID)
			}
			return deniedAccess(start, RiskCritical, "trust store unavailable"),
				fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	decision := e.Decide(access, dev)
	e.finish(ctx, scope.tenantID, access, decision, start)

	if cacheable && decision.Allowed {
		e.cache.Set(ctx, scope.tenantID, access, decision)
	}
	return decision, nil
}

// Decide is the pure decision function: no clock, no store, no hidden
// state. Given the same access context and device record it always
// returns the same decision, so any decision is reproducible from its
// recorded inputs. A nil device means the request carries no device
// identity; device gates are skipped.
func (e *Engine) Decide(access *AccessContext, dev *device.Trust) *AccessDecision {
	if dev != nil {
		if dev.IsCompromised {
			return &AccessDecision{
				Allowed:   false,
				RiskLevel: RiskCritical,
				Reason:    "device compromised",
			}
		}
		if dev.IsQuarantined {
			return &AccessDecision{
				Allowed:               false,
				RiskLevel:             RiskHigh,
				RequiredVerifications: []VerificationKind{VerifyDevice},
				Reason:                "device quarantined",
			}
		}
	}

	risk := e.riskFrom(access.Trust.Overall)

	// A stale score cannot be trusted at face value; raise the risk
	// one level.
	if e.scoreIsStale(access) && risk < RiskCritical {
		risk++
	}

	// The caller's own risk assessment can only tighten the decision.
	if access.RiskLevel > risk {
		risk = access.RiskLevel
	}

	if risk == RiskCritical {
		return &AccessDecision{
			Allowed:   false,
			RiskLevel: RiskCritical,
			Reason:    "trust below critical threshold",
		}
	}

	decision := &AccessDecision{Allowed: true, RiskLevel: risk}
	switch risk {
	case RiskMedium:
		if classifyAction(access.Action) != ActionRead {
			decision.RequiredVerifications = []VerificationKind{VerifyReauthenticate}
		}
	case RiskHigh:
		decision.RequiredVerifications = []VerificationKind{VerifyReauthenticate}
		if classifyAction(access.Action) == ActionDestructive {
			decision.RequiredVerifications = append(decision.RequiredVerifications, VerifyMFA)
		}
	}
	return decision
}

// scoreIsStale reports whether the context's trust score is older than
// the configured maximum, measured against the request timestamp.
func (e *Engine) scoreIsStale(access *AccessContext) bool {
	return e.config.MaxScoreAge > 0 && !access.Trust.LastUpdated.IsZero() &&
		access.Timestamp.Sub(access.Trust.LastUpdated) > e.config.MaxScoreAge
}

// Enforce returns ErrAccessDenied if the evaluation denies access.
func (e *Engine) Enforce(ctx context.Context, access *AccessContext) error {
	decision, err := e.Evaluate(ctx, access)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", ErrAccessDenied, decision.Reason)
	}
	return nil
}

// RegisterDevice creates a device trust record with the neutral initial
// trust score. If the fingerprint is already registered for the tenant,
// the existing record is touched and returned instead.
func (e *Engine) RegisterDevice(ctx context.Context, userID, fingerprint string) (*device.Trust, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("%w: fingerprint is required", ErrInvalidInput)
	}
	scope := scopeFromContext(ctx)

	existing, err := e.store.GetDeviceByFingerprint(ctx, scope.tenantID, fingerprint)
	if err == nil {
		if terr := e.store.TouchDevice(ctx, existing.ID.String(), e.now()); terr == nil {
			existing.LastSeen = e.now()
		}
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	t := &device.Trust{
		ID:          id.NewDeviceID(),
		TenantID:    scope.tenantID,
		UserID:      userID,
		Fingerprint: fingerprint,
		TrustScore:  device.InitialTrustScore,
		FirstSeen:   now,
		LastSeen:    now,
	}
	if err := e.store.CreateDevice(ctx, t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return t, nil
}

// RecordVerification records a completed step-up verification for a
// device and invalidates its cached decisions.
func (e *Engine) RecordVerification(ctx context.Context, deviceID string, kind VerificationKind, succeeded bool) error {
	ev := &device.VerificationEvent{
		ID:        id.NewVerificationID(),
		Kind:      string(kind),
		Succeeded: succeeded,
		At:        e.now(),
	}
	if err := e.store.RecordVerification(ctx, deviceID, ev); err != nil {
		return e.deviceErr(deviceID, err)
	}
	e.invalidateDevice(ctx, deviceID)
	if e.plugins != nil {
		e.plugins.EmitVerificationRecorded(ctx, deviceID, ev)
	}
	return nil
}

// QuarantineDevice quarantines a device and invalidates its cached
// decisions.
func (e *Engine) QuarantineDevice(ctx context.Context, deviceID, reason string) error {
	if err := e.store.QuarantineDevice(ctx, deviceID, reason); err != nil {
		return e.deviceErr(deviceID, err)
	}
	e.invalidateDevice(ctx, deviceID)
	if e.plugins != nil {
		e.plugins.EmitDeviceQuarantined(ctx, deviceID, reason)
	}
	return nil
}

// ReleaseDevice clears a device's quarantine flag. The compromise flag,
// if set, stays set.
func (e *Engine) ReleaseDevice(ctx context.Context, deviceID string) error {
	if err := e.store.ReleaseDevice(ctx, deviceID); err != nil {
		return e.deviceErr(deviceID, err)
	}
	e.invalidateDevice(ctx, deviceID)
	return nil
}

// MarkDeviceCompromised sets the sticky compromise flag on a device and
// invalidates its cached decisions.
func (e *Engine) MarkDeviceCompromised(ctx context.Context, deviceID, reason string) error {
	if err := e.store.MarkDeviceCompromised(ctx, deviceID, reason); err != nil {
		return e.deviceErr(deviceID, err)
	}
	e.invalidateDevice(ctx, deviceID)
	if e.plugins != nil {
		e.plugins.EmitDeviceCompromised(ctx, deviceID, reason)
	}
	return nil
}

// AggregateTrust combines raw trust signals using the engine's
// configured weights, stamping the aggregation time from the engine
// clock.
func (e *Engine) AggregateTrust(signals TrustSignals) TrustScore {
	return AggregateTrust(signals, e.config.Weights, e.now())
}

func (e *Engine) riskFrom(overall float64) RiskLevel {
	r := e.config.Risk
	switch {
	case overall >= r.Low:
		return RiskLow
	case overall >= r.Medium:
		return RiskMedium
	case overall >= r.High:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func (e *Engine) finish(ctx context.Context, tenantID string, access *AccessContext, decision *AccessDecision, start time.Time) {
	decision.EvalTimeNs = time.Since(start).Nanoseconds()

	if e.config.auditEnabled() {
		entry := &decisionlog.Entry{
			ID:         id.NewDecisionLogID(),
			TenantID:   tenantID,
			Kind:       decisionlog.KindAccess,
			UserID:     access.UserID,
			DeviceID:   access.DeviceID,
			Resource:   access.Resource,
			Action:     access.Action,
			Allowed:    decision.Allowed,
			Level:      decision.RiskLevel.String(),
			Reason:     decision.Reason,
			EvalTimeNs: decision.EvalTimeNs,
			CreatedAt:  e.now(),
		}
		if err := e.store.CreateDecisionLog(ctx, entry); err != nil {
			e.logger.Warn("decision audit failed",
				slog.String("kind", string(decisionlog.KindAccess)),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.plugins != nil {
		e.plugins.EmitAfterEvaluate(ctx, access, decision)
	}
}

func (e *Engine) invalidateDevice(ctx context.Context, deviceID string) {
	if e.cache != nil {
		scope := scopeFromContext(ctx)
		e.cache.InvalidateDevice(ctx, scope.tenantID, deviceID)
	}
}

func (e *Engine) deviceErr(deviceID string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// isNotFound reports whether a store error is a plain missing-record
// error rather than an availability failure.
func isNotFound(err error) bool {
	return errors.Is(err, device.ErrNotFound) || errors.Is(err, ErrDeviceNotFound)
}

func deniedAccess(start time.Time, risk RiskLevel, reason string) *AccessDecision {
	return &AccessDecision{
		Allowed:    false,
		RiskLevel:  risk,
		Reason:     reason,
		EvalTimeNs: time.Since(start).Nanoseconds(),
	}
}
