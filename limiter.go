package rampart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/id"
	"github.com/xraph/rampart/plugin"
	"github.com/xraph/rampart/store"
)

// Limiter is the authentication rate limiter. It classifies identities
// into escalation tiers from the attempt ledger, applies the
// progressive response delay, and records authentication outcomes.
type Limiter struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time
}

// NewLimiter creates a new rate limiter with the given options.
func NewLimiter(opts ...Option) (*Limiter, error) {
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
	return &Limiter{
		store:   st.store,
		plugins: st.plugins,
		logger:  st.logger,
		config:  st.config,
		now:     st.now,
	}, nil
}

// Store returns the underlying composite store.
func (l *Limiter) Store() store.Store { return l.store }

// Plugins returns the plugin registry (may be nil).
func (l *Limiter) Plugins() *plugin.Registry { return l.plugins }

// Check classifies an identity against the attempt ledger. It is
// read-only: it records nothing, so repeated checks without an
// intervening RecordResult return the same outcome.
//
// If the ledger cannot be read the check fails closed: the returned
// decision denies and the error wraps ErrStoreUnavailable.
func (l *Limiter) Check(ctx context.Context, identity Identity) (*RateLimitDecision, error) {
	start := time.Now()
	if identity == "" {
		return deniedDecision(start), fmt.Errorf("%w: empty identity", ErrInvalidInput)
	}
	scope := scopeFromContext(ctx)

	if l.plugins != nil {
		l.plugins.EmitBeforeCheck(ctx, string(identity), nil)
	}

	stats, err := l.windowStats(ctx, scope.tenantID, identity)
	if err != nil {
		return deniedDecision(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	level, retryAfter := classifyAttempts(stats, l.config.Lockout, l.now())
	decision := &RateLimitDecision{
		Allowed:           level < LevelLocked,
		RetryAfterSeconds: int(retryAfter / time.Second),
		Level:             level,
		FailureCount:      stats.FailureCount,
		EvalTimeNs:        time.Since(start).Nanoseconds(),
	}

	if !decision.Allowed && l.config.auditEnabled() {
		l.audit(ctx, &decisionlog.Entry{
			ID:                id.NewDecisionLogID(),
			TenantID:          scope.tenantID,
			Kind:              decisionlog.KindRateLimit,
			Identity:          string(identity),
			Allowed:           false,
			Level:             level.String(),
			RetryAfterSeconds: decision.RetryAfterSeconds,
			EvalTimeNs:        decision.EvalTimeNs,
			CreatedAt:         l.now(),
		})
	}

	if l.plugins != nil {
		l.plugins.EmitAfterCheck(ctx, string(identity), decision)
	}
	return decision, nil
}

// CheckRequest derives the identity from a request descriptor and
// checks it. A malformed request is denied immediately.
func (l *Limiter) CheckRequest(ctx context.Context, req RequestInfo) (*RateLimitDecision, error) {
	identity, err := ResolveIdentity(req)
	if err != nil {
		return deniedDecision(time.Now()), err
	}
	return l.Check(ctx, identity)
}

// Enforce returns ErrRateLimited if the identity is locked out.
func (l *Limiter) Enforce(ctx context.Context, identity Identity) error {
	decision, err := l.Check(ctx, identity)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: retry after %ds", ErrRateLimited, decision.RetryAfterSeconds)
	}
	return nil
}

// RecordResult appends an authentication outcome to the ledger. A
// success never erases prior failures inside the window; the window is
// purely time-based. When the write tips the identity into a lockout
// tier the LockoutStarted hook fires once.
func (l *Limiter) RecordResult(ctx context.Context, identity Identity, success bool) error {
	if identity == "" {
		return fmt.Errorf("%w: empty identity", ErrInvalidInput)
	}
	scope := scopeFromContext(ctx)
	now := l.now()

	before, err := l.windowStats(ctx, scope.tenantID, identity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	levelBefore, _ := classifyAttempts(before, l.config.Lockout, now)

	outcome := attempt.OutcomeFailure
	if success {
		outcome = attempt.OutcomeSuccess
	}
	rec := &attempt.Record{
		ID:       id.NewAttemptID(),
		TenantID: scope.tenantID,
		Identity: string(identity),
		Outcome:  outcome,
		At:       now,
	}
	if err := l.store.RecordAttempt(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if l.plugins != nil {
		l.plugins.EmitAttemptRecorded(ctx, rec)

		if !success {
			after, err := l.windowStats(ctx, scope.tenantID, identity)
			if err == nil {
				levelAfter, retryAfter := classifyAttempts(after, l.config.Lockout, now)
				if levelBefore < LevelLocked && levelAfter >= LevelLocked {
					l.plugins.EmitLockoutStarted(ctx, scope.tenantID, string(identity),
						levelAfter.String(), int(retryAfter/time.Second))
				}
			}
		}
	}
	return nil
}

// ApplyDelay classifies the identity and suspends the caller for the
// tier's progressive delay. It must run before any authentication
// result is returned, on success and failure paths alike. The
// suspension honors ctx cancellation.
func (l *Limiter) ApplyDelay(ctx context.Context, identity Identity) error {
	scope := scopeFromContext(ctx)
	stats, err := l.windowStats(ctx, scope.tenantID, identity)
	if err != nil {
		// Fall back to the base-tier delay so even a degraded store
		// keeps the response timing uniform.
		stats = &attempt.WindowStats{}
	}
	level, _ := classifyAttempts(stats, l.config.Lockout, l.now())
	return sleep(ctx, delayFor(level, l.config.Delay))
}

// Response builds the structured denial payload for the caller's
// transport layer, e.g. an HTTP 429 with a Retry-After header. It
// carries a generic message and the retry hint, never internal causes.
func (l *Limiter) Response(message string, retryAfterSeconds int, level EscalationLevel) *RateLimitResponse {
	if retryAfterSeconds < 0 {
		retryAfterSeconds = 0
	}
	return &RateLimitResponse{
		Error:             message,
		RetryAfterSeconds: retryAfterSeconds,
		Level:             level,
	}
}

// Prune drops ledger records older than the episode window. Callers
// run it from a maintenance job. Decision log retention is an operator
// concern; purge it via the store's PurgeDecisionLogs directly.
func (l *Limiter) Prune(ctx context.Context) (int64, error) {
	return l.store.PruneAttempts(ctx, l.now().Add(-l.config.Lockout.EpisodeWindow))
}

func (l *Limiter) windowStats(ctx context.Context, tenantID string, identity Identity) (*attempt.WindowStats, error) {
	now := l.now()
	since := now.Add(-l.config.Lockout.EpisodeWindow)
	records, err := l.store.ListAttempts(ctx, tenantID, string(identity), since)
	if err != nil {
		return nil, err
	}
	return attempt.Summarize(records, now, l.config.Lockout.Window, l.config.Lockout.EpisodeWindow, l.config.Lockout.LockoutThreshold), nil
}

// audit writes a decision log entry best-effort. Audit failures are
// logged, never propagated into the request path.
func (l *Limiter) audit(ctx context.Context, e *decisionlog.Entry) {
	if err := l.store.CreateDecisionLog(ctx, e); err != nil {
		l.logger.Warn("decision audit failed",
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func deniedDecision(start time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Allowed:    false,
		Level:      LevelLocked,
		EvalTimeNs: time.Since(start).Nanoseconds(),
	}
}
