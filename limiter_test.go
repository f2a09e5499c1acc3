package rampart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/store/memory"
)

func newTestLimiter(t *testing.T, opts ...Option) (*Limiter, *memory.Store) {
	t.Helper()
	s := memory.New()
	cfg := DefaultConfig()
	// No artificial delay in tests unless a test opts in.
	cfg.Delay = DelayPolicy{}
	lim, err := NewLimiter(append([]Option{WithStore(s), WithConfig(cfg)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return lim, s
}

func recordFailures(t *testing.T, ctx context.Context, lim *Limiter, identity Identity, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := lim.RecordResult(ctx, identity, false); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewLimiter_RequiresStore(t *testing.T) {
	_, err := NewLimiter()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestNewLimiter_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lockout.LockoutThreshold = cfg.Lockout.LowThreshold
	_, err := NewLimiter(WithStore(memory.New()), WithConfig(cfg))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCheckFreshIdentity(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	lim, _ := newTestLimiter(t)

	decision, err := lim.Check(ctx, "1.2.3.4|chrome")
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed || decision.Level != LevelNone {
		t.Fatalf("expected allowed/none, got %v/%s", decision.Allowed, decision.Level)
	}
	if decision.RetryAfterSeconds != 0 {
		t.Fatalf("expected no retry hint, got %d", decision.RetryAfterSeconds)
	}
}

func TestCheckEscalationScenario(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	lim, _ := newTestLimiter(t)
	identity := Identity("1.2.3.4|chrome")

	// 9 failures: elevated but allowed.
	recordFailures(t, ctx, lim, identity, 9)
	decision, err := lim.Check(ctx, identity)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed || decision.Level != LevelElevated {
		t.Fatalf("after 9 failures: expected allowed/elevated, got %v/%s", decision.Allowed, decision.Level)
	}
	if decision.FailureCount != 9 {
		t.Fatalf("expected failure count 9, got %d", decision.FailureCount)
	}

	// 10th failure: locked, denied, base lockout retry.
	recordFailures(t, ctx, lim, identity, 1)
	decision, err = lim.Check(ctx, identity)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Allowed || decision.Level != LevelLocked {
		t.Fatalf("after 10 failures: expected denied/locked, got %v/%s", decision.Allowed, decision.Level)
	}
	if decision.RetryAfterSeconds != 1800 {
		t.Fatalf("expected 1800s retry, got %d", decision.RetryAfterSeconds)
	}
}

func TestCheckIdempotent(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	lim, _ := newTestLimiter(t)
	identity := Identity("1.2.3.4|chrome")

	recordFailures(t, ctx, lim, identity, 7)

	first, err := lim.Check(ctx, identity)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := lim.Check(ctx, identity)
		if err != nil {
			t.Fatal(err)
		}
		if again.Allowed != first.Allowed || again.Level != first.Level ||
			again.FailureCount != first.FailureCount ||
			again.RetryAfterSeconds != first.RetryAfterSeconds {
			t.Fatal("repeated checks without RecordResult must not change the outcome")
		}
	}
}

func TestCheckIdentitiesIsolated(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	lim, _ := newTestLimiter(t)

	recordFailures(t, ctx, lim, "1.2.3.4|chrome", 10)

	// A different UA class from the same address is a separate identity.
	decision, err := lim.Check(ctx, "1.2.3.4|firefox")
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Fatal("expected sibling identity unaffected by lockout")
	}
}

func TestEnforce(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	lim, _ := newTestLimiter(t)
	identity := Identity("1.2.3.4|chrome")

	if err := lim.Enforce(ctx, identity); err != nil {
		t.Fatalf("expected fresh identity allowed, got %v", err)
	}
	recordFailures(t, ctx, lim, identity, 10)
	if err := lim.Enforce(ctx, identity); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCheckEmptyIdentityDenied(t *testing.T) {
	ctx := context.Background()
	lim, _ := newTestLimiter(t)

	decision, err := lim.Check(ctx, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if decision == nil || decision.Allowed {
		t.Fatal("malformed input must deny")
	}
}

func TestCheckRequestMalformedAddress(t *testing.T) {
	ctx := context.Background()
	lim, _ := newTestLimiter(t)

	decision, err := lim.CheckRequest(ctx, RequestInfo{RemoteAddr: "not-an-ip", UserAgent: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if decision.Allowed {
		t.Fatal("malformed request must deny")
	}
}

// failingAttemptStore wraps the memory store and fails ledger reads.
type failingAttemptStore struct {
	*memory.Store
}

func (f *failingAttemptStore) ListAttempts(context.Context, string, string, time.Time) ([]*attempt.Record, error) {
	return nil, errors.New("storage offline")
}

func TestCheckFailsClosed(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	cfg := DefaultConfig()
	cfg.Delay = DelayPolicy{}
	lim, err := NewLimiter(WithStore(&failingAttemptStore{memory.New()}), WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}

	decision, err := lim.Check(ctx, "1.2.3.4|chrome")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if decision == nil || decision.Allowed {
		t.Fatal("an unreadable ledger must fail closed")
	}
}

// lockoutRecorder captures the LockoutStarted hook.
type lockoutRecorder struct {
	level string
	retry int
	count int
}

func (l *lockoutRecorder) Name() string { return "lockout-recorder" }

func (l *lockoutRecorder) OnLockoutStarted(_ context.Context, _, _ string, level string, retryAfterSeconds int) error {
	l.level = level
	l.retry = retryAfterSeconds
	l.count++
	return nil
}

func TestRecordResultEmitsLockoutOnce(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	rec := &lockoutRecorder{}
	lim, _ := newTestLimiter(t, WithPlugin(rec))
	identity := Identity("1.2.3.4|chrome")

	recordFailures(t, ctx, lim, identity, 10)
	if rec.count != 1 {
		t.Fatalf("expected exactly one lockout event, got %d", rec.count)
	}
	if rec.level != "locked" || rec.retry != 1800 {
		t.Fatalf("unexpected lockout event: %q %d", rec.level, rec.retry)
	}

	// Further failures while already locked do not re-emit.
	recordFailures(t, ctx, lim, identity, 3)
	if rec.count != 1 {
		t.Fatalf("expected no re-emission, got %d events", rec.count)
	}
}

func TestApplyDelayHonorsContext(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	s := memory.New()
	cfg := DefaultConfig()
	cfg.Delay = DelayPolicy{Base: 5 * time.Second}
	lim, err := NewLimiter(WithStore(s), WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = lim.ApplyDelay(cancelled, "1.2.3.4|chrome")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("delay did not honor context cancellation")
	}
}

func TestResponse(t *testing.T) {
	lim, _ := newTestLimiter(t)

	resp := lim.Response("too many attempts", 1800, LevelLocked)
	if resp.Error != "too many attempts" || resp.RetryAfterSeconds != 1800 || resp.Level != LevelLocked {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// Negative hints are clamped: retry guidance must never be negative.
	resp = lim.Response("x", -5, LevelNone)
	if resp.RetryAfterSeconds != 0 {
		t.Fatalf("expected clamped retry, got %d", resp.RetryAfterSeconds)
	}
}

func TestPrune(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	lim, s := newTestLimiter(t)

	old := &attempt.Record{
		Outcome: attempt.OutcomeFailure,
		At:      time.Now().Add(-8 * time.Hour),
	}
	if err := s.RecordAttempt(ctx, old); err != nil {
		t.Fatal(err)
	}
	recordFailures(t, ctx, lim, "1.2.3.4|chrome", 1)

	dropped, err := lim.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 pruned, got %d", dropped)
	}
}
