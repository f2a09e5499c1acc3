package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/id"
)

// testPlugin implements Plugin + AttemptRecorded + AfterCheck + LockoutStarted.
type testPlugin struct {
	attemptRecordedCalled bool
	afterCheckCalled      bool
	lockoutLevel          string
	lockoutRetry          int
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnAttemptRecorded(_ context.Context, _ *attempt.Record) error {
	t.attemptRecordedCalled = true
	return nil
}

func (t *testPlugin) OnAfterCheck(_ context.Context, _ string, _ any) error {
	t.afterCheckCalled = true
	return nil
}

func (t *testPlugin) OnLockoutStarted(_ context.Context, _, _ string, level string, retryAfterSeconds int) error {
	t.lockoutLevel = level
	t.lockoutRetry = retryAfterSeconds
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

// failingPlugin returns an error from each hook; errors must be
// swallowed, not propagated.
type failingPlugin struct{}

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnAttemptRecorded(_ context.Context, _ *attempt.Record) error {
	return errors.New("hook failed")
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch AttemptRecorded to testPlugin only.
	reg.EmitAttemptRecorded(ctx, &attempt.Record{
		ID:       id.NewAttemptID(),
		TenantID: "t1",
		Identity: "1.2.3.4|chrome",
		Outcome:  attempt.OutcomeFailure,
		At:       time.Now(),
	})
	if !tp.attemptRecordedCalled {
		t.Fatal("OnAttemptRecorded was not called")
	}

	// Should dispatch AfterCheck.
	reg.EmitAfterCheck(ctx, "1.2.3.4|chrome", nil)
	if !tp.afterCheckCalled {
		t.Fatal("OnAfterCheck was not called")
	}

	// Should dispatch LockoutStarted with the tier details.
	reg.EmitLockoutStarted(ctx, "t1", "1.2.3.4|chrome", "locked", 1800)
	if tp.lockoutLevel != "locked" || tp.lockoutRetry != 1800 {
		t.Fatalf("unexpected lockout dispatch: %q %d", tp.lockoutLevel, tp.lockoutRetry)
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeCheck(ctx, "x", nil)
	reg.EmitBeforeEvaluate(ctx, nil)
	reg.EmitDeviceQuarantined(ctx, "dev_x", "test")
	reg.EmitShutdown(ctx)
}

func TestRegistrySwallowsHookErrors(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())
	reg.Register(&failingPlugin{})

	// Must not panic or propagate.
	reg.EmitAttemptRecorded(ctx, &attempt.Record{ID: id.NewAttemptID(), Outcome: attempt.OutcomeSuccess, At: time.Now()})
}
