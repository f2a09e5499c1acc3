package rampart

import (
	"testing"
	"time"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/id"
)

func failuresAt(n int, base time.Time, spacing time.Duration) []*attempt.Record {
	records := make([]*attempt.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &attempt.Record{
			ID:      id.NewAttemptID(),
			Outcome: attempt.OutcomeFailure,
			At:      base.Add(time.Duration(i) * spacing),
		})
	}
	return records
}

func classify(t *testing.T, records []*attempt.Record, pol LockoutPolicy, now time.Time) (EscalationLevel, time.Duration) {
	t.Helper()
	stats := attempt.Summarize(records, now, pol.Window, pol.EpisodeWindow, pol.LockoutThreshold)
	return classifyAttempts(stats, pol, now)
}

func TestClassifyBelowLowThreshold(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	for n := 0; n < pol.LowThreshold; n++ {
		records := failuresAt(n, now.Add(-10*time.Minute), time.Minute)
		level, retry := classify(t, records, pol, now)
		if level != LevelNone {
			t.Fatalf("%d failures: expected none, got %s", n, level)
		}
		if retry != 0 {
			t.Fatalf("%d failures: expected no retry, got %s", n, retry)
		}
	}
}

func TestClassifyElevated(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// 5 through 9 failures: elevated, still allowed, no retry hint.
	for n := pol.LowThreshold; n < pol.LockoutThreshold; n++ {
		records := failuresAt(n, now.Add(-10*time.Minute), time.Second)
		level, retry := classify(t, records, pol, now)
		if level != LevelElevated {
			t.Fatalf("%d failures: expected elevated, got %s", n, level)
		}
		if retry != 0 {
			t.Fatalf("%d failures: expected no retry, got %s", n, retry)
		}
	}
}

func TestClassifyLockout(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// The 10th failure inside the window trips the lockout; retry
	// guidance is the full base lockout.
	records := failuresAt(pol.LockoutThreshold, now.Add(-10*time.Minute), time.Second)
	level, retry := classify(t, records, pol, now)
	if level != LevelLocked {
		t.Fatalf("expected locked, got %s", level)
	}
	if retry != pol.BaseLockout {
		t.Fatalf("expected retry %s, got %s", pol.BaseLockout, retry)
	}
	if int(retry/time.Second) != 1800 {
		t.Fatalf("expected 1800s retry hint, got %d", int(retry/time.Second))
	}
}

func TestClassifySlowDripNeverLocks(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// Ten failures spaced half an hour apart, the last one a minute
	// ago: only one falls inside the short window, and no ten of them
	// ever cluster within it. The identity stays unthrottled however
	// many accumulate across the episode window.
	records := failuresAt(pol.LockoutThreshold, now.Add(-271*time.Minute), 30*time.Minute)
	level, retry := classify(t, records, pol, now)
	if level != LevelNone {
		t.Fatalf("slow drip must not lock out, got %s", level)
	}
	if retry != 0 {
		t.Fatalf("expected no retry hint, got %s", retry)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()
	records := failuresAt(12, now.Add(-10*time.Minute), time.Second)

	stats := attempt.Summarize(records, now, pol.Window, pol.EpisodeWindow, pol.LockoutThreshold)
	l1, r1 := classifyAttempts(stats, pol, now)
	for i := 0; i < 100; i++ {
		l2, r2 := classifyAttempts(stats, pol, now)
		if l1 != l2 || r1 != r2 {
			t.Fatal("classification must be deterministic for identical stats")
		}
	}
	if r1 < 0 {
		t.Fatal("retry must never be negative")
	}
}

func TestClassifyMonotonicEscalation(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	prev := LevelNone
	for n := 0; n <= pol.LockoutThreshold+2; n++ {
		records := failuresAt(n, now.Add(-10*time.Minute), time.Second)
		level, _ := classify(t, records, pol, now)
		if level < prev {
			t.Fatalf("level regressed from %s to %s at %d failures", prev, level, n)
		}
		prev = level
	}
}

func TestClassifyExtendedLockout(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// Two full lockout episodes within the episode window: the second
	// offense escalates and lasts longer than the base lockout.
	var records []*attempt.Record
	records = append(records, failuresAt(pol.LockoutThreshold, now.Add(-3*time.Hour), time.Second)...)
	records = append(records, failuresAt(pol.LockoutThreshold, now.Add(-time.Minute), time.Second)...)

	level, retry := classify(t, records, pol, now)
	if level != LevelExtendedLockout {
		t.Fatalf("expected extended lockout, got %s", level)
	}
	if retry <= pol.BaseLockout {
		t.Fatalf("expected escalated retry > %s, got %s", pol.BaseLockout, retry)
	}
	if retry > pol.MaxLockout {
		t.Fatalf("retry %s exceeds ceiling %s", retry, pol.MaxLockout)
	}
}

func TestClassifyLockoutCeiling(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// Many episodes: the duration must cap at MaxLockout, not grow
	// without bound.
	var records []*attempt.Record
	for ep := 0; ep < 12; ep++ {
		base := now.Add(-time.Duration(ep)*25*time.Minute - time.Minute)
		records = append(records, failuresAt(pol.LockoutThreshold, base, time.Second)...)
	}
	level, retry := classify(t, records, pol, now)
	if level != LevelExtendedLockout {
		t.Fatalf("expected extended lockout, got %s", level)
	}
	if retry != pol.MaxLockout {
		t.Fatalf("expected retry capped at %s, got %s", pol.MaxLockout, retry)
	}
}

func TestClassifyDecaysAfterLockoutElapses(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// A full lockout burst, then silence past both the lockout and the
	// counting window: the identity is back to none.
	records := failuresAt(pol.LockoutThreshold, now.Add(-5*time.Hour), time.Second)
	level, _ := classify(t, records, pol, now)
	if level != LevelNone {
		t.Fatalf("expected decay to none after cooldown, got %s", level)
	}
}

func TestClassifyWindowExpiry(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	// Failures older than the window do not count toward elevation.
	records := failuresAt(pol.LowThreshold, now.Add(-30*time.Minute), time.Second)
	level, _ := classify(t, records, pol, now)
	if level != LevelNone {
		t.Fatalf("expected expired failures ignored, got %s", level)
	}
}

func TestClassifySuccessNeverResetsWindow(t *testing.T) {
	pol := DefaultConfig().Lockout
	now := time.Now().UTC()

	records := failuresAt(pol.LockoutThreshold-1, now.Add(-10*time.Minute), time.Second)
	records = append(records, &attempt.Record{
		ID:      id.NewAttemptID(),
		Outcome: attempt.OutcomeSuccess,
		At:      now.Add(-time.Minute),
	})

	// Without SuccessDecay, nine failures plus a success is still
	// elevated: the window is purely time-based.
	level, _ := classify(t, records, pol, now)
	if level != LevelElevated {
		t.Fatalf("expected elevated, got %s", level)
	}
}

func TestClassifySuccessDecay(t *testing.T) {
	pol := DefaultConfig().Lockout
	pol.SuccessDecay = true
	now := time.Now().UTC()

	records := failuresAt(pol.LowThreshold, now.Add(-10*time.Minute), time.Second)
	records = append(records, &attempt.Record{
		ID:      id.NewAttemptID(),
		Outcome: attempt.OutcomeSuccess,
		At:      now.Add(-time.Minute),
	})

	// With decay enabled, one success cancels one failure, dropping
	// the identity back below the low threshold.
	level, _ := classify(t, records, pol, now)
	if level != LevelNone {
		t.Fatalf("expected none with success decay, got %s", level)
	}

	// Decay never shortens an active lockout.
	locked := failuresAt(pol.LockoutThreshold, now.Add(-10*time.Minute), time.Second)
	for i := 0; i < 5; i++ {
		locked = append(locked, &attempt.Record{
			ID:      id.NewAttemptID(),
			Outcome: attempt.OutcomeSuccess,
			At:      now.Add(-time.Minute),
		})
	}
	level, _ = classify(t, locked, pol, now)
	if level != LevelLocked {
		t.Fatalf("expected lockout unaffected by successes, got %s", level)
	}
}
