package rampart

import (
	"context"
	"testing"
	"time"
)

func TestDelayForTiers(t *testing.T) {
	pol := DelayPolicy{Base: 100 * time.Millisecond, Elevated: time.Second, MaxJitter: 250 * time.Millisecond}

	for i := 0; i < 100; i++ {
		d := delayFor(LevelNone, pol)
		if d < pol.Base || d > pol.Base+pol.MaxJitter {
			t.Fatalf("none: delay %s outside [base, base+jitter]", d)
		}
		d = delayFor(LevelElevated, pol)
		if d < pol.Elevated || d > pol.Elevated+pol.MaxJitter {
			t.Fatalf("elevated: delay %s outside [elevated, elevated+jitter]", d)
		}
	}

	// Locked tiers reject immediately, no delay.
	if delayFor(LevelLocked, pol) != 0 {
		t.Fatal("locked: expected no delay")
	}
	if delayFor(LevelExtendedLockout, pol) != 0 {
		t.Fatal("extended lockout: expected no delay")
	}
}

func TestDelayForJitterVaries(t *testing.T) {
	pol := DelayPolicy{Base: time.Millisecond, MaxJitter: time.Second}

	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		seen[delayFor(LevelNone, pol)] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected jitter to vary across calls")
	}
}

func TestDelayForZeroPolicy(t *testing.T) {
	if delayFor(LevelNone, DelayPolicy{}) != 0 {
		t.Fatal("zero policy: expected no delay")
	}
}

func TestSleepCancellable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sleep(ctx, 5*time.Second)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep did not honor cancellation")
	}
}

func TestSleepZero(t *testing.T) {
	if err := sleep(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
}
