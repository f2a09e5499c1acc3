package rampart

import (
	"context"
	"math/rand/v2"
	"time"
)

// delayFor computes the artificial response delay for an escalation
// level: the tier base plus bounded uniform jitter. The delay is
// applied before returning any authentication result, success and
// failure alike, so response time alone cannot be used to probe
// outcomes.
//
// Locked tiers get no delay: the caller is rejected immediately with a
// retry hint instead of being held open, so lockouts cannot be turned
// into a connection-exhaustion vector.
func delayFor(level EscalationLevel, pol DelayPolicy) time.Duration {
	var base time.Duration
	switch level {
	case LevelNone:
		base = pol.Base
	case LevelElevated:
		base = pol.Elevated
	case LevelLocked, LevelExtendedLockout:
		return 0
	}
	if pol.MaxJitter > 0 {
		base += rand.N(pol.MaxJitter)
	}
	return base
}

// sleep blocks for d or until ctx is done, whichever comes first. The
// suspension is bounded by the caller's own request deadline so a slow
// client cannot pin server resources.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
