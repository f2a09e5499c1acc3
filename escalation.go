package rampart

import (
	"time"

	"github.com/xraph/rampart/attempt"
)

// classifyAttempts maps ledger window statistics onto an escalation
// level and retry-after duration. It is a pure function of its inputs:
// no randomness, no clock reads, so the retry guidance given to clients
// is honest and repeated checks are idempotent.
//
// Lockout requires a completed episode: the threshold number of
// failures clustered inside one short-window span. Failures that
// accumulate in the episode window without ever clustering that
// tightly only reach the elevated tier. Ties at a threshold boundary
// resolve to the more restrictive tier.
func classifyAttempts(stats *attempt.WindowStats, pol LockoutPolicy, now time.Time) (EscalationLevel, time.Duration) {
	if stats.LockoutEpisodes > 0 {
		lockout := lockoutFor(stats.LockoutEpisodes, pol)
		lockedUntil := stats.LastEpisodeAt.Add(lockout)
		if now.Before(lockedUntil) {
			if stats.LockoutEpisodes > 1 {
				return LevelExtendedLockout, lockout
			}
			return LevelLocked, lockout
		}
		// The lockout elapsed without fresh failures; fall through to
		// the plain window classification so the level decays.
	}

	failures := stats.FailureCount
	if pol.SuccessDecay {
		failures -= stats.SuccessCount
		if failures < 0 {
			failures = 0
		}
	}

	if failures >= pol.LowThreshold {
		return LevelElevated, 0
	}
	return LevelNone, 0
}

// lockoutFor computes the lockout duration for the given number of
// completed episodes within the episode window. The first episode gets
// the base duration; each repeat adds a step, capped at the ceiling.
func lockoutFor(episodes int, pol LockoutPolicy) time.Duration {
	d := pol.BaseLockout + time.Duration(episodes-1)*pol.LockoutStep
	if d > pol.MaxLockout {
		return pol.MaxLockout
	}
	return d
}
