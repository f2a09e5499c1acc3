// Package attempt defines the authentication attempt ledger entity and
// its store interface.
package attempt

import (
	"sort"
	"time"

	"github.com/xraph/rampart/id"
)

// Outcome is the result of an authentication attempt.
type Outcome string

const (
	// OutcomeSuccess marks a completed authentication.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure marks a failed authentication.
	OutcomeFailure Outcome = "failure"
)

// Record is one authentication-relevant completion for an identity.
// Records are owned exclusively by the ledger and are pruned once older
// than the retention window; an identity with no recent traffic leaves
// no state behind.
type Record struct {
	ID       id.AttemptID `json:"id" db:"id"`
	TenantID string       `json:"tenant_id" db:"tenant_id"`
	Identity string       `json:"identity" db:"identity"`
	Outcome  Outcome      `json:"outcome" db:"outcome"`
	At       time.Time    `json:"at" db:"at"`
}

// WindowStats summarizes an identity's recent attempts over the
// classification windows.
type WindowStats struct {
	// FailureCount is the number of failures inside the short window.
	FailureCount int `json:"failure_count"`

	// SuccessCount is the number of successes inside the short window.
	SuccessCount int `json:"success_count"`

	// EpisodeFailureCount is the number of failures inside the larger
	// episode window.
	EpisodeFailureCount int `json:"episode_failure_count"`

	// LockoutEpisodes is the number of disjoint failure clusters inside
	// the episode window that each reached the lockout threshold within
	// one short-window span. Failures that never cluster that tightly
	// complete no episode, no matter how many accumulate.
	LockoutEpisodes int `json:"lockout_episodes"`

	// LastEpisodeAt is the moment the most recent episode crossed the
	// threshold, zero if none.
	LastEpisodeAt time.Time `json:"last_episode_at,omitzero"`

	// LastFailureAt is the time of the most recent failure in the
	// episode window, zero if none.
	LastFailureAt time.Time `json:"last_failure_at,omitzero"`

	// OldestFailureAt is the time of the oldest failure in the short
	// window, zero if none.
	OldestFailureAt time.Time `json:"oldest_failure_at,omitzero"`
}

// Summarize computes window statistics from a batch of records. The
// records are expected to already be bounded by the episode window;
// anything older is ignored. Order does not matter.
func Summarize(records []*Record, now time.Time, window, episodeWindow time.Duration, lockoutThreshold int) *WindowStats {
	stats := &WindowStats{}
	windowStart := now.Add(-window)
	episodeStart := now.Add(-episodeWindow)

	var failures []time.Time
	for _, r := range records {
		if r.At.Before(episodeStart) || r.At.After(now) {
			continue
		}
		inWindow := !r.At.Before(windowStart)

		switch r.Outcome {
		case OutcomeFailure:
			stats.EpisodeFailureCount++
			failures = append(failures, r.At)
			if r.At.After(stats.LastFailureAt) {
				stats.LastFailureAt = r.At
			}
			if inWindow {
				stats.FailureCount++
				if stats.OldestFailureAt.IsZero() || r.At.Before(stats.OldestFailureAt) {
					stats.OldestFailureAt = r.At
				}
			}
		case OutcomeSuccess:
			if inWindow {
				stats.SuccessCount++
			}
		}
	}
	stats.LockoutEpisodes, stats.LastEpisodeAt = countEpisodes(failures, window, lockoutThreshold)
	return stats
}

// countEpisodes greedily groups failure times into disjoint clusters of
// at least threshold failures spanning no more than window. Each such
// cluster is one completed lockout episode. Returns the episode count
// and the moment the latest episode crossed the threshold.
func countEpisodes(failures []time.Time, window time.Duration, threshold int) (int, time.Time) {
	if threshold <= 0 || len(failures) < threshold {
		return 0, time.Time{}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Before(failures[j]) })

	episodes := 0
	var last time.Time
	for i := 0; i+threshold <= len(failures); {
		end := i + threshold - 1
		if failures[end].Sub(failures[i]) <= window {
			episodes++
			last = failures[end]
			i = end + 1
			continue
		}
		i++
	}
	return episodes, last
}
