package rampart

import (
	"fmt"
	"math"
	"time"
)

// LockoutPolicy tunes the escalation tiers of the rate limiter.
type LockoutPolicy struct {
	// Window is the trailing window over which failures are counted.
	// Defaults to 15 minutes.
	Window time.Duration `json:"window,omitempty"`

	// EpisodeWindow is the larger rolling window in which repeated
	// lockout episodes escalate further. Defaults to 6 hours.
	EpisodeWindow time.Duration `json:"episode_window,omitempty"`

	// LowThreshold is the failure count at which an identity becomes
	// elevated. Defaults to 5.
	LowThreshold int `json:"low_threshold,omitempty"`

	// LockoutThreshold is the failure count at which an identity is
	// locked out. Defaults to 10.
	LockoutThreshold int `json:"lockout_threshold,omitempty"`

	// BaseLockout is the lockout duration for a first episode.
	// Defaults to 30 minutes.
	BaseLockout time.Duration `json:"base_lockout,omitempty"`

	// LockoutStep is added per repeat episode within EpisodeWindow.
	// Defaults to 30 minutes.
	LockoutStep time.Duration `json:"lockout_step,omitempty"`

	// MaxLockout caps the escalated lockout duration so repeat
	// offenses never produce unbounded denial. Defaults to 4 hours.
	MaxLockout time.Duration `json:"max_lockout,omitempty"`

	// SuccessDecay, when true, lets each success in the window cancel
	// one failure when deciding between the none and elevated tiers.
	// Successes never shorten a lockout and never shrink the window
	// itself. Defaults to false.
	SuccessDecay bool `json:"success_decay,omitempty"`
}

// DelayPolicy tunes the progressive response delay.
type DelayPolicy struct {
	// Base is the artificial delay at the none tier, applied to both
	// success and failure paths so response time alone cannot
	// distinguish outcomes. Defaults to 100ms.
	Base time.Duration `json:"base,omitempty"`

	// Elevated is the artificial delay at the elevated tier.
	// Defaults to 1s.
	Elevated time.Duration `json:"elevated,omitempty"`

	// MaxJitter is the upper bound of the uniform random jitter added
	// on top of the tier delay. Defaults to 250ms.
	MaxJitter time.Duration `json:"max_jitter,omitempty"`
}

// TrustWeights are the per-signal weights of the trust aggregation.
// They must sum to 1.
type TrustWeights struct {
	Identity float64 `json:"identity"`
	Device   float64 `json:"device"`
	Behavior float64 `json:"behavior"`
	Network  float64 `json:"network"`
	Location float64 `json:"location"`
}

// RiskThresholds map an overall trust score onto a risk level. Scores
// at or above Low are low risk, at or above Medium are medium, at or
// above High are high, and anything below High is critical.
type RiskThresholds struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Config holds configuration for the rampart Limiter and Engine.
type Config struct {
	Lockout LockoutPolicy `json:"lockout,omitempty"`
	Delay   DelayPolicy   `json:"delay,omitempty"`

	// Weights combine the five trust signals into the overall score.
	Weights TrustWeights `json:"weights,omitempty"`

	// Risk maps the overall trust score onto a risk level.
	Risk RiskThresholds `json:"risk,omitempty"`

	// MaxScoreAge is how stale a TrustScore may be, relative to the
	// access context timestamp, before the computed risk is raised one
	// level. Zero disables the staleness bump.
	MaxScoreAge time.Duration `json:"max_score_age,omitempty"`

	// CacheTTL is the time-to-live for cached access decisions.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// AuditDecisions controls whether decisions are written to the
	// decision log. Defaults to true.
	AuditDecisions *bool `json:"audit_decisions,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		Lockout: LockoutPolicy{
			Window:           15 * time.Minute,
			EpisodeWindow:    6 * time.Hour,
			LowThreshold:     5,
			LockoutThreshold: 10,
			BaseLockout:      30 * time.Minute,
			LockoutStep:      30 * time.Minute,
			MaxLockout:       4 * time.Hour,
		},
		Delay: DelayPolicy{
			Base:      100 * time.Millisecond,
			Elevated:  time.Second,
			MaxJitter: 250 * time.Millisecond,
		},
		Weights: TrustWeights{
			Identity: 0.25,
			Device:   0.25,
			Behavior: 0.20,
			Network:  0.15,
			Location: 0.15,
		},
		Risk: RiskThresholds{
			Low:    0.8,
			Medium: 0.6,
			High:   0.4,
		},
		MaxScoreAge:    10 * time.Minute,
		AuditDecisions: &t,
	}
}

// Validate checks thresholds, windows, and weights. It is called by
// NewLimiter and NewEngine so misconfiguration fails fast before any
// traffic is served.
func (c Config) Validate() error {
	l := c.Lockout
	if l.Window <= 0 {
		return fmt.Errorf("%w: lockout window must be positive", ErrInvalidConfig)
	}
	if l.EpisodeWindow < l.Window {
		return fmt.Errorf("%w: episode window must be at least the lockout window", ErrInvalidConfig)
	}
	if l.LowThreshold <= 0 {
		return fmt.Errorf("%w: low threshold must be positive", ErrInvalidConfig)
	}
	if l.LockoutThreshold <= l.LowThreshold {
		return fmt.Errorf("%w: lockout threshold must exceed low threshold", ErrInvalidConfig)
	}
	if l.BaseLockout <= 0 {
		return fmt.Errorf("%w: base lockout must be positive", ErrInvalidConfig)
	}
	if l.LockoutStep < 0 {
		return fmt.Errorf("%w: lockout step must not be negative", ErrInvalidConfig)
	}
	if l.MaxLockout < l.BaseLockout {
		return fmt.Errorf("%w: max lockout must be at least the base lockout", ErrInvalidConfig)
	}

	d := c.Delay
	if d.Base < 0 || d.Elevated < 0 || d.MaxJitter < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}

	w := c.Weights
	for name, v := range map[string]float64{
		"identity": w.Identity,
		"device":   w.Device,
		"behavior": w.Behavior,
		"network":  w.Network,
		"location": w.Location,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: weight %q out of [0,1]", ErrInvalidConfig, name)
		}
	}
	sum := w.Identity + w.Device + w.Behavior + w.Network + w.Location
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, sum)
	}

	r := c.Risk
	if !(r.Low > r.Medium && r.Medium > r.High && r.High > 0 && r.Low <= 1) {
		return fmt.Errorf("%w: risk thresholds must satisfy 0 < high < medium < low <= 1", ErrInvalidConfig)
	}

	if c.MaxScoreAge < 0 {
		return fmt.Errorf("%w: max score age must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) auditEnabled() bool { return c.AuditDecisions == nil || *c.AuditDecisions }
