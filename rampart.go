// Package rampart provides adaptive authentication defense for Go.
//
// Rampart combines an authentication rate limiter with escalating
// penalties and progressive response delay, and a zero-trust access
// evaluator that converts a multi-signal trust score and a device trust
// record into an allow/deny/challenge decision. It is tenant-scoped by
// default via forge.Scope and integrates with the Forge ecosystem for
// configuration, DI, and HTTP routing.
//
//	lim, err := rampart.NewLimiter(
//	    rampart.WithStore(memStore),
//	)
//	identity, err := rampart.ResolveIdentity(req)
//	decision, err := lim.Check(ctx, identity)
//	if !decision.Allowed {
//	    return lim.Response("too many attempts", decision.RetryAfterSeconds, decision.Level)
//	}
package rampart

import "time"

// Identity is the stable key for an authentication client, derived from
// the source network address and a coarse user-agent class. It is never
// persisted beyond the attempt ledger's retention window.
type Identity string

// RequestInfo is the minimal request descriptor rampart needs from the
// transport layer to derive a client identity.
type RequestInfo struct {
	// RemoteAddr is the source network address ("ip" or "ip:port").
	RemoteAddr string `json:"remote_addr"`

	// UserAgent is the raw client user-agent string.
	UserAgent string `json:"user_agent"`

	// At is the request timestamp.
	At time.Time `json:"at"`
}

// EscalationLevel is the throttling tier for an identity. Levels are
// ordered: a higher value is always more restrictive.
type EscalationLevel int

const (
	// LevelNone means the identity is below every threshold.
	LevelNone EscalationLevel = iota

	// LevelElevated means the identity is flagged for progressive delay
	// but still allowed through.
	LevelElevated

	// LevelLocked means the identity reached the lockout threshold.
	LevelLocked

	// LevelExtendedLockout means repeated lockout episodes occurred
	// within the episode window.
	LevelExtendedLockout
)

var escalationNames = map[EscalationLevel]string{
	LevelNone:            "none",
	LevelElevated:        "elevated",
	LevelLocked:          "locked",
	LevelExtendedLockout: "extended_lockout",
}

// String returns the wire name of the level.
func (l EscalationLevel) String() string {
	if s, ok := escalationNames[l]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (l EscalationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *EscalationLevel) UnmarshalText(data []byte) error {
	s := string(data)
	for lvl, name := range escalationNames {
		if name == s {
			*l = lvl
			return nil
		}
	}
	return errUnknownLevel(s)
}

// ParseEscalationLevel parses a wire name into a level.
func ParseEscalationLevel(s string) (EscalationLevel, error) {
	var l EscalationLevel
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return LevelNone, err
	}
	return l, nil
}

// RateLimitDecision is the outcome of a rate limit check. It is derived
// from the current attempt window and never stored; repeated checks
// without an intervening RecordResult yield the same outcome.
type RateLimitDecision struct {
	Allowed           bool            `json:"allowed"`
	RetryAfterSeconds int             `json:"retry_after_seconds"`
	Level             EscalationLevel `json:"level"`
	FailureCount      int             `json:"failure_count"`
	EvalTimeNs        int64           `json:"eval_time_ns"`
}

// RateLimitResponse is the structured denial payload a caller surfaces
// to its own transport layer, e.g. as an HTTP 429 with a Retry-After
// header. It carries no internal cause.
type RateLimitResponse struct {
	Error             string          `json:"error"`
	RetryAfterSeconds int             `json:"retry_after_seconds"`
	Level             EscalationLevel `json:"level"`
}

// RiskLevel classifies the risk of an access request. Levels are
// ordered: a higher value is always riskier.
type RiskLevel int

const (
	// RiskLow requires no step-up verification.
	RiskLow RiskLevel = iota

	// RiskMedium requires step-up for write and destructive actions.
	RiskMedium

	// RiskHigh always requires step-up verification.
	RiskHigh

	// RiskCritical denies access regardless of offered step-ups.
	RiskCritical
)

var riskNames = map[RiskLevel]string{
	RiskLow:      "low",
	RiskMedium:   "medium",
	RiskHigh:     "high",
	RiskCritical: "critical",
}

// String returns the wire name of the risk level.
func (r RiskLevel) String() string {
	if s, ok := riskNames[r]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(data []byte) error {
	s := string(data)
	for lvl, name := range riskNames {
		if name == s {
			*r = lvl
			return nil
		}
	}
	return errUnknownLevel(s)
}

// ParseRiskLevel parses a wire name into a risk level.
func ParseRiskLevel(s string) (RiskLevel, error) {
	var r RiskLevel
	if err := r.UnmarshalText([]byte(s)); err != nil {
		return RiskLow, err
	}
	return r, nil
}

// VerificationKind identifies a step-up verification method.
type VerificationKind string

const (
	// VerifyReauthenticate requires the user to re-enter primary credentials.
	VerifyReauthenticate VerificationKind = "reauthenticate"

	// VerifyMFA requires a second factor.
	VerifyMFA VerificationKind = "mfa"

	// VerifyDevice requires the device to be re-verified before access.
	VerifyDevice VerificationKind = "re-verify-device"
)

// TrustScore is the normalized multi-signal confidence in a
// principal/device pair. All scores are in [0,1]. LastUpdated lets
// consumers detect staleness; a TrustScore is never authoritative on
// its own.
type TrustScore struct {
	Overall     float64   `json:"overall"`
	Identity    float64   `json:"identity"`
	Device      float64   `json:"device"`
	Behavior    float64   `json:"behavior"`
	Network     float64   `json:"network"`
	Location    float64   `json:"location"`
	LastUpdated time.Time `json:"last_updated"`
}

// TrustSignals are the raw inputs to trust aggregation. A nil signal is
// treated as the conservative neutral value 0.5 so partial information
// degrades trust instead of failing the aggregation.
type TrustSignals struct {
	Identity *float64 `json:"identity,omitempty"`
	Device   *float64 `json:"device,omitempty"`
	Behavior *float64 `json:"behavior,omitempty"`
	Network  *float64 `json:"network,omitempty"`
	Location *float64 `json:"location,omitempty"`
}

// Score is a convenience constructor for an optional signal value.
func Score(v float64) *float64 { return &v }

// AccessContext describes one access request to the zero-trust
// evaluator. It is constructed fresh per request, never mutated after
// construction, and embeds the TrustScore by value so a decision is
// reproducible from its recorded inputs.
type AccessContext struct {
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	DeviceID  string     `json:"device_id"`
	Resource  string     `json:"resource"`
	Action    string     `json:"action"`
	RiskLevel RiskLevel  `json:"risk_level"`
	Trust     TrustScore `json:"trust"`
	Timestamp time.Time  `json:"timestamp"`
}

// AccessDecision is the outcome of a zero-trust evaluation.
type AccessDecision struct {
	Allowed               bool               `json:"allowed"`
	RiskLevel             RiskLevel          `json:"risk_level"`
	RequiredVerifications []VerificationKind `json:"required_verifications,omitempty"`
	Reason                string             `json:"reason,omitempty"`
	EvalTimeNs            int64              `json:"eval_time_ns"`
}
