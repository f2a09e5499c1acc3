package api

// RateCheckResponse is the response for a rate limit check.
type RateCheckResponse struct {
	Allowed           bool   `json:"allowed" description:"Whether the request may proceed"`
	RetryAfterSeconds int    `json:"retry_after_seconds" description:"Seconds until the lockout lifts (0 if allowed)"`
	Level             string `json:"level" description:"Escalation tier (none, elevated, locked, extended_lockout)"`
	FailureCount      int    `json:"failure_count" description:"Failed attempts in the current window"`
	EvalTimeNs        int64  `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// EvaluateResponse is the response for a zero-trust access evaluation.
type EvaluateResponse struct {
	Allowed               bool     `json:"allowed" description:"Whether access is granted"`
	RiskLevel             string   `json:"risk_level" description:"Computed risk level"`
	RequiredVerifications []string `json:"required_verifications,omitempty" description:"Step-up verifications the caller must complete"`
	Reason                string   `json:"reason,omitempty" description:"Human-readable reason"`
	EvalTimeNs            int64    `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// TrustScoreResponse is the response for trust signal aggregation.
type TrustScoreResponse struct {
	Overall     float64 `json:"overall" description:"Weighted overall trust in [0,1]"`
	Identity    float64 `json:"identity" description:"Identity signal"`
	Device      float64 `json:"device" description:"Device signal"`
	Behavior    float64 `json:"behavior" description:"Behavior signal"`
	Network     float64 `json:"network" description:"Network signal"`
	Location    float64 `json:"location" description:"Location signal"`
	LastUpdated string  `json:"last_updated" description:"RFC3339 aggregation time"`
}

// PruneResponse reports how many expired records a prune removed.
type PruneResponse struct {
	Removed int64 `json:"removed" description:"Number of records removed"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
