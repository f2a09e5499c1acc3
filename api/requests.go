package api

// ──────────────────────────────────────────────────
// Rate limit requests
// ──────────────────────────────────────────────────

// RateCheckRequest is the request body for a rate limit check.
type RateCheckRequest struct {
	RemoteAddr string `json:"remote_addr" description:"Source network address (ip or ip:port)"`
	UserAgent  string `json:"user_agent,omitempty" description:"Raw client user-agent string"`
}

// RecordAttemptRequest is the body for recording an authentication outcome.
type RecordAttemptRequest struct {
	RemoteAddr string `json:"remote_addr" description:"Source network address (ip or ip:port)"`
	UserAgent  string `json:"user_agent,omitempty" description:"Raw client user-agent string"`
	Success    bool   `json:"success" description:"Whether the authentication attempt succeeded"`
}

// ──────────────────────────────────────────────────
// Access evaluation requests
// ──────────────────────────────────────────────────

// EvaluateRequest is the request body for a zero-trust access evaluation.
// Either a pre-aggregated trust score or raw signals must be supplied;
// when both are present the score wins.
type EvaluateRequest struct {
	UserID    string          `json:"user_id" description:"Principal identifier"`
	SessionID string          `json:"session_id,omitempty" description:"Session identifier"`
	DeviceID  string          `json:"device_id,omitempty" description:"Device identifier"`
	Resource  string          `json:"resource" description:"Resource being accessed"`
	Action    string          `json:"action" description:"Action name"`
	RiskLevel string          `json:"risk_level,omitempty" description:"Caller risk assessment (low, medium, high, critical)"`
	Trust     *TrustScoreBody `json:"trust,omitempty" description:"Pre-aggregated trust score"`
	Signals   *TrustSignals   `json:"signals,omitempty" description:"Raw trust signals to aggregate"`
}

// TrustScoreBody is a pre-aggregated trust score supplied by the caller.
type TrustScoreBody struct {
	Overall     float64 `json:"overall" description:"Overall trust in [0,1]"`
	Identity    float64 `json:"identity,omitempty" description:"Identity signal"`
	Device      float64 `json:"device,omitempty" description:"Device signal"`
	Behavior    float64 `json:"behavior,omitempty" description:"Behavior signal"`
	Network     float64 `json:"network,omitempty" description:"Network signal"`
	Location    float64 `json:"location,omitempty" description:"Location signal"`
	LastUpdated string  `json:"last_updated,omitempty" description:"RFC3339 aggregation time"`
}

// TrustSignals are optional raw signal values; a missing signal is
// treated as the conservative neutral 0.5.
type TrustSignals struct {
	Identity *float64 `json:"identity,omitempty" description:"Identity signal in [0,1]"`
	Device   *float64 `json:"device,omitempty" description:"Device signal in [0,1]"`
	Behavior *float64 `json:"behavior,omitempty" description:"Behavior signal in [0,1]"`
	Network  *float64 `json:"network,omitempty" description:"Network signal in [0,1]"`
	Location *float64 `json:"location,omitempty" description:"Location signal in [0,1]"`
}

// AggregateTrustRequest is the body for aggregating raw trust signals.
type AggregateTrustRequest struct {
	Signals TrustSignals `json:"signals" description:"Raw trust signals"`
}

// ──────────────────────────────────────────────────
// Device requests
// ──────────────────────────────────────────────────

// RegisterDeviceRequest is the body for registering a device.
type RegisterDeviceRequest struct {
	UserID      string `json:"user_id" description:"Owning user"`
	Fingerprint string `json:"fingerprint" description:"Stable device fingerprint"`
}

// GetDeviceRequest is the path parameter for getting a device.
type GetDeviceRequest struct {
	DeviceID string `path:"deviceId" description:"Device ID"`
}

// ListDevicesRequest holds query parameters for listing devices.
type ListDevicesRequest struct {
	UserID      string `query:"user_id" description:"Filter by owning user"`
	Quarantined string `query:"quarantined" description:"Filter by quarantine flag (true/false)"`
	Compromised string `query:"compromised" description:"Filter by compromise flag (true/false)"`
	Limit       int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

// DeviceTransitionRequest is the body for quarantining or compromising
// a device.
type DeviceTransitionRequest struct {
	DeviceID string `path:"deviceId" description:"Device ID"`
	Reason   string `json:"reason,omitempty" description:"Why the transition happened"`
}

// RecordVerificationRequest is the body for recording a step-up
// verification outcome.
type RecordVerificationRequest struct {
	DeviceID  string `path:"deviceId" description:"Device ID"`
	Kind      string `json:"kind" description:"Verification kind (reauthenticate, mfa, re-verify-device)"`
	Succeeded bool   `json:"succeeded" description:"Whether the verification succeeded"`
}

// ──────────────────────────────────────────────────
// Decision log requests
// ──────────────────────────────────────────────────

// GetDecisionLogRequest is the path parameter for getting a log entry.
type GetDecisionLogRequest struct {
	LogID string `path:"logId" description:"Decision log ID"`
}

// ListDecisionLogsRequest holds query parameters for querying the
// decision log.
type ListDecisionLogsRequest struct {
	Kind     string `query:"kind" description:"Filter by decision kind (ratelimit, access)"`
	Identity string `query:"identity" description:"Filter by client identity"`
	UserID   string `query:"user_id" description:"Filter by user"`
	DeviceID string `query:"device_id" description:"Filter by device"`
	Allowed  string `query:"allowed" description:"Filter by outcome (true/false)"`
	Level    string `query:"level" description:"Filter by tier or risk level name"`
	After    string `query:"after" description:"Only entries after this RFC3339 time"`
	Before   string `query:"before" description:"Only entries before this RFC3339 time"`
	Limit    int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset   int    `query:"offset" description:"Results to skip"`
}
