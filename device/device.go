// Package device defines the per-device trust record and its store
// interface.
package device

import (
	"time"

	"github.com/xraph/rampart/id"
)

// VerificationTrustGain is how much a successful verification raises a
// device's trust score, capped at 1.
const VerificationTrustGain = 0.1

// InitialTrustScore is the neutral trust assigned to a newly registered
// device, matching the neutral value used for missing trust signals.
const InitialTrustScore = 0.5

// Trust is the persistent risk state of one device. It is mutated only
// through explicit store transitions (verification, quarantine,
// compromise); IsCompromised is sticky and survives every transition.
// Only an administrative reset outside this library clears it.
type Trust struct {
	ID            id.DeviceID         `json:"id" db:"id"`
	TenantID      string              `json:"tenant_id" db:"tenant_id"`
	UserID        string              `json:"user_id" db:"user_id"`
	Fingerprint   string              `json:"fingerprint" db:"fingerprint"`
	TrustScore    float64             `json:"trust_score" db:"trust_score"`
	FirstSeen     time.Time           `json:"first_seen" db:"first_seen"`
	LastSeen      time.Time           `json:"last_seen" db:"last_seen"`
	IsQuarantined bool                `json:"is_quarantined" db:"is_quarantined"`
	IsCompromised bool                `json:"is_compromised" db:"is_compromised"`
	RiskFactors   []RiskFactor        `json:"risk_factors,omitempty" db:"-"`
	History       []VerificationEvent `json:"history,omitempty" db:"-"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// HasRiskFactor reports whether a risk factor with the given code is
// already present.
func (t *Trust) HasRiskFactor(code string) bool {
	for _, f := range t.RiskFactors {
		if f.Code == code {
			return true
		}
	}
	return false
}

// RiskFactor is one recorded reason to distrust a device. Factors form
// a set keyed by Code: adding an existing code is a no-op.
type RiskFactor struct {
	Code   string    `json:"code"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Risk factor codes written by the store transitions.
const (
	RiskQuarantined = "quarantined"
	RiskCompromised = "compromised"
)

// VerificationEvent is one completed step-up verification for a device.
// Kind is a plain string to avoid an import cycle with the root rampart
// package.
type VerificationEvent struct {
	ID        id.VerificationID `json:"id"`
	Kind      string            `json:"kind"`
	Succeeded bool              `json:"succeeded"`
	At        time.Time         `json:"at"`
}

// ListFilter contains filters for listing devices.
type ListFilter struct {
	TenantID      string `json:"tenant_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	IsQuarantined *bool  `json:"is_quarantined,omitempty"`
	IsCompromised *bool  `json:"is_compromised,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}
