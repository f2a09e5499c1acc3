package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
	"github.com/xraph/rampart/id"
)

// ──────────────────────────────────────────────────
// Attempt model
// ──────────────────────────────────────────────────

type attemptModel struct {
	grove.BaseModel `grove:"table:rampart_attempts"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Identity        string    `grove:"identity,notnull"`
	Outcome         string    `grove:"outcome,notnull"`
	At              time.Time `grove:"at,notnull"`
}

func attemptToModel(r *attempt.Record) *attemptModel {
	return &attemptModel{
		ID:       r.ID.String(),
		TenantID: r.TenantID,
		Identity: r.Identity,
		Outcome:  string(r.Outcome),
		At:       r.At,
	}
}

func attemptFromModel(m *attemptModel) *attempt.Record {
	rid, _ := id.ParseAttemptID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &attempt.Record{
		ID:       rid,
		TenantID: m.TenantID,
		Identity: m.Identity,
		Outcome:  attempt.Outcome(m.Outcome),
		At:       m.At,
	}
}

// ──────────────────────────────────────────────────
// Device model
// ──────────────────────────────────────────────────

type deviceModel struct {
	grove.BaseModel `grove:"table:rampart_devices"`
	ID              string                     `grove:"id,pk"`
	TenantID        string                     `grove:"tenant_id,notnull"`
	UserID          string                     `grove:"user_id,notnull"`
	Fingerprint     string                     `grove:"fingerprint,notnull"`
	TrustScore      float64                    `grove:"trust_score,notnull"`
	FirstSeen       time.Time                  `grove:"first_seen,notnull"`
	LastSeen        time.Time                  `grove:"last_seen,notnull"`
	IsQuarantined   bool                       `grove:"is_quarantined,notnull"`
	IsCompromised   bool                       `grove:"is_compromised,notnull"`
	RiskFactors     []device.RiskFactor        `grove:"risk_factors,type:jsonb"`
	History         []device.VerificationEvent `grove:"history,type:jsonb"`
	CreatedAt       time.Time                  `grove:"created_at,notnull"`
	UpdatedAt       time.Time                  `grove:"updated_at,notnull"`
}

func deviceToModel(t *device.Trust) *deviceModel {
	return &deviceModel{
		ID:            t.ID.String(),
		TenantID:      t.TenantID,
		UserID:        t.UserID,
		Fingerprint:   t.Fingerprint,
		TrustScore:    t.TrustScore,
		FirstSeen:     t.FirstSeen,
		LastSeen:      t.LastSeen,
		IsQuarantined: t.IsQuarantined,
		IsCompromised: t.IsCompromised,
		RiskFactors:   t.RiskFactors,
		History:       t.History,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func deviceFromModel(m *deviceModel) *device.Trust {
	did, _ := id.ParseDeviceID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &device.Trust{
		ID:            did,
		TenantID:      m.TenantID,
		UserID:        m.UserID,
		Fingerprint:   m.Fingerprint,
		TrustScore:    m.TrustScore,
		FirstSeen:     m.FirstSeen,
		LastSeen:      m.LastSeen,
		IsQuarantined: m.IsQuarantined,
		IsCompromised: m.IsCompromised,
		RiskFactors:   m.RiskFactors,
		History:       m.History,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Decision log model
// ──────────────────────────────────────────────────

type decisionLogModel struct {
	grove.BaseModel   `grove:"table:rampart_decision_logs"`
	ID                string    `grove:"id,pk"`
	TenantID          string    `grove:"tenant_id,notnull"`
	Kind              string    `grove:"kind,notnull"`
	Identity          string    `grove:"identity"`
	UserID            string    `grove:"user_id"`
	DeviceID          string    `grove:"device_id"`
	Resource          string    `grove:"resource"`
	Action            string    `grove:"action"`
	Allowed           bool      `grove:"allowed,notnull"`
	Level             string    `grove:"level,notnull"`
	RetryAfterSeconds int       `grove:"retry_after_seconds,notnull"`
	Reason            string    `grove:"reason"`
	EvalTimeNs        int64     `grove:"eval_time_ns,notnull"`
	CreatedAt         time.Time `grove:"created_at,notnull"`
}

func decisionLogToModel(e *decisionlog.Entry) *decisionLogModel {
	return &decisionLogModel{
		ID:                e.ID.String(),
		TenantID:          e.TenantID,
		Kind:              string(e.Kind),
		Identity:          e.Identity,
		UserID:            e.UserID,
		DeviceID:          e.DeviceID,
		Resource:          e.Resource,
		Action:            e.Action,
		Allowed:           e.Allowed,
		Level:             e.Level,
		RetryAfterSeconds: e.RetryAfterSeconds,
		Reason:            e.Reason,
		EvalTimeNs:        e.EvalTimeNs,
		CreatedAt:         e.CreatedAt,
	}
}

func decisionLogFromModel(m *decisionLogModel) *decisionlog.Entry {
	lid, _ := id.ParseDecisionLogID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &decisionlog.Entry{
		ID:                lid,
		TenantID:          m.TenantID,
		Kind:              decisionlog.Kind(m.Kind),
		Identity:          m.Identity,
		UserID:            m.UserID,
		DeviceID:          m.DeviceID,
		Resource:          m.Resource,
		Action:            m.Action,
		Allowed:           m.Allowed,
		Level:             m.Level,
		RetryAfterSeconds: m.RetryAfterSeconds,
		Reason:            m.Reason,
		EvalTimeNs:        m.EvalTimeNs,
		CreatedAt:         m.CreatedAt,
	}
}
