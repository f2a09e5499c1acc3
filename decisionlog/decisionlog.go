// Package decisionlog defines the decision audit log Entry entity.
package decisionlog

import (
	"time"

	"github.com/xraph/rampart/id"
)

// Kind distinguishes the two decision sources.
type Kind string

const (
	// KindRateLimit is a rate limiter check decision.
	KindRateLimit Kind = "ratelimit"

	// KindAccess is a zero-trust access decision.
	KindAccess Kind = "access"
)

// Entry is a single decision audit record. Entries carry tier and
// retry information for audit but never secrets or internal causes.
type Entry struct {
	ID                id.DecisionLogID `json:"id" db:"id"`
	TenantID          string           `json:"tenant_id" db:"tenant_id"`
	Kind              Kind             `json:"kind" db:"kind"`
	Identity          string           `json:"identity,omitempty" db:"identity"`
	UserID            string           `json:"user_id,omitempty" db:"user_id"`
	DeviceID          string           `json:"device_id,omitempty" db:"device_id"`
	Resource          string           `json:"resource,omitempty" db:"resource"`
	Action            string           `json:"action,omitempty" db:"action"`
	Allowed           bool             `json:"allowed" db:"allowed"`
	Level             string           `json:"level" db:"level"`
	RetryAfterSeconds int              `json:"retry_after_seconds,omitempty" db:"retry_after_seconds"`
	Reason            string           `json:"reason,omitempty" db:"reason"`
	EvalTimeNs        int64            `json:"eval_time_ns" db:"eval_time_ns"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying decision logs.
type QueryFilter struct {
	TenantID string     `json:"tenant_id,omitempty"`
	Kind     Kind       `json:"kind,omitempty"`
	Identity string     `json:"identity,omitempty"`
	UserID   string     `json:"user_id,omitempty"`
	DeviceID string     `json:"device_id,omitempty"`
	Allowed  *bool      `json:"allowed,omitempty"`
	Level    string     `json:"level,omitempty"`
	After    *time.Time `json:"after,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}
