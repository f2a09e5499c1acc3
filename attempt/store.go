package attempt

import (
	"context"
	"time"
)

// Store defines persistence operations for the attempt ledger.
//
// Implementations must serialize writes per (tenant, identity) key;
// reads may proceed without blocking unrelated keys. Eviction is lazy:
// expired records are dropped during reads, writes, or an explicit
// prune, never by a background sweeper.
type Store interface {
	// RecordAttempt appends a record to the ledger.
	RecordAttempt(ctx context.Context, r *Record) error

	// ListAttempts returns an identity's records at or after since,
	// oldest first.
	ListAttempts(ctx context.Context, tenantID, identity string, since time.Time) ([]*Record, error)

	// CountAttempts returns the number of records for an identity at
	// or after since.
	CountAttempts(ctx context.Context, tenantID, identity string, since time.Time) (int64, error)

	// PruneAttempts removes all records older than before and returns
	// how many were dropped.
	PruneAttempts(ctx context.Context, before time.Time) (int64, error)

	// DeleteAttemptsByIdentity removes all records for one identity.
	DeleteAttemptsByIdentity(ctx context.Context, tenantID, identity string) error

	// DeleteAttemptsByTenant removes all records for a tenant.
	DeleteAttemptsByTenant(ctx context.Context, tenantID string) error
}
