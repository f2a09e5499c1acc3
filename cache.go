package rampart

import "context"

// Cache provides caching for access evaluation decisions. Rate limit
// decisions are never cached: they must reflect the live ledger.
type Cache interface {
	// Get returns a cached access decision, if available.
	Get(ctx context.Context, tenantID string, access *AccessContext) (*AccessDecision, bool)

	// Set stores an access decision in the cache.
	Set(ctx context.Context, tenantID string, access *AccessContext, decision *AccessDecision)

	// InvalidateTenant removes all cached decisions for a tenant.
	InvalidateTenant(ctx context.Context, tenantID string)

	// InvalidateDevice removes all cached decisions involving a device.
	// Call it after any device trust transition so quarantine and
	// compromise take effect immediately.
	InvalidateDevice(ctx context.Context, tenantID, deviceID string)
}
