package rampart

import "context"

type contextKey int

const (
	ctxKeyAppID contextKey = iota
	ctxKeyTenantID
)

// WithTenant scopes a context to an app and tenant for standalone use.
// Under Forge the scope travels in forge.Scope instead and takes
// precedence over these values.
func WithTenant(ctx context.Context, appID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyAppID, appID)
	return context.WithValue(ctx, ctxKeyTenantID, tenantID)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
