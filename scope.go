package rampart

import (
	"context"

	"github.com/xraph/forge"
)

type tenantScope struct {
	appID    string
	tenantID string
}

// scopeFromContext resolves the tenant scope for a request. A Forge
// scope wins; otherwise the values set by WithTenant apply, which may
// be empty in single-tenant deployments.
func scopeFromContext(ctx context.Context) tenantScope {
	if s, ok := forge.ScopeFrom(ctx); ok {
		return tenantScope{appID: s.AppID(), tenantID: s.OrgID()}
	}
	return tenantScope{
		appID:    stringFromContext(ctx, ctxKeyAppID),
		tenantID: stringFromContext(ctx, ctxKeyTenantID),
	}
}

// TenantFromContext returns the tenant ID the decisions in this context
// are scoped to, whether it came from a Forge scope or WithTenant.
func TenantFromContext(ctx context.Context) string {
	return scopeFromContext(ctx).tenantID
}
