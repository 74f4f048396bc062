package storage

import "context"

type tenantCtxKey struct{}

// WithTenant returns a context carrying the given tenant identifier.
// Stores scope reads and writes to it when present.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenantID)
}

// GetTenant reports the tenant identifier carried by ctx, or "" when
// the deployment runs single-tenant.
func GetTenant(ctx context.Context) string {
	id, _ := ctx.Value(tenantCtxKey{}).(string)
	return id
}
