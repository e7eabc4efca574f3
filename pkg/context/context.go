// Package context carries request metadata set by the HTTP middleware
package context

import "context"

type key int

const (
	requestIDKey key = iota
	tenantIDKey
	userIDKey
)

func with(ctx context.Context, k key, value string) context.Context {
	return context.WithValue(ctx, k, value)
}

func value(ctx context.Context, k key) string {
	v, _ := ctx.Value(k).(string)
	return v
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return value(ctx, requestIDKey)
}

// SetTenantID scopes every lead operation of the request
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return with(ctx, tenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string {
	return value(ctx, tenantIDKey)
}

// SetUserID records the caller, stored as performed_by on merges
func SetUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return value(ctx, userIDKey)
}
