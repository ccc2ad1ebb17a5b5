package common

import (
	"context"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeySubject   ContextKey = "subject"
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyRoles     ContextKey = "roles"
)

// WithSubject adds the authenticated admin subject to context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// GetSubject extracts the authenticated subject from context
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	return subject, ok
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithRoles adds the caller's roles to context
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, ContextKeyRoles, roles)
}

// HasRole checks if the caller has a specific role
func HasRole(ctx context.Context, role string) bool {
	roles, _ := ctx.Value(ContextKeyRoles).([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
