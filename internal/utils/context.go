package utils

import "context"

type contextKey string

const (
	principalKey       contextKey = "principal"
	internalRequestKey contextKey = "internal_request"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// WithInternalRequest marks ctx as coming from a trusted service caller.
func WithInternalRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalRequestKey, true)
}

func IsInternalRequest(ctx context.Context) bool {
	v, _ := ctx.Value(internalRequestKey).(bool)
	return v
}
