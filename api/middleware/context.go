package middleware

import (
	"context"

	"github.com/r2blaze/r2blaze-backend/pkg/auth"
)

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxPrincipal contextKey = "principal"
)

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRequestID, requestID)
}

// PrincipalFromContext returns the admin set by AdminAuth, or nil.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxPrincipal).(*auth.Principal); ok {
		return v
	}
	return nil
}

func WithPrincipal(ctx context.Context, principal *auth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, principal)
}
