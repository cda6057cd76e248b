// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them; keeping the
// package free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	callerID, ok := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithUserID(ctx, userID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
package requestcontext

import (
	"context"
	"time"

	id "renavam/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	tokenIDKey     struct{}
	tokenExpiryKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyTokenID     = tokenIDKey{}
	ContextKeyTokenExpiry = tokenExpiryKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// WithUserID stores the authenticated caller id.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserID returns the authenticated caller id, if any.
func UserID(ctx context.Context) (id.UserID, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(id.UserID)
	return userID, ok
}

// WithTokenID stores the bearer token's jti, needed for logout revocation.
func WithTokenID(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, ContextKeyTokenID, jti)
}

func TokenID(ctx context.Context) string {
	jti, _ := ctx.Value(ContextKeyTokenID).(string)
	return jti
}

// WithTokenExpiry stores the bearer token's expiry so revocation can be
// scoped to the token's remaining validity.
func WithTokenExpiry(ctx context.Context, expiresAt time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyTokenExpiry, expiresAt)
}

// TokenExpiry returns the bearer token's expiry, zero when unset.
func TokenExpiry(ctx context.Context) time.Time {
	expiresAt, _ := ctx.Value(ContextKeyTokenExpiry).(time.Time)
	return expiresAt
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(ContextKeyRequestID).(string)
	return requestID
}

// WithTime pins the request-scoped clock so one request observes one "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Now returns the request-scoped time, falling back to the wall clock when no
// middleware has pinned one (background workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}
