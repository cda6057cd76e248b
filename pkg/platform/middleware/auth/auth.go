package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "renavam/pkg/domain"
	request "renavam/pkg/platform/middleware/request"
	"renavam/pkg/requestcontext"
)

// TokenValidator is the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked.
type TokenRevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenClaims represents the claims we expect from the token validator.
type TokenClaims struct {
	UserID    id.UserID
	JTI       string // token id for revocation tracking
	ExpiresAt time.Time
}

// GetUserID retrieves the authenticated caller id from the context.
func GetUserID(ctx context.Context) (id.UserID, bool) {
	return requestcontext.UserID(ctx)
}

// writeJSONError writes a JSON error envelope matching the registry API shape.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"status":false,"msg":"` + msg + `"}`))
}

// RequireAuth authenticates every request with a bearer token, checks the
// token against the revocation list when a checker is configured, and attaches
// the caller identity to the request context. Verification failure is handled
// here; protected handlers never see an unauthenticated request.
func RequireAuth(validator TokenValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := r.Context()
			if revocationChecker != nil && claims.JTI != "" {
				revoked, err := revocationChecker.IsRevoked(ctx, claims.JTI)
				if err != nil {
					// Fail closed: an unreachable revocation list must not
					// admit a possibly-revoked token.
					logger.ErrorContext(ctx, "revocation check failed",
						"error", err,
						"request_id", request.GetRequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "could not verify token")
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"jti", claims.JTI,
						"request_id", request.GetRequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "token has been revoked")
					return
				}
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			ctx = requestcontext.WithTokenID(ctx, claims.JTI)
			ctx = requestcontext.WithTokenExpiry(ctx, claims.ExpiresAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
