package testutil

import (
	"net/http"

	id "renavam/pkg/domain"
	"renavam/pkg/requestcontext"
)

// WithCaller attaches an authenticated caller id to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithTokenID attaches a bearer token jti to the request context.
func WithTokenID(req *http.Request, jti string) *http.Request {
	return req.WithContext(requestcontext.WithTokenID(req.Context(), jti))
}
