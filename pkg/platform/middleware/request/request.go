// Package request tags every request with an id and a pinned timestamp so all
// writes within one request observe the same "now" and logs correlate.
package request

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"renavam/pkg/requestcontext"
)

const headerRequestID = "X-Request-Id"

// Middleware assigns a request id (honoring an inbound X-Request-Id) and pins
// the request-scoped clock.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())

		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
