// Package device derives a compact device description from the User-Agent
// header so audit events can record what kind of client acted.
package device

import (
	"context"
	"net/http"

	"github.com/mssola/useragent"
)

type contextKeyDescription struct{}

// Middleware parses the User-Agent header and attaches the resulting
// description to the request context. Requests without a header pass
// through untouched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if desc := Describe(r.UserAgent()); desc != "" {
			r = r.WithContext(WithDescription(r.Context(), desc))
		}
		next.ServeHTTP(w, r)
	})
}

// Describe reduces a raw User-Agent to "Browser version on OS". Bots are
// labeled as such; an unrecognized agent falls back to the raw string.
func Describe(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}

	name, version := ua.Browser()
	if name == "" {
		if len(raw) > 120 {
			raw = raw[:120]
		}
		return raw
	}

	desc := name
	if version != "" {
		desc += " " + version
	}
	if os := ua.OS(); os != "" {
		desc += " on " + os
	}
	return desc
}

// WithDescription injects a device description into a context. Useful for
// service tests that skip the HTTP middleware chain.
func WithDescription(ctx context.Context, desc string) context.Context {
	return context.WithValue(ctx, contextKeyDescription{}, desc)
}

// GetDescription retrieves the device description, empty when unset.
func GetDescription(ctx context.Context) string {
	desc, _ := ctx.Value(contextKeyDescription{}).(string)
	return desc
}
