// Package httputil centralizes the JSON wire envelope. Every response body is
// {"status": bool, "msg": ...} plus endpoint-specific fields, and domain
// errors translate to HTTP status codes in exactly one place.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "renavam/pkg/domain-errors"
)

// WriteJSON writes a success envelope. Extra fields merge into the envelope
// beside "status" and "msg".
func WriteJSON(w http.ResponseWriter, status int, msg any, extra map[string]any) {
	body := map[string]any{"status": true, "msg": msg}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the failure envelope. Internal
// errors keep their cause out of the response; callers log details themselves.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	msg := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		msg = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "msg": msg})
}

// Decode parses a JSON request body into T. An over-limit body (from
// http.MaxBytesReader upstream) is reported as payload_too_large rather than
// a generic decode failure.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "request body too large"))
			return req, false
		}
		if logger != nil {
			logger.DebugContext(r.Context(), "request body decode failed", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return req, false
	}
	return req, true
}
