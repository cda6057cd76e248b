package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "renavam/pkg/domain"
)

type fakeValidator struct {
	claims *TokenClaims
	err    error
}

func (f *fakeValidator) ValidateToken(string) (*TokenClaims, error) {
	return f.claims, f.err
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func protected(validator TokenValidator, checker TokenRevocationChecker, captured *id.UserID) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := GetUserID(r.Context()); ok && captured != nil {
			*captured = userID
		}
		w.WriteHeader(http.StatusOK)
	})
	return RequireAuth(validator, checker, discardLogger())(next)
}

func TestRequireAuth(t *testing.T) {
	userID := id.NewUserID()
	valid := &fakeValidator{claims: &TokenClaims{
		UserID:    userID,
		JTI:       "jti-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}}

	t.Run("missing header yields 401 and no data", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected(valid, nil, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/car/myCars", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"status":false,"msg":"missing or invalid Authorization header"}`, rr.Body.String())
	})

	t.Run("malformed header yields 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/car/myCars", nil)
		req.Header.Set("Authorization", "Token abc")
		rr := httptest.NewRecorder()
		protected(valid, nil, nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token yields 401", func(t *testing.T) {
		invalid := &fakeValidator{err: errors.New("signature mismatch")}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rr := httptest.NewRecorder()
		protected(invalid, nil, nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token passes caller id to handler", func(t *testing.T) {
		var got id.UserID
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		protected(valid, nil, &got).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, got)
	})

	t.Run("revoked token yields 401", func(t *testing.T) {
		checker := &fakeRevocations{revoked: map[string]bool{"jti-1": true}}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		protected(valid, checker, nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revocation list failure fails closed", func(t *testing.T) {
		checker := &fakeRevocations{err: errors.New("redis down")}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		protected(valid, checker, nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
