package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/httputil"
	"renavam/pkg/requestcontext"

	"renavam/internal/identity"
)

// IdentityService is the slice of the identity service the transport needs.
type IdentityService interface {
	Register(ctx context.Context, fullName, email, password string) (*identity.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Get(ctx context.Context, userID id.UserID) (*identity.User, error)
	SearchByEmail(ctx context.Context, email string) (*identity.Summary, error)
	UpdateProfile(ctx context.Context, userID id.UserID, update identity.ProfileUpdate) (*identity.User, error)
}

// TokenRevoker invalidates an issued token by its jti.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

type AuthHandler struct {
	identity IdentityService
	revoker  TokenRevoker
	tokenTTL time.Duration
	logger   *slog.Logger
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := validateRegister(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.identity.Register(r.Context(), req.FullName, req.Email, req.Password); err != nil {
		h.logError(r, "user registration failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, "user registered", nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[loginRequest](w, r, h.logger)
	if !ok {
		return
	}

	token, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logError(r, "login failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "logged in", map[string]any{"token": token})
}

// HandleLogout revokes the presented token so it stops working before its
// natural expiry.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	jti := requestcontext.TokenID(r.Context())
	if jti == "" || h.revoker == nil {
		httputil.WriteJSON(w, http.StatusOK, "logged out", nil)
		return
	}

	// Hold the revocation only as long as the token stays valid; an already
	// expired token needs no entry at all.
	ttl := h.tokenTTL
	if expiresAt := requestcontext.TokenExpiry(r.Context()); !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
	}
	if ttl <= 0 {
		httputil.WriteJSON(w, http.StatusOK, "logged out", nil)
		return
	}

	if err := h.revoker.RevokeToken(r.Context(), jti, ttl); err != nil {
		h.logError(r, "token revocation failed", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not log out"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) logError(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
}

func validateRegister(req registerRequest) error {
	if !govalidator.StringLength(req.FullName, "1", "255") {
		return dErrors.New(dErrors.CodeInvalidInput, "full name is required")
	}
	if !govalidator.IsEmail(req.Email) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}
	if !govalidator.StringLength(req.Password, "6", "72") {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be between 6 and 72 characters")
	}
	return nil
}
