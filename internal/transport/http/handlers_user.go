package httptransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/httputil"
	authmw "renavam/pkg/platform/middleware/auth"
	"renavam/pkg/requestcontext"

	"renavam/internal/car"
	"renavam/internal/identity"
)

// CarService is the slice of the car service the transport needs.
type CarService interface {
	Register(ctx context.Context, callerID id.UserID, input car.RegistrationInput) (*car.Car, error)
	ListOwnedBy(ctx context.Context, ownerID id.UserID) ([]car.Car, error)
}

type UserHandler struct {
	identity IdentityService
	cars     CarService
	logger   *slog.Logger
}

// birthdayWireFormat is how birthdays render in user representations.
const birthdayWireFormat = "02/01/2006"

// userView is the wire shape of a user. The password hash never leaves the
// identity package; the birthday renders as DD/MM/YYYY.
type userView struct {
	ID              id.UserID `json:"id"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	Birthday        string    `json:"birthday,omitempty"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	Cars            []car.Car `json:"cars,omitempty"`
}

func viewOf(u *identity.User) userView {
	v := userView{
		ID:              u.ID,
		FullName:        u.FullName,
		Email:           u.Email,
		ProfileImageURL: u.ProfileImageURL,
	}
	if u.Birthday != nil {
		v.Birthday = u.Birthday.Format(birthdayWireFormat)
	}
	return v
}

func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	user, err := h.identity.Get(r.Context(), userID)
	if err != nil {
		h.logError(r, "user lookup failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "ok", map[string]any{"user": viewOf(user)})
}

// HandleMeFull returns the user together with every car they own.
func (h *UserHandler) HandleMeFull(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	user, err := h.identity.Get(r.Context(), userID)
	if err != nil {
		h.logError(r, "user lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	cars, err := h.cars.ListOwnedBy(r.Context(), userID)
	if err != nil {
		h.logError(r, "car listing failed", err)
		httputil.WriteError(w, err)
		return
	}

	view := viewOf(user)
	view.Cars = cars
	httputil.WriteJSON(w, http.StatusOK, "ok", map[string]any{"user": view})
}

type searchRequest struct {
	Email string `json:"email"`
}

// HandleSearch finds a user by exact email. This is how a sender discovers
// the recipient id before initiating a transfer.
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[searchRequest](w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.identity.SearchByEmail(r.Context(), req.Email)
	if err != nil {
		h.logError(r, "user search failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "ok", map[string]any{"user": summary})
}

// HandleUpdate applies a partial profile update. The body is either JSON
// (birthday, password, base64 profileImage) or multipart form data with a
// profileImage file part. Full name and email are silently ignored if sent.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	update, err := h.decodeUpdate(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.identity.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		h.logError(r, "profile update failed", err)
		httputil.WriteError(w, err)
		return
	}

	extra := map[string]any{}
	if user.ProfileImageURL != "" {
		extra["profileImageUrl"] = user.ProfileImageURL
	}
	httputil.WriteJSON(w, http.StatusOK, "profile updated", extra)
}

type updateRequest struct {
	Birthday     *string `json:"birthday"`
	Password     *string `json:"password"`
	ProfileImage *string `json:"profileImage"`
}

func (h *UserHandler) decodeUpdate(r *http.Request) (identity.ProfileUpdate, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		return decodeMultipartUpdate(r)
	}

	var update identity.ProfileUpdate
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return update, dErrors.New(dErrors.CodePayloadTooLarge, "request body too large")
		}
		return update, dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}

	if req.Birthday != nil {
		parsed, err := parseBirthday(*req.Birthday)
		if err != nil {
			return update, err
		}
		update.Birthday = &parsed
	}
	if req.Password != nil && *req.Password != "" {
		update.Password = req.Password
	}
	if req.ProfileImage != nil && strings.TrimSpace(*req.ProfileImage) != "" {
		data, err := decodeBase64Image(*req.ProfileImage)
		if err != nil {
			return update, err
		}
		update.AvatarData = data
	}
	return update, nil
}

func decodeMultipartUpdate(r *http.Request) (identity.ProfileUpdate, error) {
	var update identity.ProfileUpdate

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return update, dErrors.New(dErrors.CodePayloadTooLarge, "request body too large")
		}
		return update, dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}

	if v := r.FormValue("birthday"); v != "" {
		parsed, err := parseBirthday(v)
		if err != nil {
			return update, err
		}
		update.Birthday = &parsed
	}
	if v := r.FormValue("password"); v != "" {
		update.Password = &v
	}

	file, _, err := r.FormFile("profileImage")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			return update, dErrors.Wrap(readErr, dErrors.CodeInvalidInput, "could not read image")
		}
		update.AvatarData = data
	} else if !errors.Is(err, http.ErrMissingFile) {
		return update, dErrors.New(dErrors.CodeInvalidInput, "invalid image upload")
	}

	return update, nil
}

// parseBirthday accepts ISO dates and the display format.
func parseBirthday(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", birthdayWireFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "invalid birthday")
}

// decodeBase64Image strips an optional data-URL prefix and decodes the rest.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "image error")
	}
	return data, nil
}

func (h *UserHandler) logError(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
}
