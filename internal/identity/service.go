package identity

import (
	"context"
	"errors"
	"strings"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/middleware/device"
	"renavam/pkg/platform/sentinel"

	"renavam/internal/audit"
	"renavam/internal/platform/metrics"
)

// TokenIssuer is the bearer-token collaborator. Verification lives in the auth
// middleware; the service only mints tokens at login.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID) (string, error)
}

// AvatarUploader normalizes raw image bytes and stores them, returning the
// public URL. It is the image-pipeline collaborator; failures surface to the
// caller as invalid input ("image error"), never as server failures.
type AvatarUploader interface {
	Upload(ctx context.Context, userID id.UserID, data []byte) (string, error)
}

// Service implements user registration, login and profile management.
type Service struct {
	store   Store
	hasher  PasswordHasher
	tokens  TokenIssuer
	avatars AvatarUploader
	auditor *audit.Publisher
	metrics *metrics.Metrics
}

func NewService(store Store, hasher PasswordHasher, tokens TokenIssuer, avatars AvatarUploader, auditor *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		avatars: avatars,
		auditor: auditor,
		metrics: m,
	}
}

// Register creates a new user. Fails with a conflict when the email is
// already registered.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           id.NewUserID(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not register user")
	}

	s.metrics.IncUsersCreated()
	s.auditor.Emit(ctx, audit.Event{
		UserID:  user.ID.String(),
		Action:  audit.ActionUserRegistered,
		Subject: user.Email,
	})
	return user, nil
}

// Login verifies credentials and returns a bearer token. An unknown email and
// a wrong password are distinct failures: the API reports the former as a bad
// request and the latter as unauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "user not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user")
	}

	if err := s.hasher.Verify(password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token")
	}

	s.auditor.Emit(ctx, audit.Event{
		UserID: user.ID.String(),
		Action: audit.ActionUserLogin,
		Detail: device.GetDescription(ctx),
	})
	return token, nil
}

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user")
	}
	return user, nil
}

// SearchByEmail returns the public summary for the user with the given email.
// Any authenticated user may search; this is how a sender finds the recipient
// of an ownership transfer.
func (s *Service) SearchByEmail(ctx context.Context, email string) (*Summary, error) {
	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not search user")
	}
	summary := user.Summarize()
	return &summary, nil
}

// UpdateProfile applies the independently-optional profile fields. Full name
// and email are immutable post-registration; the handler drops them before
// this point. Absent fields stay untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID id.UserID, update ProfileUpdate) (*User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user")
	}

	if update.Birthday != nil {
		user.Birthday = update.Birthday
	}

	if update.Password != nil && *update.Password != "" {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if len(update.AvatarData) > 0 {
		if s.avatars == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "image upload is not configured")
		}
		url, err := s.avatars.Upload(ctx, userID, update.AvatarData)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "could not process image")
		}
		user.ProfileImageURL = url
	}

	if err := s.store.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not update profile")
	}
	return user, nil
}
