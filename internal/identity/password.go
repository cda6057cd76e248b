package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "renavam/pkg/domain-errors"
)

// PasswordHasher is the credential-hashing collaborator. The registry never
// inspects hashes; it stores and compares them through this boundary.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// BcryptHasher hashes credentials with bcrypt at cost 10, the cost the
// existing user base was hashed with.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: 10}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "incorrect password")
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}
