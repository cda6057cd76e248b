package identity

import (
	"context"

	id "renavam/pkg/domain"
)

// Store persists user records. Implementations return sentinel.ErrNotFound for
// absent users and sentinel.ErrConflict when the email uniqueness constraint
// is violated; the service translates both into domain errors.
type Store interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}
