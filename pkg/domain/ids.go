// Package domain holds shared domain primitives: typed identifiers for the
// three record kinds the registry persists. The wrappers keep a car id from
// being passed where a user id is expected; parsing enforces validity at trust
// boundaries (request decoding, path params).
package domain

import (
	"github.com/google/uuid"

	dErrors "renavam/pkg/domain-errors"
)

type UserID uuid.UUID

type CarID uuid.UUID

type TransferID uuid.UUID

// NewUserID assigns a globally-unique identifier at creation time.
func NewUserID() UserID { return UserID(uuid.New()) }

func NewCarID() CarID { return CarID(uuid.New()) }

func NewTransferID() TransferID { return TransferID(uuid.New()) }

func (id UserID) String() string { return uuid.UUID(id).String() }

func (id CarID) String() string { return uuid.UUID(id).String() }

func (id TransferID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id CarID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id CarID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id TransferID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CarID) UnmarshalText(b []byte) error {
	parsed, err := ParseCarID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TransferID) UnmarshalText(b []byte) error {
	parsed, err := ParseTransferID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserID validates a user id string. Empty, malformed, and nil UUIDs are
// all rejected with CodeInvalidInput.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s, "user id")
	return UserID(u), err
}

func ParseCarID(s string) (CarID, error) {
	u, err := parse(s, "car id")
	return CarID(u), err
}

func ParseTransferID(s string) (TransferID, error) {
	u, err := parse(s, "transfer id")
	return TransferID(u), err
}

func parse(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}
