package car

import (
	"context"

	id "renavam/pkg/domain"
)

// Store persists car records. Implementations return sentinel.ErrNotFound for
// absent cars and sentinel.ErrConflict on plate collisions.
//
// FindByIDForUpdate is FindByID that additionally locks the car row when
// called inside a transaction; the transfer orchestrator uses it to serialize
// concurrent initiate/accept operations on one car.
type Store interface {
	Create(ctx context.Context, c *Car) error
	FindByID(ctx context.Context, carID id.CarID) (*Car, error)
	FindByIDForUpdate(ctx context.Context, carID id.CarID) (*Car, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]Car, error)

	// AppendTransferHistory records a transfer reference on the car.
	AppendTransferHistory(ctx context.Context, carID id.CarID, transferID id.TransferID) error

	// TransferOwnership atomically appends the previous owner snapshot and
	// sets the new owner.
	TransferOwnership(ctx context.Context, carID id.CarID, newOwner id.UserID, prev PreviousOwner) error
}
