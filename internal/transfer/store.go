package transfer

import (
	"context"

	id "renavam/pkg/domain"
)

// Ledger persists ownership-transfer requests.
//
// Create must refuse a second pending transfer for the same car with
// sentinel.ErrConflict, atomically with respect to concurrent creates: the
// Postgres implementation relies on a partial unique index on
// (car_id) WHERE status = 'pending'; the memory implementation checks under
// the per-car transaction lock.
//
// Finish persists a terminal transition and must be conditional on the stored
// status still being pending (compare-and-swap); a lost race surfaces as
// sentinel.ErrInvalidState so the surrounding transaction rolls back.
type Ledger interface {
	Create(ctx context.Context, t *Transfer) error
	FindByID(ctx context.Context, transferID id.TransferID) (*Transfer, error)
	Finish(ctx context.Context, t *Transfer) error
}

// TxRunner provides the transactional boundary for the orchestrator's
// correctness-critical sections. The car id keys the memory implementation's
// lock shard; the Postgres implementation ignores it and opens a real
// transaction carried through ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, carID id.CarID, fn func(ctx context.Context) error) error
}
