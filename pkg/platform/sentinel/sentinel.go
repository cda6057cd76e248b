package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors with stable
// client-facing messages.
//
// These represent factual states about stored records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness constraint (plate, email, pending transfer) was violated
// - ErrInvalidState: record is in the wrong lifecycle state for the operation
//
// For validation errors (bad input, disallowed enum value), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
