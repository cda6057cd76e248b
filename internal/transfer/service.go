package transfer

import (
	"context"
	"errors"
	"log/slog"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/sentinel"
	"renavam/pkg/requestcontext"

	"renavam/internal/audit"
	"renavam/internal/car"
	"renavam/internal/identity"
	"renavam/internal/platform/metrics"
)

// Service orchestrates ownership transfers. It is the only code path that
// changes a car's owner: every mutation happens inside a single TxRunner
// boundary, so a transfer and its car either move together or not at all.
type Service struct {
	ledger  Ledger
	cars    car.Store
	users   identity.Store
	txr     TxRunner
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(ledger Ledger, cars car.Store, users identity.Store, txr TxRunner, auditor *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		ledger:  ledger,
		cars:    cars,
		users:   users,
		txr:     txr,
		auditor: auditor,
		metrics: m,
		logger:  logger,
	}
}

// Detail is the status view: the transfer plus the resolved car and the
// public summaries of both parties. The embedded Transfer flattens into the
// same JSON object as the resolved fields.
type Detail struct {
	Transfer
	Car      *car.Car         `json:"carDetails"`
	FromUser identity.Summary `json:"fromUser"`
	ToUser   identity.Summary `json:"toUser"`
}

// Initiate creates a pending transfer of carID from the caller to newOwnerID.
// Only the current owner may initiate, a car cannot be transferred to its own
// owner, and at most one pending transfer may exist per car at any moment.
func (s *Service) Initiate(ctx context.Context, callerID id.UserID, carID id.CarID, newOwnerID id.UserID) (*Transfer, error) {
	t := &Transfer{
		ID:        id.NewTransferID(),
		CarID:     carID,
		From:      callerID,
		To:        newOwnerID,
		Status:    StatusPending,
		StartedAt: requestcontext.Now(ctx),
	}

	err := s.txr.RunInTx(ctx, carID, func(ctx context.Context) error {
		c, err := s.cars.FindByIDForUpdate(ctx, carID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "car not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not initiate transfer")
		}
		if c.OwnerID != callerID {
			return dErrors.New(dErrors.CodeForbidden, "only the owner can transfer this car")
		}
		// Checked after the car: a self-transfer of a car that does not exist
		// is still a not-found, not a validation error.
		if callerID == newOwnerID {
			return dErrors.New(dErrors.CodeInvalidInput, "cannot transfer a car to yourself")
		}
		if _, err := s.users.FindByID(ctx, newOwnerID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "recipient not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not initiate transfer")
		}

		if err := s.ledger.Create(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "transfer already active")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not initiate transfer")
		}
		if err := s.cars.AppendTransferHistory(ctx, carID, t.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not initiate transfer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransfer("initiated")
	s.auditor.Emit(ctx, audit.Event{
		UserID:  callerID.String(),
		Action:  audit.ActionTransferInitiated,
		Subject: t.ID.String(),
		Detail:  carID.String(),
	})
	return t, nil
}

// Accept completes a pending transfer. Only the designated recipient may
// accept; on success the car's owner, its previous-owner history and the
// transfer record change in one atomic unit.
func (s *Service) Accept(ctx context.Context, callerID id.UserID, transferID id.TransferID) (*Transfer, error) {
	var accepted *Transfer

	lookup, err := s.ledger.FindByID(ctx, transferID)
	if err != nil {
		return nil, translateLookup(err)
	}

	err = s.txr.RunInTx(ctx, lookup.CarID, func(ctx context.Context) error {
		t, err := s.ledger.FindByID(ctx, transferID)
		if err != nil {
			return translateLookup(err)
		}
		if t.To != callerID {
			return dErrors.New(dErrors.CodeForbidden, "only the recipient can accept this transfer")
		}
		if err := t.Complete(requestcontext.Now(ctx)); err != nil {
			return err
		}

		c, err := s.cars.FindByIDForUpdate(ctx, t.CarID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not accept transfer")
		}
		prevOwner, err := s.users.FindByID(ctx, c.OwnerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not accept transfer")
		}

		if err := s.ledger.Finish(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeInvalidInput, "invalid transfer")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not accept transfer")
		}
		prev := car.PreviousOwner{UserID: prevOwner.ID, Name: prevOwner.FullName}
		if err := s.cars.TransferOwnership(ctx, t.CarID, t.To, prev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not accept transfer")
		}

		accepted = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransfer("completed")
	s.auditor.Emit(ctx, audit.Event{
		UserID:  callerID.String(),
		Action:  audit.ActionTransferCompleted,
		Subject: accepted.ID.String(),
		Detail:  accepted.CarID.String(),
	})
	return accepted, nil
}

// Reject closes a pending transfer with a reason from the fixed enumeration.
// Only the designated recipient may reject; the car is left untouched.
func (s *Service) Reject(ctx context.Context, callerID id.UserID, transferID id.TransferID, reason Reason) (*Transfer, error) {
	if _, err := ParseReason(string(reason)); err != nil {
		return nil, err
	}

	var rejected *Transfer

	lookup, err := s.ledger.FindByID(ctx, transferID)
	if err != nil {
		return nil, translateLookup(err)
	}

	err = s.txr.RunInTx(ctx, lookup.CarID, func(ctx context.Context) error {
		t, err := s.ledger.FindByID(ctx, transferID)
		if err != nil {
			return translateLookup(err)
		}
		if t.To != callerID {
			return dErrors.New(dErrors.CodeForbidden, "only the recipient can reject this transfer")
		}
		if err := t.Reject(reason, requestcontext.Now(ctx)); err != nil {
			return err
		}

		if err := s.ledger.Finish(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeInvalidInput, "invalid transfer")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not reject transfer")
		}

		rejected = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransfer("rejected")
	s.auditor.Emit(ctx, audit.Event{
		UserID:  callerID.String(),
		Action:  audit.ActionTransferRejected,
		Subject: rejected.ID.String(),
		Detail:  string(reason),
	})
	return rejected, nil
}

// Status resolves a transfer together with its car and both parties' public
// summaries. Any authenticated caller may look a transfer up. The reads share
// the writers' TxRunner boundary so a caller never observes a completed
// transfer while the car still names the old owner.
func (s *Service) Status(ctx context.Context, transferID id.TransferID) (*Detail, error) {
	lookup, err := s.ledger.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transfer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load transfer")
	}

	var detail *Detail
	err = s.txr.RunInTx(ctx, lookup.CarID, func(ctx context.Context) error {
		t, err := s.ledger.FindByID(ctx, transferID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load transfer")
		}
		c, err := s.cars.FindByID(ctx, t.CarID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load transfer")
		}
		fromUser, err := s.users.FindByID(ctx, t.From)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load transfer")
		}
		toUser, err := s.users.FindByID(ctx, t.To)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load transfer")
		}

		detail = &Detail{
			Transfer: *t,
			Car:      c,
			FromUser: fromUser.Summarize(),
			ToUser:   toUser.Summarize(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// translateLookup maps a ledger lookup failure onto the API's contract: a
// missing transfer is a validation error, not a not-found, because transfer
// ids are capabilities handed out by Initiate.
func translateLookup(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid transfer")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "could not load transfer")
}
