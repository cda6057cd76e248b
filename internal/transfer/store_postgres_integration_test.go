//go:build integration

package transfer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/sentinel"
	"renavam/pkg/testutil/containers"

	"renavam/internal/car"
	"renavam/internal/identity"
	"renavam/internal/transfer"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	ledger   *transfer.PostgresLedger
	cars     *car.PostgresStore
	users    *identity.PostgresStore
	service  *transfer.Service

	owner     id.UserID
	recipient id.UserID
	carID     id.CarID
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	ctx := context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())

	s.users = identity.NewPostgresStore(s.postgres.DB)
	s.cars = car.NewPostgresStore(s.postgres.DB)
	s.ledger = transfer.NewPostgresLedger(s.postgres.DB)

	s.Require().NoError(s.users.EnsureSchema(ctx))
	s.Require().NoError(s.cars.EnsureSchema(ctx))
	s.Require().NoError(s.ledger.EnsureSchema(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = transfer.NewService(
		s.ledger, s.cars, s.users,
		transfer.NewPostgresTxRunner(s.postgres.DB),
		nil, nil, logger,
	)
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "transfers", "cars", "users"))

	s.owner = s.addUser("Ayrton Senna", "ayrton@example.com")
	s.recipient = s.addUser("Emerson Fittipaldi", "emerson@example.com")
	s.carID = s.addCar(s.owner, "BRA2E19")
}

func (s *PostgresLedgerSuite) addUser(name, email string) id.UserID {
	u := &identity.User{ID: id.NewUserID(), FullName: name, Email: email, PasswordHash: "x"}
	s.Require().NoError(s.users.Create(context.Background(), u))
	return u.ID
}

func (s *PostgresLedgerSuite) addCar(owner id.UserID, plate string) id.CarID {
	c := &car.Car{
		ID:              id.NewCarID(),
		Plate:           plate,
		Model:           "Kombi",
		ModelYear:       1975,
		ManufactureYear: 1975,
		Color:           "Blue",
		Mileage:         250000,
		OwnerID:         owner,
	}
	s.Require().NoError(s.cars.Create(context.Background(), c))
	return c.ID
}

// TestPendingIndex verifies the partial unique index refuses a second pending
// transfer for the same car at the database level, bypassing the service.
func (s *PostgresLedgerSuite) TestPendingIndex() {
	ctx := context.Background()
	first := &transfer.Transfer{
		ID: id.NewTransferID(), CarID: s.carID, From: s.owner, To: s.recipient,
		Status: transfer.StatusPending, StartedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.ledger.Create(ctx, first))

	second := &transfer.Transfer{
		ID: id.NewTransferID(), CarID: s.carID, From: s.owner, To: s.recipient,
		Status: transfer.StatusPending, StartedAt: time.Now().UTC(),
	}
	s.Require().ErrorIs(s.ledger.Create(ctx, second), sentinel.ErrConflict)

	// a finished row no longer occupies the index slot
	s.Require().NoError(first.Reject(transfer.ReasonDocument, time.Now().UTC()))
	s.Require().NoError(s.ledger.Finish(ctx, first))
	s.Require().NoError(s.ledger.Create(ctx, second))
}

func (s *PostgresLedgerSuite) TestFinishIsCompareAndSwap() {
	ctx := context.Background()
	tr := &transfer.Transfer{
		ID: id.NewTransferID(), CarID: s.carID, From: s.owner, To: s.recipient,
		Status: transfer.StatusPending, StartedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.ledger.Create(ctx, tr))

	s.Require().NoError(tr.Complete(time.Now().UTC()))
	s.Require().NoError(s.ledger.Finish(ctx, tr))
	s.Require().ErrorIs(s.ledger.Finish(ctx, tr), sentinel.ErrInvalidState)

	got, err := s.ledger.FindByID(ctx, tr.ID)
	s.Require().NoError(err)
	s.Equal(transfer.StatusCompleted, got.Status)
	s.NotNil(got.FinishedAt)
}

func (s *PostgresLedgerSuite) TestRoundTrip() {
	ctx := context.Background()
	reason := transfer.ReasonMechanical
	finished := time.Now().UTC().Truncate(time.Microsecond)
	tr := &transfer.Transfer{
		ID: id.NewTransferID(), CarID: s.carID, From: s.owner, To: s.recipient,
		Status: transfer.StatusRejected, StartedAt: finished.Add(-time.Hour),
		FinishedAt: &finished, RejectionReason: &reason,
	}
	s.Require().NoError(s.ledger.Create(ctx, tr))

	got, err := s.ledger.FindByID(ctx, tr.ID)
	s.Require().NoError(err)
	s.Equal(tr.ID, got.ID)
	s.Equal(transfer.StatusRejected, got.Status)
	s.Require().NotNil(got.RejectionReason)
	s.Equal(reason, *got.RejectionReason)
	s.Require().NotNil(got.FinishedAt)
	s.WithinDuration(finished, *got.FinishedAt, time.Millisecond)
}

// TestConcurrentInitiate drives the full orchestrator against the real
// database: many goroutines race to open a transfer for the same car and
// exactly one must win.
func (s *PostgresLedgerSuite) TestConcurrentInitiate() {
	ctx := context.Background()
	const attempts = 10

	recipients := make([]id.UserID, attempts)
	for i := range recipients {
		recipients[i] = s.addUser("Rival", "rival"+string(rune('a'+i))+"@example.com")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(to id.UserID) {
			defer wg.Done()
			_, err := s.service.Initiate(ctx, s.owner, s.carID, to)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !dErrors.HasCode(err, dErrors.CodeConflict) {
				s.Failf("unexpected error", "%v", err)
			}
		}(recipients[i])
	}
	wg.Wait()

	s.Equal(1, succeeded)

	c, err := s.cars.FindByID(ctx, s.carID)
	s.Require().NoError(err)
	s.Len(c.TransferHistory, 1)
}
