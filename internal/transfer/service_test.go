package transfer

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
	"renavam/pkg/requestcontext"

	"renavam/internal/car"
	"renavam/internal/identity"
)

type ServiceSuite struct {
	suite.Suite
	service *Service
	ledger  *InMemoryLedger
	cars    *car.InMemoryStore
	users   *identity.InMemoryStore

	owner     *identity.User
	recipient *identity.User
	carID     id.CarID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ledger = NewInMemoryLedger()
	s.cars = car.NewInMemoryStore()
	s.users = identity.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.ledger, s.cars, s.users, NewMemoryTxRunner(), nil, nil, logger)

	s.owner = s.addUser("Ayrton Senna", "ayrton@example.com")
	s.recipient = s.addUser("Emerson Fittipaldi", "emerson@example.com")
	s.carID = s.addCar(s.owner.ID, "BRA2E19")
}

// SetupSubTest rebuilds the fixtures so every s.Run starts from a clean
// ledger; SetupTest alone only runs once per test method.
func (s *ServiceSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *ServiceSuite) addUser(name, email string) *identity.User {
	u := &identity.User{ID: id.NewUserID(), FullName: name, Email: email, PasswordHash: "x"}
	s.Require().NoError(s.users.Create(context.Background(), u))
	return u
}

func (s *ServiceSuite) addCar(owner id.UserID, plate string) id.CarID {
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

func (s *ServiceSuite) initiate() *Transfer {
	t, err := s.service.Initiate(context.Background(), s.owner.ID, s.carID, s.recipient.ID)
	s.Require().NoError(err)
	return t
}

func (s *ServiceSuite) TestInitiate() {
	s.Run("creates a pending transfer and records it on the car", func() {
		at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), at)

		t, err := s.service.Initiate(ctx, s.owner.ID, s.carID, s.recipient.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, t.Status)
		s.Equal(s.owner.ID, t.From)
		s.Equal(s.recipient.ID, t.To)
		s.Equal(at, t.StartedAt)
		s.Nil(t.FinishedAt)

		c, err := s.cars.FindByID(ctx, s.carID)
		s.Require().NoError(err)
		s.Equal([]id.TransferID{t.ID}, c.TransferHistory)
		s.Equal(s.owner.ID, c.OwnerID, "ownership does not change until acceptance")
	})

	s.Run("unknown car is not found", func() {
		_, err := s.service.Initiate(context.Background(), s.owner.ID, id.NewCarID(), s.recipient.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown recipient is not found", func() {
		_, err := s.service.Initiate(context.Background(), s.owner.ID, s.carID, id.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-owner caller is forbidden", func() {
		_, err := s.service.Initiate(context.Background(), s.recipient.ID, s.carID, s.owner.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("transferring to yourself is invalid", func() {
		_, err := s.service.Initiate(context.Background(), s.owner.ID, s.carID, s.owner.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("self-transfer of an unknown car is still not found", func() {
		_, err := s.service.Initiate(context.Background(), s.owner.ID, id.NewCarID(), s.owner.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("second pending transfer for the same car is a conflict", func() {
		s.initiate()

		other := s.addUser("Nelson Piquet", "nelson@example.com")
		_, err := s.service.Initiate(context.Background(), s.owner.ID, s.carID, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestInitiateConcurrent() {
	const attempts = 16

	recipients := make([]id.UserID, attempts)
	for i := range recipients {
		recipients[i] = s.addUser("Rival", "rival"+string(rune('a'+i))+"@example.com").ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(to id.UserID) {
			defer wg.Done()
			_, err := s.service.Initiate(context.Background(), s.owner.ID, s.carID, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}(recipients[i])
	}
	wg.Wait()

	s.Equal(1, succeeded, "exactly one initiate wins")
	s.Equal(attempts-1, conflicts)

	c, err := s.cars.FindByID(context.Background(), s.carID)
	s.Require().NoError(err)
	s.Len(c.TransferHistory, 1, "losers leave no trace on the car")
}

func (s *ServiceSuite) TestAccept() {
	s.Run("moves ownership, history and status in one step", func() {
		t := s.initiate()
		at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), at)

		done, err := s.service.Accept(ctx, s.recipient.ID, t.ID)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, done.Status)
		s.Require().NotNil(done.FinishedAt)
		s.Equal(at, *done.FinishedAt)
		s.Nil(done.RejectionReason)

		c, err := s.cars.FindByID(ctx, s.carID)
		s.Require().NoError(err)
		s.Equal(s.recipient.ID, c.OwnerID)
		s.Require().Len(c.PreviousOwners, 1)
		s.Equal(s.owner.ID, c.PreviousOwners[0].UserID)
		s.Equal("Ayrton Senna", c.PreviousOwners[0].Name, "name is snapshotted at transfer time")
	})

	s.Run("sender cannot accept their own transfer", func() {
		t := s.initiate()
		_, err := s.service.Accept(context.Background(), s.owner.ID, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown transfer is invalid", func() {
		_, err := s.service.Accept(context.Background(), s.recipient.ID, id.NewTransferID())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("accepting twice is invalid and leaves state alone", func() {
		t := s.initiate()
		_, err := s.service.Accept(context.Background(), s.recipient.ID, t.ID)
		s.Require().NoError(err)

		_, err = s.service.Accept(context.Background(), s.recipient.ID, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		c, err := s.cars.FindByID(context.Background(), s.carID)
		s.Require().NoError(err)
		s.Len(c.PreviousOwners, 1)
	})
}

// slowOwnershipStore widens the window between the ledger finishing a
// transfer and the car changing hands, so a torn read would be caught.
type slowOwnershipStore struct {
	*car.InMemoryStore
	delay time.Duration
}

func (s *slowOwnershipStore) TransferOwnership(ctx context.Context, carID id.CarID, newOwner id.UserID, prev car.PreviousOwner) error {
	time.Sleep(s.delay)
	return s.InMemoryStore.TransferOwnership(ctx, carID, newOwner, prev)
}

func (s *ServiceSuite) TestStatusDuringAccept() {
	cars := &slowOwnershipStore{InMemoryStore: s.cars, delay: 20 * time.Millisecond}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(s.ledger, cars, s.users, NewMemoryTxRunner(), nil, nil, logger)

	t, err := svc.Initiate(context.Background(), s.owner.ID, s.carID, s.recipient.ID)
	s.Require().NoError(err)

	acceptErr := make(chan error, 1)
	go func() {
		_, err := svc.Accept(context.Background(), s.recipient.ID, t.ID)
		acceptErr <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		s.Require().True(time.Now().Before(deadline), "accept never completed")

		detail, err := svc.Status(context.Background(), t.ID)
		s.Require().NoError(err)
		if detail.Status == StatusCompleted {
			s.Equal(s.recipient.ID, detail.Car.OwnerID, "a completed transfer must come with the new owner")
			break
		}
		s.Equal(StatusPending, detail.Status)
		s.Equal(s.owner.ID, detail.Car.OwnerID, "ownership must not move while the transfer is pending")
	}
	s.Require().NoError(<-acceptErr)
}

func (s *ServiceSuite) TestReject() {
	s.Run("closes the transfer with a reason and leaves the car untouched", func() {
		t := s.initiate()

		done, err := s.service.Reject(context.Background(), s.recipient.ID, t.ID, ReasonMechanical)
		s.Require().NoError(err)
		s.Equal(StatusRejected, done.Status)
		s.Require().NotNil(done.RejectionReason)
		s.Equal(ReasonMechanical, *done.RejectionReason)
		s.NotNil(done.FinishedAt)

		c, err := s.cars.FindByID(context.Background(), s.carID)
		s.Require().NoError(err)
		s.Equal(s.owner.ID, c.OwnerID)
		s.Empty(c.PreviousOwners)
	})

	s.Run("a rejected car can be transferred again", func() {
		t := s.initiate()
		_, err := s.service.Reject(context.Background(), s.recipient.ID, t.ID, ReasonFinancial)
		s.Require().NoError(err)

		s.initiate()
	})

	s.Run("reason outside the enumeration is invalid input", func() {
		t := s.initiate()
		_, err := s.service.Reject(context.Background(), s.recipient.ID, t.ID, Reason("Vibes"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		got, err := s.ledger.FindByID(context.Background(), t.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, got.Status, "a bad reason does not consume the transfer")
	})

	s.Run("sender cannot reject their own transfer", func() {
		t := s.initiate()
		_, err := s.service.Reject(context.Background(), s.owner.ID, t.ID, ReasonLegal)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("rejecting a completed transfer is invalid", func() {
		t := s.initiate()
		_, err := s.service.Accept(context.Background(), s.recipient.ID, t.ID)
		s.Require().NoError(err)

		_, err = s.service.Reject(context.Background(), s.recipient.ID, t.ID, ReasonDocument)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestStatus() {
	s.Run("resolves the car and both parties", func() {
		t := s.initiate()

		detail, err := s.service.Status(context.Background(), t.ID)
		s.Require().NoError(err)
		s.Equal(t.ID, detail.ID)
		s.Equal(StatusPending, detail.Status)
		s.Equal("BRA2E19", detail.Car.Plate)
		s.Equal("Ayrton Senna", detail.FromUser.FullName)
		s.Equal("emerson@example.com", detail.ToUser.Email)
	})

	s.Run("unknown transfer is not found", func() {
		_, err := s.service.Status(context.Background(), id.NewTransferID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
