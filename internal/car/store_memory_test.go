package car

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	id "renavam/pkg/domain"
	"renavam/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) newCar(plate string, owner id.UserID) *Car {
	return &Car{
		ID:              id.NewCarID(),
		Plate:           plate,
		Model:           "Corolla",
		ModelYear:       2021,
		ManufactureYear: 2020,
		Color:           "Black",
		Mileage:         12000,
		OwnerID:         owner,
	}
}

func (s *InMemoryStoreSuite) TestPlateUniqueness() {
	owner := id.NewUserID()
	s.Require().NoError(s.store.Create(context.Background(), s.newCar("AAA1B22", owner)))

	err := s.store.Create(context.Background(), s.newCar("aaa1b22", owner))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestAppendTransferHistory() {
	owner := id.NewUserID()
	c := s.newCar("BBB2C33", owner)
	s.Require().NoError(s.store.Create(context.Background(), c))

	first := id.NewTransferID()
	second := id.NewTransferID()
	s.Require().NoError(s.store.AppendTransferHistory(context.Background(), c.ID, first))
	s.Require().NoError(s.store.AppendTransferHistory(context.Background(), c.ID, second))

	found, err := s.store.FindByID(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal([]id.TransferID{first, second}, found.TransferHistory, "history keeps insertion order")

	err = s.store.AppendTransferHistory(context.Background(), id.NewCarID(), first)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestTransferOwnership() {
	seller := id.NewUserID()
	buyer := id.NewUserID()
	c := s.newCar("CCC3D44", seller)
	s.Require().NoError(s.store.Create(context.Background(), c))

	prev := PreviousOwner{UserID: seller, Name: "Original Owner"}
	s.Require().NoError(s.store.TransferOwnership(context.Background(), c.ID, buyer, prev))

	found, err := s.store.FindByID(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal(buyer, found.OwnerID)
	s.Equal([]PreviousOwner{prev}, found.PreviousOwners)
}

func (s *InMemoryStoreSuite) TestCopyOnRead() {
	owner := id.NewUserID()
	c := s.newCar("DDD4E55", owner)
	s.Require().NoError(s.store.Create(context.Background(), c))

	found, err := s.store.FindByID(context.Background(), c.ID)
	s.Require().NoError(err)
	found.TransferHistory = append(found.TransferHistory, id.NewTransferID())
	found.Plate = "HACKED"

	again, err := s.store.FindByID(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Empty(again.TransferHistory)
	s.Equal("DDD4E55", again.Plate)
}
