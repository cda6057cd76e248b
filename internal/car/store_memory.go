package car

import (
	"context"
	"strings"
	"sync"

	id "renavam/pkg/domain"
	"renavam/pkg/platform/sentinel"
)

// InMemoryStore keeps cars in process memory with the same semantics as the
// Postgres store: global plate uniqueness, append-only histories.
type InMemoryStore struct {
	mu      sync.RWMutex
	cars    map[id.CarID]*Car
	byPlate map[string]id.CarID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cars:    make(map[id.CarID]*Car),
		byPlate: make(map[string]id.CarID),
	}
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func copyCar(c *Car) *Car {
	copied := *c
	copied.PreviousOwners = append([]PreviousOwner(nil), c.PreviousOwners...)
	copied.TransferHistory = append([]id.TransferID(nil), c.TransferHistory...)
	return &copied
}

func (s *InMemoryStore) Create(_ context.Context, c *Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizePlate(c.Plate)
	if _, exists := s.byPlate[key]; exists {
		return sentinel.ErrConflict
	}

	s.cars[c.ID] = copyCar(c)
	s.byPlate[key] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, carID id.CarID) (*Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cars[carID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCar(c), nil
}

// FindByIDForUpdate is plain FindByID here; the memory TxRunner's per-car lock
// already serializes transactional readers.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, carID id.CarID) (*Car, error) {
	return s.FindByID(ctx, carID)
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []Car
	for _, c := range s.cars {
		if c.OwnerID == ownerID {
			owned = append(owned, *copyCar(c))
		}
	}
	return owned, nil
}

func (s *InMemoryStore) AppendTransferHistory(_ context.Context, carID id.CarID, transferID id.TransferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cars[carID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.TransferHistory = append(c.TransferHistory, transferID)
	return nil
}

func (s *InMemoryStore) TransferOwnership(_ context.Context, carID id.CarID, newOwner id.UserID, prev PreviousOwner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cars[carID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.PreviousOwners = append(c.PreviousOwners, prev)
	c.OwnerID = newOwner
	return nil
}
