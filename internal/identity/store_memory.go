package identity

import (
	"context"
	"strings"
	"sync"

	id "renavam/pkg/domain"
	"renavam/pkg/platform/sentinel"
)

// InMemoryStore keeps users in process memory. It backs development runs and
// tests; semantics (email uniqueness, copy-on-read) mirror the Postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*User
	byEmail map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[id.UserID]*User),
		byEmail: make(map[string]id.UserID),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *InMemoryStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(user.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}

	copied := *user
	s.users[user.ID] = &copied
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}
