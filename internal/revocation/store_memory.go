package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryTRL is a single-process revocation list for development and tests.
type MemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> expiry of the revocation entry
}

func NewMemoryTRL() *MemoryTRL {
	return &MemoryTRL{revoked: make(map[string]time.Time)}
}

func (t *MemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (t *MemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	expiry, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(t.revoked, jti)
		return false, nil
	}
	return true, nil
}
