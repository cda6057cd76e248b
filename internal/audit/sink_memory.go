package audit

import (
	"context"
	"sync"
)

// MemorySink keeps the audit trail in process memory. Used when no Kafka
// brokers are configured, and as the sink fake in tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of the trail in append order.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make([]Event, len(s.events))
	copy(snapshot, s.events)
	return snapshot
}
