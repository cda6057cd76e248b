package transfer

import (
	"context"
	"hash/fnv"
	"sync"

	id "renavam/pkg/domain"
	"renavam/pkg/platform/sentinel"
)

// InMemoryLedger is the development and test implementation of Ledger.
type InMemoryLedger struct {
	mu        sync.RWMutex
	transfers map[id.TransferID]*Transfer
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{transfers: make(map[id.TransferID]*Transfer)}
}

func (l *InMemoryLedger) Create(_ context.Context, t *Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.transfers {
		if existing.CarID == t.CarID && existing.Status == StatusPending {
			return sentinel.ErrConflict
		}
	}
	if _, ok := l.transfers[t.ID]; ok {
		return sentinel.ErrConflict
	}

	cp := *t
	l.transfers[t.ID] = &cp
	return nil
}

func (l *InMemoryLedger) FindByID(_ context.Context, transferID id.TransferID) (*Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.transfers[transferID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *InMemoryLedger) Finish(_ context.Context, t *Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.transfers[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != StatusPending {
		return sentinel.ErrInvalidState
	}

	cp := *t
	l.transfers[t.ID] = &cp
	return nil
}

const txShards = 128

// MemoryTxRunner serializes transfer-critical sections per car using a fixed
// pool of mutex shards keyed by a hash of the car id. Two cars may share a
// shard; that costs throughput, never correctness.
type MemoryTxRunner struct {
	shards [txShards]sync.Mutex
}

func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

func (r *MemoryTxRunner) RunInTx(ctx context.Context, carID id.CarID, fn func(ctx context.Context) error) error {
	shard := &r.shards[shardFor(carID)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func shardFor(carID id.CarID) uint32 {
	h := fnv.New32a()
	h.Write([]byte(carID.String()))
	return h.Sum32() % txShards
}
