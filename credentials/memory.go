package credentials

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the pair for the lifetime of the process.
type MemoryStore struct {
	pair  Pair
	saved bool
	lock  sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Save(_ context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.pair = pair
	ms.saved = true
	return nil
}

func (ms *MemoryStore) Load(_ context.Context) (Pair, bool, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	if !ms.saved {
		return Pair{}, false, nil
	}
	return ms.pair, true, nil
}

func (ms *MemoryStore) Clear(_ context.Context) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.pair = Pair{}
	ms.saved = false
	return nil
}
