package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

// keyedLocks hands out one lock per key, created on demand. Acquisition
// honors context cancellation so callers time out instead of blocking
// forever behind a stuck holder.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]chan struct{})}
}

// acquire blocks until the lock for key is held or ctx expires. On success
// it returns a release function that must be called exactly once.
func (k *keyedLocks) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	ch, ok := k.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[key] = ch
	}
	k.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire lock %q: %w", key, domain.ErrTimeout)
	}
}
