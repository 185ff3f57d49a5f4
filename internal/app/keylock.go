package app

import (
	"context"
	"sync"
)

// keyLock serializes work per measurement id. A second Lock for a held id
// waits until the holder unlocks or ctx is done.
type keyLock struct {
	mu   sync.Mutex
	held map[uint64]chan struct{}
}

func newKeyLock() *keyLock {
	return &keyLock{held: make(map[uint64]chan struct{})}
}

// Lock acquires the id and returns the function releasing it.
func (k *keyLock) Lock(ctx context.Context, id uint64) (func(), error) {
	for {
		k.mu.Lock()
		wait, busy := k.held[id]
		if !busy {
			done := make(chan struct{})
			k.held[id] = done
			k.mu.Unlock()
			return func() {
				k.mu.Lock()
				delete(k.held, id)
				k.mu.Unlock()
				close(done)
			}, nil
		}
		k.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
