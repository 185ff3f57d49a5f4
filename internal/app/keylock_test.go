package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyLock_Exclusive(t *testing.T) {
	k := newKeyLock()
	var active, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), 1)
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak holders = %d, want 1", peak.Load())
	}
	if len(k.held) != 0 {
		t.Errorf("held = %d ids after unlock, want 0", len(k.held))
	}
}

func TestKeyLock_IndependentKeys(t *testing.T) {
	k := newKeyLock()
	unlock1, err := k.Lock(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2, err := k.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("Lock(2) blocked by key 1: %v", err)
	}
	unlock2()
}

func TestKeyLock_ContextCanceled(t *testing.T) {
	k := newKeyLock()
	unlock, err := k.Lock(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, 1); err != context.DeadlineExceeded {
		t.Errorf("Lock() = %v, want DeadlineExceeded", err)
	}
}
