package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

func TestKeyedLocks_AcquireAndRelease(t *testing.T) {
	locks := newKeyedLocks()
	ctx := context.Background()

	release, err := locks.acquire(ctx, "c-1")
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	release()

	// The key must be immediately reusable after release.
	release, err = locks.acquire(ctx, "c-1")
	if err != nil {
		t.Fatalf("acquire() after release error = %v", err)
	}
	release()
}

func TestKeyedLocks_TimesOutWhileHeld(t *testing.T) {
	locks := newKeyedLocks()

	release, err := locks.acquire(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := locks.acquire(ctx, "c-1"); !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("acquire() while held error = %v, want ErrTimeout", err)
	}
}

func TestKeyedLocks_KeysAreIndependent(t *testing.T) {
	locks := newKeyedLocks()

	releaseA, err := locks.acquire(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("acquire(c-1) error = %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	releaseB, err := locks.acquire(ctx, "c-2")
	if err != nil {
		t.Fatalf("acquire(c-2) while c-1 held error = %v", err)
	}
	releaseB()
}

func TestKeyedLocks_SerializeCriticalSections(t *testing.T) {
	locks := newKeyedLocks()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			release, err := locks.acquire(context.Background(), "shared")
			if err != nil {
				t.Errorf("acquire() error = %v", err)
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}
