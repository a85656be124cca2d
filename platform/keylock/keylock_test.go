package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	locks := New[string]()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("lead-1")
			defer unlock()
			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
	if locks.Len() != 0 {
		t.Fatalf("expected entries to be released, got %d", locks.Len())
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	locks := New[int]()
	unlockA := locks.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	locks := New[string]()
	unlock := locks.Lock("k")
	unlock()
	unlock()
	if locks.Len() != 0 {
		t.Fatalf("expected empty map, got %d", locks.Len())
	}
}
