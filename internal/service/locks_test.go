package service

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("ds-1")
			counter++
			km.Unlock("ds-1")
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("ds-1")
	// A different key must not block while ds-1 is held.
	done := make(chan struct{})
	go func() {
		km.Lock("ds-2")
		km.Unlock("ds-2")
		close(done)
	}()
	<-done
	km.Unlock("ds-1")
}

func TestKeyedMutexFreesIdleEntries(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("ds-1")
	km.Unlock("ds-1")

	km.mu.Lock()
	remaining := len(km.locks)
	km.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d lock entries leaked", remaining)
	}
}
