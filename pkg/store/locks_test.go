package store

import (
	"fmt"
	"sync"
	"testing"
)

func TestWithLockSerializes(t *testing.T) {
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = WithLock("r:lock-test", func() error {
				n++
				return nil
			})
		}()
	}
	wg.Wait()
	if n != 50 {
		t.Fatalf("increments = %d, want 50", n)
	}
}

func TestWithLockEvictsIdleEntries(t *testing.T) {
	held := make(chan struct{})
	done := make(chan struct{})
	released := make(chan struct{})
	go func() {
		_ = WithLock("r:held", func() error {
			close(held)
			<-done
			return nil
		})
		close(released)
	}()
	<-held
	if lockTableSize() == 0 {
		t.Fatalf("held lock has no table entry")
	}
	close(done)
	<-released

	// distinct names must not accumulate entries
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = WithLock(fmt.Sprintf("dl:msg-%d:u-%d", i, i), func() error { return nil })
		}(i)
	}
	wg.Wait()
	if got := lockTableSize(); got != 0 {
		t.Fatalf("lock table size = %d after release, want 0", got)
	}
}
