package transit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGuardFiresOncePerBurst(t *testing.T) {
	guard := newUnauthorizedGuard(60 * time.Second)
	var emissions int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.fire(func() { atomic.AddInt32(&emissions, 1) })
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&emissions); got != 1 {
		t.Errorf("emissions = %d, want 1", got)
	}
}

func TestGuardFiresAgainAfterWindow(t *testing.T) {
	guard := newUnauthorizedGuard(60 * time.Second)
	now := time.Now()
	guard.now = func() time.Time { return now }

	if !guard.fire(func() {}) {
		t.Fatal("first fire should win the claim")
	}
	if guard.fire(func() {}) {
		t.Error("second fire inside window should be suppressed")
	}

	now = now.Add(61 * time.Second)
	if !guard.fire(func() {}) {
		t.Error("fire after window elapsed should emit again")
	}
}

func TestGuardSuppressesAtWindowBoundary(t *testing.T) {
	guard := newUnauthorizedGuard(60 * time.Second)
	now := time.Now()
	guard.now = func() time.Time { return now }

	guard.fire(func() {})

	// Exactly the window later is still inside it.
	now = now.Add(60 * time.Second)
	if guard.fire(func() {}) {
		t.Error("fire exactly at the window boundary should be suppressed")
	}
}

func TestGuardBlocksReentrantEmission(t *testing.T) {
	guard := newUnauthorizedGuard(60 * time.Second)
	reentered := false

	guard.fire(func() {
		if guard.fire(func() { reentered = true }) {
			t.Error("re-entrant fire claimed the guard")
		}
	})

	if reentered {
		t.Error("re-entrant emission ran")
	}
}

func TestGuardReset(t *testing.T) {
	guard := newUnauthorizedGuard(60 * time.Second)

	guard.fire(func() {})
	guard.reset()

	if !guard.fire(func() {}) {
		t.Error("fire after reset should emit")
	}
}
