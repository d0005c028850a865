package transit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryBudgetAllowsUpToCap(t *testing.T) {
	rb := NewRetryBudget(2, time.Minute)

	if !rb.Allow() {
		t.Error("first retry should be allowed")
	}
	if !rb.Allow() {
		t.Error("second retry should be allowed")
	}
	if rb.Allow() {
		t.Error("third retry should exceed the budget")
	}
}

func TestRetryBudgetResetsAfterWindow(t *testing.T) {
	rb := NewRetryBudget(1, 20*time.Millisecond)

	if !rb.Allow() {
		t.Fatal("first retry should be allowed")
	}
	if rb.Allow() {
		t.Fatal("budget should be spent")
	}

	time.Sleep(30 * time.Millisecond)
	if !rb.Allow() {
		t.Error("budget should reset after the window")
	}
}

func TestRetryBudgetConcurrent(t *testing.T) {
	rb := NewRetryBudget(5, time.Minute)

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rb.Allow() {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&allowed); got != 5 {
		t.Errorf("allowed = %d, want exactly 5", got)
	}
}

func TestRetryBudgetStats(t *testing.T) {
	rb := NewRetryBudget(3, time.Minute)
	rb.Allow()
	rb.Allow()

	current, max, _ := rb.Stats()
	if current != 2 || max != 3 {
		t.Errorf("Stats = (%d, %d), want (2, 3)", current, max)
	}
}
