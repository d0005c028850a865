package transit

import (
	"sync"
	"time"
)

const defaultUnauthorizedWindow = 60 * time.Second

// unauthorizedGuard collapses concurrent 401 bursts into a single
// session-expired signal. At most one emission happens per window no matter
// how many in-flight requests classify a 401 at the same time.
//
// The JS-style check-then-set would be race-free only on a cooperative event
// loop; goroutines are preempted, so the timestamp and the in-progress flag
// live behind a mutex.
type unauthorizedGuard struct {
	mu          sync.Mutex
	lastFiredAt time.Time
	emitting    bool
	window      time.Duration
	now         func() time.Time
}

func newUnauthorizedGuard(window time.Duration) *unauthorizedGuard {
	if window <= 0 {
		window = defaultUnauthorizedWindow
	}
	return &unauthorizedGuard{window: window, now: time.Now}
}

// fire runs emit if and only if this call wins the claim: the window since
// the last emission has elapsed and no emission is already in progress on
// this or another goroutine. The timestamp is claimed before emit runs, so
// a subscriber that triggers another 401 classification re-enters harmlessly.
// Reports whether emit ran.
func (g *unauthorizedGuard) fire(emit func()) bool {
	g.mu.Lock()
	now := g.now()
	if g.emitting || now.Sub(g.lastFiredAt) <= g.window {
		g.mu.Unlock()
		return false
	}
	g.lastFiredAt = now
	g.emitting = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.emitting = false
		g.mu.Unlock()
	}()
	emit()
	return true
}

// reset clears the window. Test isolation only; production code never calls it.
func (g *unauthorizedGuard) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFiredAt = time.Time{}
	g.emitting = false
}
