package transit

import (
	"sync"
	"time"
)

// Event identifies a bus topic. The set is closed: the transport only ever
// emits the constants below.
type Event string

const (
	// EventUnauthorized fires (debounced) when a request receives a 401.
	EventUnauthorized Event = "auth:unauthorized"

	// EventPaywallPlan fires on 402 responses with a PaywallPayload.
	EventPaywallPlan Event = "paywall:plan"

	// EventPaywallRate fires on 429 responses with a PaywallPayload.
	EventPaywallRate Event = "paywall:rate"

	// EventAPIRequest carries TraceEvent lifecycle records for every attempt.
	EventAPIRequest Event = "api:request"
)

// PaywallReason distinguishes the two paywall signals.
type PaywallReason string

const (
	PaywallPlan PaywallReason = "plan"
	PaywallRate PaywallReason = "rate"
)

// PaywallPayload is broadcast on 402/429 responses. It is never returned as
// an error; subscribers drive upgrade or backoff UI from it.
type PaywallPayload struct {
	Reason     PaywallReason
	UpgradeURL string
	Feature    string
	// RetryAfter is in seconds; zero when the server gave no hint.
	RetryAfter int
}

// TracePhase marks where in an attempt's lifecycle a TraceEvent was emitted.
type TracePhase string

const (
	PhaseStart TracePhase = "start"
	PhaseEnd   TracePhase = "end"
	PhaseError TracePhase = "error"
)

// TraceEvent is the observability record emitted on EventAPIRequest.
// Headers are sanitized before inclusion: Authorization and anything
// matching secret/password is stripped.
type TraceEvent struct {
	ID         string
	Ts         time.Time
	Phase      TracePhase
	Method     string
	URL        string
	Status     int
	RequestID  string
	DurationMs int64
	Headers    map[string]string
}

type subscriber struct {
	id uint64
	fn func(payload any)
}

// Bus is a minimal synchronous pub/sub register decoupling transport-level
// signals from whatever reacts to them. It is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Event][]subscriber
	logger Logger
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]subscriber)}
}

// SetLogger installs a logger used to report panicking subscribers.
func (b *Bus) SetLogger(logger Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// On registers a callback for an event and returns an unsubscribe function.
// Unsubscribing twice is a no-op. Delivery preserves registration order.
func (b *Bus) On(event Event, fn func(payload any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, sub := range list {
			if sub.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[event]) == 0 {
			delete(b.subs, event)
		}
	}
}

// Emit synchronously fans payload out to all subscribers registered at call
// time. The subscriber list is snapshotted first, so a callback registered
// during emission is not invoked for that emission. A panicking subscriber
// is recovered and logged; it never prevents delivery to the rest nor
// propagates to the emitter.
func (b *Bus) Emit(event Event, payload any) {
	b.mu.Lock()
	snapshot := make([]subscriber, len(b.subs[event]))
	copy(snapshot, b.subs[event])
	logger := b.logger
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.deliver(event, sub, payload, logger)
	}
}

func (b *Bus) deliver(event Event, sub subscriber, payload any, logger Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("event subscriber panicked", "event", string(event), "panic", r)
		}
	}()
	sub.fn(payload)
}

// SubscriberCount returns the number of callbacks registered for an event.
func (b *Bus) SubscriberCount(event Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}

// Reset drops all registrations. Intended for test harnesses that need to
// clear process-wide state between cases.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Event][]subscriber)
}
