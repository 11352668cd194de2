package window

import (
	"sync"
	"time"
)

// DefaultFrameInterval is one display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// Throttle admits at most one recomputation per interval. Values offered
// too early wait in a single pending slot where a newer value replaces an
// older one, so bursts cost constant memory.
type Throttle[T any] struct {
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	last       time.Time
	pending    T
	hasPending bool
}

// NewThrottle creates a throttle. A nil now uses time.Now.
func NewThrottle[T any](interval time.Duration, now func() time.Time) *Throttle[T] {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Throttle[T]{interval: interval, now: now}
}

// Offer returns (v, true) when the caller may recompute now. Otherwise v
// becomes the pending value and Offer returns false.
func (t *Throttle[T]) Offer(v T) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.last.IsZero() || now.Sub(t.last) >= t.interval {
		t.last = now
		t.clear()
		return v, true
	}
	t.pending, t.hasPending = v, true
	var zero T
	return zero, false
}

// Flush returns the pending value once the interval has elapsed.
func (t *Throttle[T]) Flush() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if !t.hasPending {
		return zero, false
	}
	now := t.now()
	if now.Sub(t.last) < t.interval {
		return zero, false
	}
	v := t.pending
	t.last = now
	t.clear()
	return v, true
}

// Take returns and clears the pending value regardless of timing.
func (t *Throttle[T]) Take() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.pending, t.hasPending
	if ok {
		t.last = t.now()
	}
	t.clear()
	return v, ok
}

func (t *Throttle[T]) clear() {
	var zero T
	t.pending, t.hasPending = zero, false
}
