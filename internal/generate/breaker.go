package generate

import (
	"sync"
	"time"
)

// CircuitBreaker guards the video provider path with a single cooldown
// timestamp. A permanent-class submission failure (auth, quota, unprocessable
// request, rate limit) trips it; while tripped, generation requests skip
// provider submission entirely and go straight to the fallback path.
//
// The state is advisory: one extra request slipping through right at the
// window boundary is acceptable, so a plain mutex around the timestamp is all
// the synchronization needed.
type CircuitBreaker struct {
	mu            sync.Mutex
	cooldownUntil time.Time
	window        time.Duration
	now           func() time.Time
}

func NewCircuitBreaker(window time.Duration) *CircuitBreaker {
	return &CircuitBreaker{window: window, now: time.Now}
}

// Trip starts (or restarts) the cooldown window.
func (b *CircuitBreaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldownUntil = b.now().Add(b.window)
}

// Open reports whether the breaker is currently rejecting provider attempts.
// It clears itself once the window elapses.
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.cooldownUntil)
}

// Remaining returns how long the cooldown has left, or zero when closed.
func (b *CircuitBreaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.cooldownUntil.Sub(b.now()); d > 0 {
		return d
	}
	return 0
}
