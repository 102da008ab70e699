package generate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(window time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := NewCircuitBreaker(window)
	b.now = clock.now
	return b, clock
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	b, _ := newTestBreaker(10 * time.Minute)
	assert.False(t, b.Open())
	assert.Zero(t, b.Remaining())
}

func TestCircuitBreaker_TripOpensForWindow(t *testing.T) {
	b, clock := newTestBreaker(10 * time.Minute)

	b.Trip()
	assert.True(t, b.Open())
	assert.Equal(t, 10*time.Minute, b.Remaining())

	clock.advance(9 * time.Minute)
	assert.True(t, b.Open(), "still inside the window")
	assert.Equal(t, time.Minute, b.Remaining())

	clock.advance(time.Minute)
	assert.False(t, b.Open(), "clears itself once the window elapses")
	assert.Zero(t, b.Remaining())
}

func TestCircuitBreaker_RetripRestartsWindow(t *testing.T) {
	b, clock := newTestBreaker(10 * time.Minute)

	b.Trip()
	clock.advance(8 * time.Minute)
	b.Trip()
	clock.advance(8 * time.Minute)

	assert.True(t, b.Open(), "second trip restarted the cooldown")
	assert.Equal(t, 2*time.Minute, b.Remaining())
}
