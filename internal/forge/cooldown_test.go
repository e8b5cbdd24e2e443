package forge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCooldown_GrowsAndResets(t *testing.T) {
	clock := newFakeClock()
	c := newCooldown(10*time.Second, 35*time.Second, clock.Now)

	_, active := c.Remaining()
	assert.False(t, active)

	assert.Equal(t, 10*time.Second, c.Trip(0))
	left, active := c.Remaining()
	assert.True(t, active)
	assert.Equal(t, 10*time.Second, left)

	clock.Advance(11 * time.Second)
	_, active = c.Remaining()
	assert.False(t, active)

	assert.Equal(t, 20*time.Second, c.Trip(0))
	assert.Equal(t, 35*time.Second, c.Trip(0), "capped at maximum")

	assert.True(t, c.Succeeded(c.Epoch()))
	_, active = c.Remaining()
	assert.False(t, active)
	assert.Equal(t, 10*time.Second, c.Trip(0), "sequence restarts after success")
}

func TestCooldown_RetryAfterWins(t *testing.T) {
	clock := newFakeClock()
	c := newCooldown(time.Second, time.Minute, clock.Now)

	assert.Equal(t, 2*time.Minute, c.Trip(2*time.Minute))
	left, active := c.Remaining()
	assert.True(t, active)
	assert.Equal(t, 2*time.Minute, left)
}

func TestCooldown_NeverShortens(t *testing.T) {
	clock := newFakeClock()
	c := newCooldown(time.Second, time.Minute, clock.Now)

	c.Trip(time.Hour)
	c.Trip(0)

	left, _ := c.Remaining()
	assert.Equal(t, time.Hour, left)
}

func TestCooldown_SucceededKeepsLaterTrip(t *testing.T) {
	clock := newFakeClock()
	c := newCooldown(10*time.Second, time.Minute, clock.Now)

	inFlight := c.Epoch()
	c.Trip(30 * time.Second)

	assert.False(t, c.Succeeded(inFlight), "request started before the trip")
	left, active := c.Remaining()
	assert.True(t, active)
	assert.Equal(t, 30*time.Second, left)

	assert.True(t, c.Succeeded(c.Epoch()))
	_, active = c.Remaining()
	assert.False(t, active)
	assert.Equal(t, 10*time.Second, c.Trip(0), "sequence restarts after success")
}
