package forge

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// cooldown tracks a provider's rate-limit window. Consecutive trips double the
// window up to the configured maximum; a successful response resets it unless
// the window was tripped while that request was in flight.
type cooldown struct {
	mu      sync.Mutex
	until   time.Time
	trips   uint64
	backoff *backoff.ExponentialBackOff
	now     func() time.Time
}

func newCooldown(initial, maximum time.Duration, now func() time.Time) *cooldown {
	if now == nil {
		now = time.Now
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maximum
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return &cooldown{backoff: b, now: now}
}

// Remaining returns the time left in the window and whether the window is active.
func (c *cooldown) Remaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	left := c.until.Sub(c.now())
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// Trip opens (or extends) the window. A provider hint longer than the backoff
// interval wins.
func (c *cooldown) Trip(retryAfter time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := c.backoff.NextBackOff()
	if window == backoff.Stop {
		window = c.backoff.MaxInterval
	}
	if retryAfter > window {
		window = retryAfter
	}
	c.trips++
	until := c.now().Add(window)
	if until.After(c.until) {
		c.until = until
	}
	return window
}

// Epoch identifies the current trip count. Take it before sending a request
// and hand it to Succeeded when the response arrives.
func (c *cooldown) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trips
}

// Succeeded resets the window for a successful request started at epoch. A
// trip recorded after the request started keeps its window.
func (c *cooldown) Succeeded(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trips != epoch {
		return false
	}
	c.until = time.Time{}
	c.backoff.Reset()
	return true
}
