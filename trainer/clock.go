package trainer

import (
	"sync"
	"time"
)

// SimClock is simulation time advanced by the runner, one tick at a time.
type SimClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *SimClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by dt seconds.
func (c *SimClock) Advance(dt float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += time.Duration(dt * float64(time.Second))
	return c.now
}
