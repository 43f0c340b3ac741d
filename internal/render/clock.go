package render

import (
	"sync"
	"time"
)

// clock measures animation time, excluding paused periods.
type clock struct {
	mu       sync.Mutex
	pausedAt time.Time
	paused   time.Duration
}

func (c *clock) now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now()
	if !c.pausedAt.IsZero() {
		t = c.pausedAt
	}
	return time.Duration(t.UnixNano()) - c.paused
}

func (c *clock) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pausedAt.IsZero() {
		c.pausedAt = time.Now()
	}
}

func (c *clock) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pausedAt.IsZero() {
		c.paused += time.Since(c.pausedAt)
		c.pausedAt = time.Time{}
	}
}

func (c *clock) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.pausedAt.IsZero()
}
