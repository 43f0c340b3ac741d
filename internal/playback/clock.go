package playback

import (
	"context"
	"sync"
	"time"
)

// clock measures playback time in timeline seconds. Paused periods are
// excluded and wall time is divided by the time scale.
type clock struct {
	scale float64

	mu       sync.Mutex
	pausedAt time.Time
	paused   time.Duration
}

// stamp is a point on the clock.
type stamp struct {
	at     time.Time
	paused time.Duration
}

func newClock(scale float64) *clock {
	if scale <= 0 {
		scale = 1
	}
	return &clock{scale: scale}
}

func (c *clock) pausedLocked(now time.Time) time.Duration {
	d := c.paused
	if !c.pausedAt.IsZero() {
		d += now.Sub(c.pausedAt)
	}
	return d
}

func (c *clock) mark() stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	return stamp{at: now, paused: c.pausedLocked(now)}
}

// since returns the unpaused timeline seconds elapsed since s.
func (c *clock) since(s stamp) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	d := now.Sub(s.at) - (c.pausedLocked(now) - s.paused)
	return d.Seconds() / c.scale
}

// pausedSince returns the wall time spent paused since s.
func (c *clock) pausedSince(s stamp) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pausedLocked(time.Now()) - s.paused
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

// hold waits until seconds of unpaused timeline time have passed.
func (c *clock) hold(ctx context.Context, seconds float64) error {
	start := c.mark()
	for {
		left := seconds - c.since(start)
		if left <= 0 {
			return nil
		}
		// Re-check regularly so that pauses extend the hold.
		wait := min(time.Duration(left*c.scale*float64(time.Second)), 50*time.Millisecond)
		wait = max(wait, time.Millisecond)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
