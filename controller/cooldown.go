package controller

import (
	"sync"
	"time"
)

// Cooldown gates an action to at most once per interval.
type Cooldown struct {
	mutex    sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether the action may run now and, when it may, consumes
// the slot.
func (c *Cooldown) Allow() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) < c.interval {
		return false
	}
	c.last = now
	return true
}

// Remaining returns how long until Allow passes again.
func (c *Cooldown) Remaining() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.last.IsZero() {
		return 0
	}
	remaining := c.interval - c.now().Sub(c.last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the gate.
func (c *Cooldown) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.last = time.Time{}
}
