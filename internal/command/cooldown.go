package command

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const cooldownSweepInterval = time.Minute

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Cooldown limits each user to one command per interval. Idle entries are
// evicted by Sweep.
type Cooldown struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*cooldownEntry
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		now:      time.Now,
		entries:  make(map[string]*cooldownEntry),
	}
}

func (c *Cooldown) Allow(userID string) bool {
	if c.interval <= 0 {
		return true
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		e = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(c.interval), 1)}
		c.entries[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Sweep drops users idle for longer than the interval, whose limiters are
// full again anyway. It returns the number of evicted entries.
func (c *Cooldown) Sweep() int {
	cutoff := c.now().Add(-c.interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for id, e := range c.entries {
		if e.lastSeen.Before(cutoff) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Serve sweeps periodically until ctx is done.
func (c *Cooldown) Serve(ctx context.Context) error {
	ticker := time.NewTicker(cooldownSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Cooldown) String() string {
	return "command-cooldown-sweeper"
}
