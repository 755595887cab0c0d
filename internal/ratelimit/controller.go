// Package ratelimit implements the process-wide pause barrier used to back
// off every in-flight inference worker when the backend signals throttling.
package ratelimit

import (
	"sync"
	"time"
)

// Controller is a single shared barrier: a mutex-protected deadline that
// callers wait on before issuing a request, and that a throttled caller
// can push forward. The deadline can only move forward — TriggerPause
// never shortens a wait already in progress, so concurrent waiters share
// one pending timer instead of each resetting it.
type Controller struct {
	mu         sync.Mutex
	pauseUntil time.Time
}

// New returns a Controller with no pause in effect.
func New() *Controller {
	return &Controller{}
}

// WaitIfPaused blocks the caller until the shared deadline has passed.
// If no pause is active it returns immediately.
func (c *Controller) WaitIfPaused() {
	for {
		c.mu.Lock()
		until := c.pauseUntil
		c.mu.Unlock()

		remaining := time.Until(until)
		if remaining <= 0 {
			return
		}
		time.Sleep(remaining)
	}
}

// TriggerPause sets the shared deadline to now+duration, unless a later
// deadline is already in effect. It takes no caller label and logs
// nothing itself.
func (c *Controller) TriggerPause(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := time.Now().Add(duration)
	if candidate.After(c.pauseUntil) {
		c.pauseUntil = candidate
	}
}

// PausedUntil returns the current shared deadline: zero if no pause was
// ever triggered, and a time in the past once the last pause has elapsed.
func (c *Controller) PausedUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseUntil
}
