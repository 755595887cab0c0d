package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitIfPaused_NoPause(t *testing.T) {
	c := New()
	start := time.Now()
	c.WaitIfPaused()
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestTriggerPause_BlocksUntilDeadline(t *testing.T) {
	c := New()
	c.TriggerPause(80 * time.Millisecond)

	start := time.Now()
	c.WaitIfPaused()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
}

func TestTriggerPause_NeverShortens(t *testing.T) {
	c := New()
	c.TriggerPause(200 * time.Millisecond)
	first := c.PausedUntil()

	c.TriggerPause(10 * time.Millisecond)
	second := c.PausedUntil()

	assert.Equal(t, first, second, "a shorter pause must not shorten the shared deadline")
}

func TestTriggerPause_ExtendsWhenLonger(t *testing.T) {
	c := New()
	c.TriggerPause(10 * time.Millisecond)
	first := c.PausedUntil()

	c.TriggerPause(200 * time.Millisecond)
	second := c.PausedUntil()

	assert.True(t, second.After(first))
}

func TestWaitIfPaused_ConcurrentWaitersShareOneDeadline(t *testing.T) {
	c := New()
	c.TriggerPause(60 * time.Millisecond)

	const n = 10
	var wg sync.WaitGroup
	results := make([]time.Duration, n)

	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c.WaitIfPaused()
			results[idx] = time.Since(start)
		}(i)
	}
	wg.Wait()

	for _, d := range results {
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 200*time.Millisecond)
	}
}
