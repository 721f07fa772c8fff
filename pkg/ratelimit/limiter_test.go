package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frozen(l *Limiter, at time.Time) *time.Time {
	current := at
	l.now = func() time.Time { return current }
	return &current
}

func TestLimiter_DisabledAllowsEverything(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow("u1"))
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("u1"))
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(Config{CommandsPerMinute: 60, Burst: 3})
	frozen(l, time.Unix(1_700_000_000, 0))

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("u1"), "burst token %d", i)
	}
	assert.False(t, l.Allow("u1"))
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := NewLimiter(Config{CommandsPerMinute: 60, Burst: 1})
	now := frozen(l, time.Unix(1_700_000_000, 0))

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))

	*now = now.Add(time.Second)
	assert.True(t, l.Allow("u1"))
}

func TestLimiter_PerActorIsolation(t *testing.T) {
	l := NewLimiter(Config{CommandsPerMinute: 1, Burst: 1})
	frozen(l, time.Unix(1_700_000_000, 0))

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"))
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(Config{CommandsPerMinute: 1, Burst: 1})
	frozen(l, time.Unix(1_700_000_000, 0))

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	l.Reset("u1")
	assert.True(t, l.Allow("u1"))
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(Config{CommandsPerMinute: 60, Burst: 10})
	frozen(l, time.Unix(1_700_000_000, 0))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}
