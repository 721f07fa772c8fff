// Package ratelimit throttles command invocations per actor.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	// CommandsPerMinute is the sustained rate per actor. Zero disables limiting.
	CommandsPerMinute int
	// Burst is how many commands an idle actor may fire at once. Values below
	// one are treated as one.
	Burst int
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		CommandsPerMinute: 20,
		Burst:             5,
	}
}

// Limiter keeps one token bucket per actor.
type Limiter struct {
	config  Config
	buckets sync.Map // map[string]*rate.Limiter
	now     func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	if config.Burst < 1 {
		config.Burst = 1
	}
	return &Limiter{config: config, now: time.Now}
}

// Enabled reports whether any limit applies.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.CommandsPerMinute > 0
}

// Allow reports whether actorID may run another command now and consumes a
// token if so.
func (l *Limiter) Allow(actorID string) bool {
	if !l.Enabled() {
		return true
	}
	return l.bucket(actorID).AllowN(l.now(), 1)
}

// Reset forgets an actor's bucket.
func (l *Limiter) Reset(actorID string) {
	if l == nil {
		return
	}
	l.buckets.Delete(actorID)
}

func (l *Limiter) bucket(actorID string) *rate.Limiter {
	if cached, ok := l.buckets.Load(actorID); ok {
		return cached.(*rate.Limiter)
	}

	every := rate.Every(time.Minute / time.Duration(l.config.CommandsPerMinute))
	actual, _ := l.buckets.LoadOrStore(actorID, rate.NewLimiter(every, l.config.Burst))
	return actual.(*rate.Limiter)
}
